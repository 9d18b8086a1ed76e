package chat

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

type ActionKind string

// Inbound actions a chat UI can send to a session.
const (
	ActionKindAskQuestion       ActionKind = "askQuestion"
	ActionKindClearConversation ActionKind = "clearConversation"
	ActionKindAttachCode        ActionKind = "attachCode"
	ActionKindRemoveFile        ActionKind = "removeFile"
	ActionKindClearContext      ActionKind = "clearContext"
)

var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrMissingFileName = errors.New("file name is empty")
)

// Action is one of AskQuestion, ClearConversation, AttachCode, RemoveFile or
// ClearContext. The set is closed: other packages cannot add kinds.
type Action interface {
	Kind() ActionKind
	Validate() error
	isAction()
}

type AskQuestion struct {
	Text string `json:"text"`
}

func (AskQuestion) Kind() ActionKind { return ActionKindAskQuestion }
func (AskQuestion) isAction()        {}

func (a AskQuestion) Validate() error {
	if strings.TrimSpace(a.Text) == "" {
		return ErrEmptyQuestion
	}
	return nil
}

type ClearConversation struct{}

func (ClearConversation) Kind() ActionKind { return ActionKindClearConversation }
func (ClearConversation) Validate() error  { return nil }
func (ClearConversation) isAction()        {}

// AttachCode either names a file to read (Path) or carries content the editor
// already has (FileName and Content).
type AttachCode struct {
	Path     string `json:"path,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
	Content  string `json:"content,omitempty"`
}

func (AttachCode) Kind() ActionKind { return ActionKindAttachCode }
func (AttachCode) isAction()        {}

// Validate accepts an empty AttachCode: the resolver decides what an empty
// path means.
func (a AttachCode) Validate() error {
	if a.Content != "" && strings.TrimSpace(a.FileName) == "" {
		return errors.Wrap(ErrMissingFileName, "attachCode with content")
	}
	return nil
}

// IsInline reports whether the action already carries the file content.
func (a AttachCode) IsInline() bool {
	return strings.TrimSpace(a.FileName) != ""
}

type RemoveFile struct {
	FileName string `json:"fileName"`
}

func (RemoveFile) Kind() ActionKind { return ActionKindRemoveFile }
func (RemoveFile) isAction()        {}

func (a RemoveFile) Validate() error {
	if strings.TrimSpace(a.FileName) == "" {
		return ErrMissingFileName
	}
	return nil
}

type ClearContext struct{}

func (ClearContext) Kind() ActionKind { return ActionKindClearContext }
func (ClearContext) Validate() error  { return nil }
func (ClearContext) isAction()        {}

func decodeStrict(b []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// DecodeAction parses a JSON action of the form {"type": "<kind>", ...payload}.
// Unknown kinds, unknown fields and invalid payloads are rejected.
func DecodeAction(b []byte) (Action, error) {
	var hdr struct {
		Type ActionKind `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, errors.Wrap(err, "malformed action")
	}

	var (
		ret Action
		err error
	)
	switch hdr.Type {
	case ActionKindAskQuestion:
		var env struct {
			Type ActionKind `json:"type"`
			AskQuestion
		}
		err = decodeStrict(b, &env)
		ret = env.AskQuestion
	case ActionKindClearConversation:
		var env struct {
			Type ActionKind `json:"type"`
		}
		err = decodeStrict(b, &env)
		ret = ClearConversation{}
	case ActionKindAttachCode:
		var env struct {
			Type ActionKind `json:"type"`
			AttachCode
		}
		err = decodeStrict(b, &env)
		ret = env.AttachCode
	case ActionKindRemoveFile:
		var env struct {
			Type ActionKind `json:"type"`
			RemoveFile
		}
		err = decodeStrict(b, &env)
		ret = env.RemoveFile
	case ActionKindClearContext:
		var env struct {
			Type ActionKind `json:"type"`
		}
		err = decodeStrict(b, &env)
		ret = ClearContext{}
	case "":
		return nil, errors.New("action has no type")
	default:
		return nil, errors.Errorf("unknown action type %q", hdr.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "malformed %s action", hdr.Type)
	}

	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
