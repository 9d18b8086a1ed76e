package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleAssistant, RoleUser:
		return true
	}
	return false
}

// Turn is a single role-tagged entry of the transcript.
//
// Turns are values: the store hands out copies, so the role and content of a
// stored turn can only change by removing it.
type Turn struct {
	ID      uuid.UUID `json:"id" yaml:"id"`
	Time    time.Time `json:"time" yaml:"time"`
	Role    Role      `json:"role" yaml:"role"`
	Content string    `json:"content" yaml:"content"`

	// FileName and FileType are only set on system turns created by an attachment.
	FileName string `json:"fileName,omitempty" yaml:"file_name,omitempty"`
	FileType string `json:"fileType,omitempty" yaml:"file_type,omitempty"`
}

func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:      uuid.New(),
		Time:    time.Now(),
		Role:    role,
		Content: content,
	}
}

// NewAttachmentTurn builds the system turn that carries a file into the model context.
func NewAttachmentTurn(fileName string, fileType string, content string) Turn {
	t := NewTurn(RoleSystem, FormatAttachment(fileName, content))
	t.FileName = fileName
	t.FileType = fileType
	return t
}

const attachmentPrefix = "Code attachment - "

// AttachmentHeader is the first line of an attachment turn, up to and including the colon.
func AttachmentHeader(fileName string) string {
	return attachmentPrefix + fileName + ":"
}

func FormatAttachment(fileName string, content string) string {
	return fmt.Sprintf("%s\n```\n%s\n```", AttachmentHeader(fileName), content)
}

// IsAttachmentFor reports whether t is a system turn carrying fileName.
func (t Turn) IsAttachmentFor(fileName string) bool {
	return t.Role == RoleSystem && strings.HasPrefix(t.Content, AttachmentHeader(fileName))
}

// Message is the {role, content} pair sent to the completion endpoint.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func (t Turn) Message() Message {
	return Message{Role: t.Role, Content: t.Content}
}
