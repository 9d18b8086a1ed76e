package events

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

type EventType string

// Outbound events sent to the chat UI, one per handled action.
const (
	EventTypeResponse       EventType = "response"
	EventTypeError          EventType = "error"
	EventTypeCodeAttached   EventType = "codeAttached"
	EventTypeFileRemoved    EventType = "fileRemoved"
	EventTypeClear          EventType = "clear"
	EventTypeContextCleared EventType = "contextCleared"
)

type Event interface {
	Type() EventType
	SessionID() string
	Payload() []byte
}

type EventImpl struct {
	Type_      EventType `json:"type"`
	SessionID_ string    `json:"sessionId,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) SessionID() string {
	return e.SessionID_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

// WithSessionID tags the event with the session that produced it.
func (e *EventImpl) WithSessionID(id string) {
	e.SessionID_ = id
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	if e.SessionID_ != "" {
		ev.Str("session_id", e.SessionID_)
	}
}

var _ Event = &EventImpl{}

type EventResponse struct {
	EventImpl
	Content string `json:"content"`
}

func NewResponseEvent(content string) *EventResponse {
	return &EventResponse{
		EventImpl: EventImpl{Type_: EventTypeResponse},
		Content:   content,
	}
}

var _ Event = &EventResponse{}

type EventError struct {
	EventImpl
	Content string `json:"content"`
}

func NewErrorEvent(err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{Type_: EventTypeError},
		Content:   err.Error(),
	}
}

var _ Event = &EventError{}

type EventCodeAttached struct {
	EventImpl
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Content  string `json:"content"`
}

func NewCodeAttachedEvent(fileName string, fileType string, content string) *EventCodeAttached {
	return &EventCodeAttached{
		EventImpl: EventImpl{Type_: EventTypeCodeAttached},
		FileName:  fileName,
		FileType:  fileType,
		Content:   content,
	}
}

var _ Event = &EventCodeAttached{}

type EventFileRemoved struct {
	EventImpl
	FileName string `json:"fileName"`
}

func NewFileRemovedEvent(fileName string) *EventFileRemoved {
	return &EventFileRemoved{
		EventImpl: EventImpl{Type_: EventTypeFileRemoved},
		FileName:  fileName,
	}
}

var _ Event = &EventFileRemoved{}

func NewClearEvent() *EventImpl {
	return &EventImpl{Type_: EventTypeClear}
}

func NewContextClearedEvent() *EventImpl {
	return &EventImpl{Type_: EventTypeContextCleared}
}

// NewEventFromJson decodes an event serialized by PublisherManager.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	var ret Event
	switch hdr.Type {
	case EventTypeResponse:
		ret = &EventResponse{}
	case EventTypeError:
		ret = &EventError{}
	case EventTypeCodeAttached:
		ret = &EventCodeAttached{}
	case EventTypeFileRemoved:
		ret = &EventFileRemoved{}
	case EventTypeClear, EventTypeContextCleared:
		ret = &EventImpl{}
	default:
		return nil, fmt.Errorf("unknown event type %q", hdr.Type)
	}

	if err := json.Unmarshal(b, ret); err != nil {
		return nil, err
	}
	if setter, ok := ret.(interface{ SetPayload([]byte) }); ok {
		setter.SetPayload(b)
	}
	return ret, nil
}

func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}
