package settings

import (
	"github.com/pkg/errors"
)

type AttachMode string

const (
	// AttachModeAppend adds a new system turn on every attach, even for a file
	// that is already attached.
	AttachModeAppend AttachMode = "append"
	// AttachModeUpsert replaces the existing attachment turns of a file.
	AttachModeUpsert AttachMode = "upsert"
)

const DefaultMaxAttachmentSize int64 = 1024 * 1024

type AttachSettings struct {
	Mode AttachMode `yaml:"mode,omitempty"`
	// MaxSize is the largest file, in bytes, that can be attached.
	MaxSize int64 `yaml:"max_size,omitempty"`
}

func NewAttachSettings() *AttachSettings {
	return &AttachSettings{
		Mode:    AttachModeAppend,
		MaxSize: DefaultMaxAttachmentSize,
	}
}

func ParseAttachMode(s string) (AttachMode, error) {
	switch AttachMode(s) {
	case AttachModeAppend, AttachModeUpsert:
		return AttachMode(s), nil
	case "":
		return AttachModeAppend, nil
	}
	return "", errors.Errorf("invalid attach mode %q (should be one of append, upsert)", s)
}
