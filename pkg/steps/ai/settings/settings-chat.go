package settings

import (
	"github.com/go-go-golems/codechat/pkg/helpers"
	"github.com/huandu/go-clone"
)

const (
	DefaultEngine            = "gpt-4o-mini"
	DefaultMaxResponseTokens = 1024
)

type ChatSettings struct {
	Engine            *string `yaml:"engine,omitempty"`
	MaxResponseTokens *int    `yaml:"max_response_tokens,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Engine:            helpers.ToPointer(DefaultEngine),
		MaxResponseTokens: helpers.ToPointer(DefaultMaxResponseTokens),
	}
}

func (s *ChatSettings) GetEngine() string {
	if s == nil || s.Engine == nil {
		return ""
	}
	return *s.Engine
}

// GetMaxResponseTokens returns 0 when unset, which omits max_tokens from the request.
func (s *ChatSettings) GetMaxResponseTokens() int {
	if s == nil || s.MaxResponseTokens == nil {
		return 0
	}
	return *s.MaxResponseTokens
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}
