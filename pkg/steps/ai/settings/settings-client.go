package settings

import (
	"time"

	"github.com/go-go-golems/codechat/pkg/helpers"
	"github.com/huandu/go-clone"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type ClientSettings struct {
	APIKey  *string `yaml:"api_key,omitempty"`
	BaseURL *string `yaml:"base_url,omitempty"`
	// TimeoutSeconds is nil unless configured: requests then run without a
	// client-side deadline.
	TimeoutSeconds *int    `yaml:"timeout,omitempty"`
	Organization   *string `yaml:"organization,omitempty"`
}

func NewClientSettings() *ClientSettings {
	return &ClientSettings{
		BaseURL: helpers.ToPointer(DefaultBaseURL),
	}
}

func (cs *ClientSettings) SetTimeoutSeconds(seconds int) {
	if seconds <= 0 {
		cs.TimeoutSeconds = nil
		return
	}
	cs.TimeoutSeconds = helpers.ToPointer(seconds)
}

// GetTimeout returns 0 when no timeout is configured.
func (cs *ClientSettings) GetTimeout() time.Duration {
	if cs == nil || cs.TimeoutSeconds == nil {
		return 0
	}
	return time.Duration(*cs.TimeoutSeconds) * time.Second
}

func (cs *ClientSettings) GetAPIKey() string {
	if cs == nil || cs.APIKey == nil {
		return ""
	}
	return *cs.APIKey
}

func (cs *ClientSettings) GetBaseURL() string {
	if cs == nil || cs.BaseURL == nil || *cs.BaseURL == "" {
		return DefaultBaseURL
	}
	return *cs.BaseURL
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}
