package settings

import (
	"io"

	"github.com/go-go-golems/codechat/pkg/helpers"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Flag and config keys, shared by the cobra flags and the viper config file.
const (
	KeyAPIKey            = "openai-api-key"
	KeyBaseURL           = "openai-base-url"
	KeyOrganization      = "openai-organization"
	KeyEngine            = "ai-engine"
	KeyMaxResponseTokens = "ai-max-response-tokens"
	KeyTimeout           = "timeout"
	KeyAttachMode        = "attach-mode"
	KeyMaxAttachmentSize = "max-attachment-size"
	KeySettingsFile      = "settings-file"
)

type StepSettings struct {
	Chat   *ChatSettings   `yaml:"chat,omitempty"`
	Client *ClientSettings `yaml:"client,omitempty"`
	Attach *AttachSettings `yaml:"attach,omitempty"`
}

func NewStepSettings() *StepSettings {
	return &StepSettings{
		Chat:   NewChatSettings(),
		Client: NewClientSettings(),
		Attach: NewAttachSettings(),
	}
}

// NewStepSettingsFromYAML decodes settings on top of the defaults.
func NewStepSettingsFromYAML(r io.Reader) (*StepSettings, error) {
	ret := NewStepSettings()
	if err := yaml.NewDecoder(r).Decode(ret); err != nil {
		if errors.Is(err, io.EOF) {
			return ret, nil
		}
		return nil, errors.Wrap(err, "could not decode settings")
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// UpdateFromViper overrides every setting that is explicitly set in v, be it
// through a flag, the environment or the config file.
func (ss *StepSettings) UpdateFromViper(v *viper.Viper) error {
	if ss.Chat == nil {
		ss.Chat = NewChatSettings()
	}
	if ss.Client == nil {
		ss.Client = NewClientSettings()
	}
	if ss.Attach == nil {
		ss.Attach = NewAttachSettings()
	}

	if v.IsSet(KeyAPIKey) {
		ss.Client.APIKey = helpers.ToPointer(v.GetString(KeyAPIKey))
	}
	if v.IsSet(KeyBaseURL) {
		ss.Client.BaseURL = helpers.ToPointer(v.GetString(KeyBaseURL))
	}
	if v.IsSet(KeyOrganization) {
		ss.Client.Organization = helpers.ToPointer(v.GetString(KeyOrganization))
	}
	if v.IsSet(KeyTimeout) {
		ss.Client.SetTimeoutSeconds(v.GetInt(KeyTimeout))
	}
	if v.IsSet(KeyEngine) {
		ss.Chat.Engine = helpers.ToPointer(v.GetString(KeyEngine))
	}
	if v.IsSet(KeyMaxResponseTokens) {
		ss.Chat.MaxResponseTokens = helpers.ToPointer(v.GetInt(KeyMaxResponseTokens))
	}
	if v.IsSet(KeyAttachMode) {
		mode, err := ParseAttachMode(v.GetString(KeyAttachMode))
		if err != nil {
			return err
		}
		ss.Attach.Mode = mode
	}
	if v.IsSet(KeyMaxAttachmentSize) {
		ss.Attach.MaxSize = v.GetInt64(KeyMaxAttachmentSize)
	}

	return ss.Validate()
}

// Validate checks the settings that can be checked without a request. A
// missing API key is not an error here, it is reported when a question is
// asked.
func (ss *StepSettings) Validate() error {
	if ss.Attach != nil {
		if _, err := ParseAttachMode(string(ss.Attach.Mode)); err != nil {
			return err
		}
		if ss.Attach.MaxSize < 0 {
			return errors.Errorf("invalid max attachment size %d", ss.Attach.MaxSize)
		}
	}
	if ss.Chat != nil && ss.Chat.MaxResponseTokens != nil && *ss.Chat.MaxResponseTokens < 0 {
		return errors.Errorf("invalid max response tokens %d", *ss.Chat.MaxResponseTokens)
	}
	return nil
}

// GetMetadata returns the settings as flat key/values for logging. The API key
// is never included.
func (ss *StepSettings) GetMetadata() map[string]interface{} {
	metadata := make(map[string]interface{})

	if ss.Chat != nil {
		if ss.Chat.Engine != nil {
			metadata[KeyEngine] = *ss.Chat.Engine
		}
		if ss.Chat.MaxResponseTokens != nil {
			metadata[KeyMaxResponseTokens] = *ss.Chat.MaxResponseTokens
		}
	}

	if ss.Client != nil {
		metadata[KeyBaseURL] = ss.Client.GetBaseURL()
		metadata["api-key-set"] = ss.Client.GetAPIKey() != ""
		if t := ss.Client.GetTimeout(); t > 0 {
			metadata[KeyTimeout] = t.String()
		}
		if ss.Client.Organization != nil && *ss.Client.Organization != "" {
			metadata[KeyOrganization] = *ss.Client.Organization
		}
	}

	if ss.Attach != nil {
		metadata[KeyAttachMode] = string(ss.Attach.Mode)
		metadata[KeyMaxAttachmentSize] = ss.Attach.MaxSize
	}

	return metadata
}

func (ss *StepSettings) Clone() *StepSettings {
	return clone.Clone(ss).(*StepSettings)
}

// WriteYAML encodes the settings in the format read by NewStepSettingsFromYAML.
// The API key is left out.
func (ss *StepSettings) WriteYAML(w io.Writer) error {
	c := ss.Clone()
	if c.Client != nil {
		c.Client.APIKey = nil
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "could not encode settings")
	}
	return enc.Close()
}
