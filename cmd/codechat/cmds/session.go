package cmds

import (
	"os"

	"github.com/go-go-golems/codechat/pkg/attach"
	"github.com/go-go-golems/codechat/pkg/chat"
	"github.com/go-go-golems/codechat/pkg/events"
	"github.com/go-go-golems/codechat/pkg/steps/ai/openai"
	"github.com/go-go-golems/codechat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// loadStepSettings starts from the defaults or from --settings-file, then
// applies flags, environment and config file values on top.
func loadStepSettings() (*settings.StepSettings, error) {
	ss := settings.NewStepSettings()

	if path := viper.GetString(settings.KeySettingsFile); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "could not open settings file")
		}
		defer func() {
			_ = f.Close()
		}()

		ss, err = settings.NewStepSettingsFromYAML(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load %s", path)
		}
	}

	if err := ss.UpdateFromViper(viper.GetViper()); err != nil {
		return nil, err
	}
	log.Debug().Fields(ss.GetMetadata()).Msg("Loaded settings")
	return ss, nil
}

// newSession wires a session to the configured completion endpoint and to the
// local filesystem.
func newSession(ss *settings.StepSettings, publisher events.EventPublisher) *chat.Session {
	client := openai.NewClient(
		ss.Client,
		openai.WithLogger(log.With().Str("component", "openai").Logger()),
	)
	resolver := attach.NewFSResolver(
		attach.WithMaxSize(ss.Attach.MaxSize),
		attach.WithLogger(log.With().Str("component", "attach").Logger()),
	)
	return chat.NewSession(ss, client, publisher, chat.WithResolver(resolver))
}
