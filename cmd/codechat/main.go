package main

import (
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/codechat/cmd/codechat/cmds"
	"github.com/go-go-golems/codechat/pkg/steps/ai/settings"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "codechat",
	Short: "codechat asks questions about your code to an OpenAI-compatible model",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
	SilenceUsage: true,
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetBool("verbose")
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initCommands(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("codechat")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.codechat")
		viper.AddConfigPath("/etc/codechat")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(xdgConfigPath + "/codechat")
		}
	}

	// a missing config file is fine, flags and environment still apply
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	err := viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		return err
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

// InitLogger replaces the global logger. It is called once flags are bound
// and again after they are parsed, so it always starts from a fresh logger.
func InitLogger(config *logConfig) error {
	// default is json
	var logWriter io.Writer
	if config.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	} else {
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, //days
				},
			})
	}

	logCtx := zerolog.New(logWriter).With().Timestamp()
	if config.WithCaller {
		logCtx = logCtx.Caller()
	}
	log.Logger = logCtx.Logger()

	if config.Level == "" {
		config.Level = "info"
	}
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// logging flags
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.codechat/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	rootCmd.PersistentFlags().String(settings.KeySettingsFile, "", "YAML settings file, as printed by the config command")
	rootCmd.PersistentFlags().String(settings.KeyAPIKey, "", "OpenAI API key")
	rootCmd.PersistentFlags().String(settings.KeyBaseURL, settings.DefaultBaseURL, "Base URL of the chat completions API")
	rootCmd.PersistentFlags().String(settings.KeyOrganization, "", "OpenAI organization")
	rootCmd.PersistentFlags().String(settings.KeyEngine, settings.DefaultEngine, "Model to ask")
	rootCmd.PersistentFlags().Int(settings.KeyMaxResponseTokens, settings.DefaultMaxResponseTokens, "Maximum number of tokens in a reply (0 for no limit)")
	rootCmd.PersistentFlags().Int(settings.KeyTimeout, 0, "Request timeout in seconds (0 for none)")
	rootCmd.PersistentFlags().String(settings.KeyAttachMode, string(settings.AttachModeAppend), "What attaching an already attached file does (append, upsert)")
	rootCmd.PersistentFlags().Int64(settings.KeyMaxAttachmentSize, settings.DefaultMaxAttachmentSize, "Largest file that can be attached, in bytes")

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" {
			if len(os.Args) > idx+1 {
				configFile = os.Args[idx+1]
			}
		} else if strings.HasPrefix(arg, "--config=") {
			configFile = strings.TrimPrefix(arg, "--config=")
		}
	}

	err := initCommands(rootCmd, configFile)
	cobra.CheckErr(err)

	rootCmd.AddCommand(
		cmds.NewChatCommand(),
		cmds.NewStdioCommand(),
		cmds.NewAskCommand(),
		cmds.NewConfigCommand(),
	)
}
