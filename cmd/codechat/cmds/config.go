package cmds

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings as YAML, without the API key",
		Long: `Prints the settings after defaults, --settings-file, the config file,
the environment and flags have been applied. The output can be saved and
passed back with --settings-file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ss, err := loadStepSettings()
			if err != nil {
				return err
			}

			if used := viper.ConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# config file: %s\n", used)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# api key set: %t\n", ss.Client.GetAPIKey() != "")
			return ss.WriteYAML(cmd.OutOrStdout())
		},
	}
}
