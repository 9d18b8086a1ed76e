package cmds

import (
	"context"
	"io"
	"strings"

	"github.com/go-go-golems/codechat/pkg/chat"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// stdinFileName names the attachment read with --file -.
const stdinFileName = "stdin"

func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question, reading it from stdin if no argument is given",
		Example: `  codechat ask -f main.go "what does main do?"
  git diff | codechat ask -f - "review this change"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := cmd.Flags().GetStringSlice("file")
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			if question == "" {
				for _, f := range files {
					if f == "-" {
						return errors.New("pass the question as an argument when attaching stdin")
					}
				}
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.Wrap(err, "could not read question from stdin")
				}
				question = string(b)
			}

			return runAsk(cmd.Context(), question, files, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
		// errors are printed by the renderer
		SilenceErrors: true,
	}
	cmd.Flags().StringSliceP("file", "f", nil, "Attach a file to the question, - reads stdin")
	return cmd
}

func runAsk(
	ctx context.Context,
	question string,
	files []string,
	in io.Reader,
	out io.Writer,
	info io.Writer,
) error {
	ss, err := loadStepSettings()
	if err != nil {
		return err
	}

	session := newSession(ss, newRenderer(out, info))
	for _, f := range files {
		a := chat.AttachCode{Path: f}
		if f == "-" {
			b, err := io.ReadAll(in)
			if err != nil {
				return errors.Wrap(err, "could not read attachment from stdin")
			}
			a = chat.AttachCode{FileName: stdinFileName, FileType: "plaintext", Content: string(b)}
		}
		if err := session.Handle(ctx, a); err != nil {
			return err
		}
	}

	return session.Handle(ctx, chat.AskQuestion{Text: question})
}
