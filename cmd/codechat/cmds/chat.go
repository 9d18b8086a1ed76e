package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/codechat/pkg/chat"
	"github.com/go-go-golems/codechat/pkg/events"
	"github.com/go-go-golems/codechat/pkg/tokens"
	"github.com/mattn/go-isatty"
	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
)

const replHelp = `Type a question and press enter. Commands:
  /attach <path>     attach a file to the conversation
  /remove <name>     remove every attachment of a file, name can be a glob like *.py
  /files             list attached files
  /tokens            estimate the size of the next request
  /clear-context     remove all attachments, keep the questions and replies
  /clear             start over
  /help              show this help
  /quit              leave
`

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat about your code in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := cmd.Flags().GetStringSlice("file")
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), files)
		},
	}
	cmd.Flags().StringSliceP("file", "f", nil, "Attach a file before the first question")
	return cmd
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, files []string) error {
	ss, err := loadStepSettings()
	if err != nil {
		return err
	}

	router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()

	r := newRenderer(out, out)
	router.AddEventHandler("chat-renderer", events.TopicChat, func(e events.Event) error {
		if err := r.Render(e); err != nil {
			log.Warn().Err(err).Msg("Could not render event")
		}
		return nil
	})

	pm := events.NewPublisherManager()
	pm.SubscribePublisher(events.TopicChat, router.Publisher)
	session := newSession(ss, pm)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, groupCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return router.Run(groupCtx)
	})
	eg.Go(func() error {
		defer cancel()

		select {
		case <-router.Running():
		case <-groupCtx.Done():
			return groupCtx.Err()
		}

		for _, f := range files {
			_ = session.Handle(groupCtx, chat.AttachCode{Path: f})
		}

		counter, err := tokens.NewCounter(ss.Chat.GetEngine())
		if err != nil {
			log.Warn().Err(err).Msg("Token counts are disabled")
		}
		l := &replLoop{
			session: session,
			out:     out,
			confirm: newConfirmFunc(in, out),
			counter: counter,
		}

		_, _ = fmt.Fprint(out, replHelp)
		return l.run(groupCtx, in)
	})

	return eg.Wait()
}

type replCommand struct {
	action chat.Action
	quit   bool
	help   bool
	files  bool
	tokens bool
}

func parseLine(line string) (*replCommand, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return &replCommand{action: chat.AskQuestion{Text: line}}, nil
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/attach":
		return &replCommand{action: chat.AttachCode{Path: arg}}, nil
	case "/remove":
		if arg == "" {
			return nil, errors.New("usage: /remove <name>")
		}
		return &replCommand{action: chat.RemoveFile{FileName: arg}}, nil
	case "/files":
		return &replCommand{files: true}, nil
	case "/tokens":
		return &replCommand{tokens: true}, nil
	case "/clear-context":
		return &replCommand{action: chat.ClearContext{}}, nil
	case "/clear":
		return &replCommand{action: chat.ClearConversation{}}, nil
	case "/help":
		return &replCommand{help: true}, nil
	case "/quit", "/exit":
		return &replCommand{quit: true}, nil
	default:
		return nil, errors.Errorf("unknown command %s, try /help", name)
	}
}

// confirmFunc asks the user a yes/no question. A nil confirmFunc means yes.
type confirmFunc func(query string) bool

// newConfirmFunc only prompts when a person is typing.
func newConfirmFunc(in io.Reader, out io.Writer) confirmFunc {
	f, ok := in.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return nil
	}

	ui := &input.UI{
		Writer: out,
		Reader: in,
	}
	return func(query string) bool {
		answer, err := ui.Ask(query+" [y/n]", &input.Options{
			Default:  "n",
			Required: true,
			Loop:     true,
			ValidateFunc: func(answer string) error {
				switch answer {
				case "y", "Y", "n", "N":
					return nil
				default:
					return fmt.Errorf("please enter 'y' or 'n'")
				}
			},
		})
		if err != nil {
			log.Debug().Err(err).Msg("Could not read confirmation")
			return false
		}
		return answer == "y" || answer == "Y"
	}
}

// expandRemove turns a /remove argument into one action per matching
// attached file. Plain names are passed through unchanged. A name that is
// attached literally wins over its reading as a pattern, and a pattern that
// matches nothing is an error.
func expandRemove(session *chat.Session, rm chat.RemoveFile) ([]chat.Action, error) {
	if !strings.ContainsAny(rm.FileName, "*?[") {
		return []chat.Action{rm}, nil
	}

	attached := session.AttachedFiles()
	for _, f := range attached {
		if f.FileName == rm.FileName {
			return []chat.Action{rm}, nil
		}
	}

	ret := []chat.Action{}
	for _, f := range attached {
		matching, err := glob.Match(rm.FileName, f.FileName)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %s", rm.FileName)
		}
		if matching {
			ret = append(ret, chat.RemoveFile{FileName: f.FileName})
		}
	}
	if len(ret) == 0 {
		return nil, errors.Errorf("no attached file matches %s", rm.FileName)
	}
	return ret, nil
}

type replLoop struct {
	session *chat.Session
	out     io.Writer
	confirm confirmFunc
	// counter is nil when token counts are disabled
	counter *tokens.Counter
}

func (l *replLoop) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		_, _ = fmt.Fprint(l.out, "> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(l.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		c, err := parseLine(line)
		if err != nil {
			_, _ = fmt.Fprintln(l.out, err)
			continue
		}
		switch {
		case c.quit:
			return nil
		case c.help:
			_, _ = fmt.Fprint(l.out, replHelp)
		case c.files:
			l.printFiles()
		case c.tokens:
			l.printTokens()
		default:
			actions := []chat.Action{c.action}
			switch a := c.action.(type) {
			case chat.RemoveFile:
				actions, err = expandRemove(l.session, a)
				if err != nil {
					_, _ = fmt.Fprintln(l.out, err)
					continue
				}
			case chat.ClearConversation:
				if l.confirm != nil && !l.confirm("Clear the whole conversation?") {
					continue
				}
			}

			for _, a := range actions {
				// failures were already rendered as error events
				if err := l.session.Handle(ctx, a); err != nil {
					log.Debug().Err(err).Str("action", string(a.Kind())).Msg("Action failed")
				}
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (l *replLoop) count(text string) string {
	if l.counter == nil {
		return ""
	}
	n, err := l.counter.Count(text)
	if err != nil {
		log.Debug().Err(err).Msg("Could not count tokens")
		return ""
	}
	return fmt.Sprintf(", ~%d tokens", n)
}

func (l *replLoop) printFiles() {
	files := l.session.AttachedFiles()
	if len(files) == 0 {
		_, _ = fmt.Fprintln(l.out, "no files attached")
		return
	}

	contents := map[string]*strings.Builder{}
	for _, t := range l.session.Store().Turns() {
		if t.FileName == "" {
			continue
		}
		if contents[t.FileName] == nil {
			contents[t.FileName] = &strings.Builder{}
		}
		contents[t.FileName].WriteString(t.Content)
	}

	for _, f := range files {
		_, _ = fmt.Fprintf(l.out, "  %s (%s%s)\n", f.FileName, f.FileType, l.count(contents[f.FileName].String()))
	}
}

func (l *replLoop) printTokens() {
	if l.counter == nil {
		_, _ = fmt.Fprintln(l.out, "token counts are not available")
		return
	}
	messages := l.session.Store().AsRequestMessages()
	n, err := l.counter.CountMessages(messages)
	if err != nil {
		_, _ = fmt.Fprintln(l.out, err)
		return
	}
	_, _ = fmt.Fprintf(l.out, "%d messages, ~%d tokens\n", len(messages), n)
}
