package cmds

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/codechat/pkg/chat"
	"github.com/go-go-golems/codechat/pkg/events"
	"github.com/go-go-golems/codechat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func NewStdioCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve an editor over JSON lines on stdin and stdout",
		Long: `Reads one JSON action per line on stdin, for example
  {"type":"attachCode","path":"main.go"}
  {"type":"askQuestion","text":"what does main do?"}
and writes one JSON event per line on stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runStdio(ctx context.Context, in io.Reader, out io.Writer) error {
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

	printer := events.JSONLinesPrinterFunc(out)
	router.AddHandler("stdio-writer", events.TopicChat, func(msg *message.Message) error {
		if err := printer(msg); err != nil {
			log.Error().Err(err).Str("message_id", msg.UUID).Msg("Could not write event")
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
		return serveLines(groupCtx, session, in, maxLineSize(ss))
	})

	return eg.Wait()
}

// maxLineSize leaves room for an inline attachment of the largest allowed
// size, JSON escaping included.
func maxLineSize(ss *settings.StepSettings) int {
	const fallback = 16 * 1024 * 1024
	if ss.Attach == nil || ss.Attach.MaxSize <= 0 {
		return fallback
	}
	return int(2*ss.Attach.MaxSize) + 64*1024
}

// serveLines handles one action per line until in is exhausted. Questions are
// answered in the background so the editor can keep attaching files, a second
// question while one is pending is rejected by the session.
func serveLines(ctx context.Context, session *chat.Session, in io.Reader, maxLine int) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	scanner := bufio.NewScanner(in)
	// the scanner uses the larger of cap(buf) and max as its limit
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLine)), maxLine)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		a, err := chat.DecodeAction(line)
		if err != nil {
			_ = session.Report(err)
			continue
		}

		if a.Kind() == chat.ActionKindAskQuestion {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = session.Handle(ctx, a)
			}()
			continue
		}
		_ = session.Handle(ctx, a)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			_ = session.Report(errors.Errorf("action too large, the limit is %d bytes", maxLine))
		}
		return errors.Wrap(err, "could not read actions")
	}
	return nil
}
