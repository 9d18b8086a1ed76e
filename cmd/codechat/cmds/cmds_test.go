package cmds

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/codechat/pkg/chat"
	"github.com/go-go-golems/codechat/pkg/conversation"
	"github.com/go-go-golems/codechat/pkg/events"
	"github.com/go-go-golems/codechat/pkg/steps/ai/openai"
	"github.com/go-go-golems/codechat/pkg/steps/ai/settings"
	"github.com/go-go-golems/codechat/pkg/tokens"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, req openai.Request) (string, error) {
	last := req.Messages[len(req.Messages)-1]
	return "you asked: " + last.Content, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Publish(e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	ret := []events.EventType{}
	for _, e := range l.events {
		ret = append(ret, e.Type())
	}
	return ret
}

func testSession(publisher events.EventPublisher) *chat.Session {
	ss := settings.NewStepSettings()
	key := "sk-test"
	ss.Client.APIKey = &key
	return chat.NewSession(ss, echoCompleter{}, publisher, chat.WithLogger(zerolog.Nop()))
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want *replCommand
	}{
		{"what is this?", &replCommand{action: chat.AskQuestion{Text: "what is this?"}}},
		{"/attach  src/main.go ", &replCommand{action: chat.AttachCode{Path: "src/main.go"}}},
		{"/attach", &replCommand{action: chat.AttachCode{}}},
		{"/remove main.go", &replCommand{action: chat.RemoveFile{FileName: "main.go"}}},
		{"/files", &replCommand{files: true}},
		{"/tokens", &replCommand{tokens: true}},
		{"/clear-context", &replCommand{action: chat.ClearContext{}}},
		{"/clear", &replCommand{action: chat.ClearConversation{}}},
		{"/help", &replCommand{help: true}},
		{"/quit", &replCommand{quit: true}},
		{"/exit", &replCommand{quit: true}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseLine("/remove")
	assert.Error(t, err)
	_, err = parseLine("/nope")
	assert.Error(t, err)
}

func TestReplSession(t *testing.T) {
	var out bytes.Buffer
	session := testSession(newRenderer(&out, &out))

	in := strings.NewReader(strings.Join([]string{
		"/files",
		"hello",
		"/remove ghost.go",
		"/unknown",
		"/clear",
		"/quit",
		"never asked",
	}, "\n"))

	require.NoError(t, (&replLoop{session: session, out: &out}).run(context.Background(), in))

	s := out.String()
	assert.Contains(t, s, "no files attached")
	assert.Contains(t, s, "you asked: hello")
	assert.Contains(t, s, "removed ghost.go")
	assert.Contains(t, s, "unknown command /unknown")
	assert.Contains(t, s, "conversation cleared")
	assert.NotContains(t, s, "never asked")
	assert.Equal(t, 0, session.Store().Len())
}

func TestReplEndsOnEOF(t *testing.T) {
	var out bytes.Buffer
	session := testSession(newRenderer(&out, &out))
	require.NoError(t, (&replLoop{session: session, out: &out}).run(context.Background(), strings.NewReader("one\ntwo")))
	assert.Equal(t, 4, session.Store().Len())
}

func TestReplRemoveGlob(t *testing.T) {
	var out bytes.Buffer
	session := testSession(newRenderer(&out, &out))
	ctx := context.Background()
	for _, name := range []string{"a.py", "b.py", "main.go"} {
		require.NoError(t, session.Handle(ctx, chat.AttachCode{FileName: name, Content: "x"}))
	}

	in := strings.NewReader("/remove *.py\n/remove *.rs\n")
	require.NoError(t, (&replLoop{session: session, out: &out}).run(ctx, in))

	assert.Equal(t, []conversation.AttachedFile{{FileName: "main.go", FileType: "go"}}, session.AttachedFiles())
	assert.Contains(t, out.String(), "removed a.py")
	assert.Contains(t, out.String(), "removed b.py")
	assert.Contains(t, out.String(), "no attached file matches *.rs")
}

func TestReplRemoveLiteralBracketName(t *testing.T) {
	var out bytes.Buffer
	session := testSession(newRenderer(&out, &out))
	ctx := context.Background()
	for _, name := range []string{"page[id].tsx", "pagei.tsx"} {
		require.NoError(t, session.Handle(ctx, chat.AttachCode{FileName: name, Content: "x"}))
	}

	in := strings.NewReader("/remove page[id].tsx\n")
	require.NoError(t, (&replLoop{session: session, out: &out}).run(ctx, in))

	files := session.AttachedFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "pagei.tsx", files[0].FileName)
	assert.Contains(t, out.String(), "removed page[id].tsx")
	assert.NotContains(t, out.String(), "no attached file matches")
}

func TestReplClearAsksForConfirmation(t *testing.T) {
	var out bytes.Buffer
	session := testSession(newRenderer(&out, &out))

	answers := []bool{false, true}
	var queries []string
	confirm := func(query string) bool {
		queries = append(queries, query)
		ret := answers[0]
		answers = answers[1:]
		return ret
	}

	in := strings.NewReader("hello\n/clear\n/clear\n")
	require.NoError(t, (&replLoop{session: session, out: &out, confirm: confirm}).run(context.Background(), in))

	assert.Len(t, queries, 2)
	assert.Equal(t, 0, session.Store().Len())
	assert.Equal(t, 1, strings.Count(out.String(), "conversation cleared"))
}

func TestReplTokenCounts(t *testing.T) {
	var out bytes.Buffer
	session := testSession(newRenderer(&out, &out))
	require.NoError(t, session.Handle(context.Background(), chat.AttachCode{FileName: "a.py", Content: "print(1)"}))

	counter, err := tokens.NewCounter("")
	require.NoError(t, err)
	l := &replLoop{session: session, out: &out, counter: counter}
	require.NoError(t, l.run(context.Background(), strings.NewReader("/files\n/tokens\n")))

	assert.Regexp(t, `a\.py \(python, ~\d+ tokens\)`, out.String())
	assert.Regexp(t, `1 messages, ~\d+ tokens`, out.String())

	out.Reset()
	l.counter = nil
	require.NoError(t, l.run(context.Background(), strings.NewReader("/files\n/tokens\n")))
	assert.Contains(t, out.String(), "a.py (python)")
	assert.Contains(t, out.String(), "token counts are not available")
}

func TestConfirmFuncOnlyForTerminals(t *testing.T) {
	assert.Nil(t, newConfirmFunc(strings.NewReader("y\n"), &bytes.Buffer{}))
}

func TestRendererSplitsRepliesFromInfo(t *testing.T) {
	var out, info bytes.Buffer
	r := newRenderer(&out, &info)

	require.NoError(t, r.Publish(events.NewCodeAttachedEvent("a.py", "python", "print(1)")))
	require.NoError(t, r.Publish(events.NewErrorEvent(errors.New("missing API key"))))
	require.NoError(t, r.Publish(events.NewContextClearedEvent()))
	require.NoError(t, r.Publish(events.NewResponseEvent("**answer**")))

	// not a terminal, markdown is printed as is
	assert.Equal(t, "**answer**\n", out.String())
	assert.Equal(t, "attached a.py (python, 8 bytes)\nerror: missing API key\nattachments cleared\n", info.String())
}

func TestServeLines(t *testing.T) {
	log := &eventLog{}
	session := testSession(log)

	in := strings.NewReader(strings.Join([]string{
		`{"type":"attachCode","fileName":"a.py","content":"print(1)"}`,
		``,
		`{"type":"bogus"}`,
		`{"type":"askQuestion","text":"what does it print?"}`,
	}, "\n"))

	require.NoError(t, serveLines(context.Background(), session, in, 1024))

	types := log.types()
	require.Len(t, types, 3)
	assert.Equal(t, events.EventTypeCodeAttached, types[0])
	assert.ElementsMatch(t, []events.EventType{events.EventTypeError, events.EventTypeResponse}, types[1:])

	msgs := session.Store().AsRequestMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, conversation.Message{Role: conversation.RoleAssistant, Content: "you asked: what does it print?"}, msgs[2])
}

func TestServeLinesTooLong(t *testing.T) {
	log := &eventLog{}
	session := testSession(log)

	line := `{"type":"askQuestion","text":"` + strings.Repeat("x", 200) + `"}`
	err := serveLines(context.Background(), session, strings.NewReader(line), 64)
	require.Error(t, err)
	assert.Equal(t, []events.EventType{events.EventTypeError}, log.types())
}

func TestMaxLineSize(t *testing.T) {
	ss := settings.NewStepSettings()
	assert.Equal(t, int(2*settings.DefaultMaxAttachmentSize)+64*1024, maxLineSize(ss))
	ss.Attach.MaxSize = 0
	assert.Equal(t, 16*1024*1024, maxLineSize(ss))
}

func TestLoadStepSettingsFromFile(t *testing.T) {
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  engine: local-model\n"), 0o600))
	viper.Set(settings.KeySettingsFile, path)
	viper.Set(settings.KeyAttachMode, "upsert")

	ss, err := loadStepSettings()
	require.NoError(t, err)
	assert.Equal(t, "local-model", ss.Chat.GetEngine())
	assert.Equal(t, settings.AttachModeUpsert, ss.Attach.Mode)
	assert.Equal(t, settings.DefaultMaxResponseTokens, ss.Chat.GetMaxResponseTokens())

	viper.Set(settings.KeySettingsFile, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = loadStepSettings()
	assert.Error(t, err)
}
