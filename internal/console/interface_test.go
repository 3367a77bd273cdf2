package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"browser-agent/internal/action"
	"browser-agent/internal/dom"
	"browser-agent/internal/entity"
	"browser-agent/internal/extract"
	"browser-agent/internal/usecase"
	"browser-agent/pkg/apperr"
)

type fakeSession struct {
	observed   []entity.ObserveRequest
	extracted  []extract.Config
	dispatched []action.Intent
	cleared    int
}

func (s *fakeSession) Observe(_ context.Context, req entity.ObserveRequest) (*entity.PageState, error) {
	s.observed = append(s.observed, req)

	return &entity.PageState{
		URL:        "https://example.com",
		Title:      "Example",
		Elements:   "[0]<a href=\"/docs\">Docs</a>\n",
		Structured: "Description: Example domain",
	}, nil
}

func (s *fakeSession) Dispatch(_ context.Context, intent action.Intent) error {
	s.dispatched = append(s.dispatched, intent)

	if nav, ok := intent.(action.GoToURL); ok && !strings.HasPrefix(nav.URL, "http") {
		return apperr.WrapErrorWithReason("Dispatch", apperr.CodeInvalidURL, "invalid_url")
	}

	return nil
}

func (s *fakeSession) Extract(_ context.Context, cfg extract.Config) ([]any, error) {
	s.extracted = append(s.extracted, cfg)

	if cfg.Query == "none" {
		return nil, nil
	}

	return []any{"$42", "$7"}, nil
}

func (s *fakeSession) StructuredData(context.Context) (*extract.Structured, error) {
	return &extract.Structured{Title: "Example", Description: "Example domain"}, nil
}

func (s *fakeSession) ClearHighlights(context.Context) error {
	s.cleared++
	return nil
}

func (s *fakeSession) DefaultObserveRequest() entity.ObserveRequest {
	return entity.ObserveRequest{FocusIndex: dom.NoFocus, Structured: true}
}

func (s *fakeSession) SelectorMap() *dom.SelectorMap { return nil }
func (s *fakeSession) Ready() bool                   { return true }

type fakeAgent struct {
	tasks   []string
	stopped int
	err     error
}

func (a *fakeAgent) Execute(_ context.Context, taskDescription string) (*entity.Task, error) {
	a.tasks = append(a.tasks, taskDescription)

	task := &entity.Task{Description: taskDescription, Status: entity.TaskStatusCompleted, Result: "bought"}
	if a.err != nil {
		task.Status = entity.TaskStatusFailed
		return task, a.err
	}

	return task, nil
}

func (a *fakeAgent) Stop() { a.stopped++ }

type fakeAI struct{}

func (fakeAI) SendMessage(context.Context, []entity.AIMessage) (*entity.AIResponse, error) {
	return nil, errors.New("not used")
}

func (fakeAI) Provider() string { return "fake" }

func newTestInterface(t *testing.T, input string) (*Interface, *fakeSession, *fakeAgent, *bytes.Buffer) {
	t.Helper()

	session := &fakeSession{}
	agent := &fakeAgent{}
	out := &bytes.Buffer{}

	ui := NewInterface(Params{
		Logger:  zap.NewNop(),
		Usecase: &usecase.Service{Agent: agent, Session: session, AI: fakeAI{}},
		Input:   bufio.NewReader(strings.NewReader(input)),
	})
	ui.out = out

	return ui, session, agent, out
}

func TestConsoleCommands(t *testing.T) {
	ui, session, agent, out := newTestInterface(t,
		"help\nobserve\nobserve 3\nextract css .price\nextract xpath@href //a\ndata\ngo https://go.dev\nclear\nbuy milk\nexit\nnever read\n")

	require.NoError(t, ui.loop())

	require.Len(t, session.observed, 2)
	assert.Equal(t, dom.NoFocus, session.observed[0].FocusIndex)
	assert.Equal(t, 3, session.observed[1].FocusIndex)
	assert.True(t, session.observed[1].Highlight)
	assert.True(t, session.observed[1].Screenshot)

	require.Len(t, session.extracted, 2)
	assert.Equal(t, extract.Config{Strategy: extract.StrategyCSS, Query: ".price", Multiple: true}, session.extracted[0])
	assert.Equal(t, extract.Config{Strategy: extract.StrategyXPath, Query: "//a", Attribute: "href", Multiple: true}, session.extracted[1])

	assert.Equal(t, []action.Intent{action.GoToURL{URL: "https://go.dev"}}, session.dispatched)
	assert.Equal(t, 1, session.cleared)
	assert.Equal(t, []string{"buy milk"}, agent.tasks)

	text := out.String()
	assert.Contains(t, text, "Available commands:")
	assert.Contains(t, text, "css, xpath, regex, json_ld, microdata")
	assert.Contains(t, text, "[0]<a href=\"/docs\">Docs</a>")
	assert.Contains(t, text, "Page data:\nDescription: Example domain")
	assert.Contains(t, text, "1. $42\n2. $7\n")
	assert.Contains(t, text, "description: Example domain")
	assert.Contains(t, text, "🌐 Opened https://go.dev")
	assert.Contains(t, text, "Result: bought")
	assert.Contains(t, text, "Shutting down...")

	select {
	case <-ui.Done():
	default:
		t.Fatal("console should be done after exit")
	}
}

func TestConsoleReportsCommandErrors(t *testing.T) {
	ui, session, _, out := newTestInterface(t, "observe x\nextract\nextract css none\ngo\ngo ftp://files")

	require.NoError(t, ui.loop())

	assert.Empty(t, session.observed)
	assert.Len(t, session.extracted, 1)
	assert.Equal(t, 4, strings.Count(out.String(), "Error: "))
	assert.Contains(t, out.String(), "No matches")
}

func TestConsoleTaskFailure(t *testing.T) {
	ui, _, agent, out := newTestInterface(t, "do it\n")
	agent.err = apperr.WrapErrorWithReason("Execute", apperr.CodeMaxIterations, "max_iterations")

	require.NoError(t, ui.loop())

	assert.Contains(t, out.String(), "❌ Task failed: Execute: max_iterations")
	assert.Contains(t, out.String(), "Steps taken: 0")
}

func TestConsoleStop(t *testing.T) {
	ui, _, agent, out := newTestInterface(t, "")

	require.NoError(t, ui.Stop())
	require.NoError(t, ui.Stop())

	assert.Equal(t, 2, agent.stopped)
	assert.ErrorIs(t, ui.ctx.Err(), context.Canceled)
	assert.Contains(t, out.String(), "Goodbye")

	require.NoError(t, ui.loop())
}
