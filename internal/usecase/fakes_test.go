package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"browser-agent/internal/config"
	"browser-agent/internal/dom"
	"browser-agent/internal/entity"
	"browser-agent/pkg/apperr"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.calls...)
}

type fakeHandle struct {
	rec      *recorder
	id       int
	clickErr error
	released bool
}

func (h *fakeHandle) Click(context.Context) error {
	h.rec.record("click %d", h.id)
	return h.clickErr
}

func (h *fakeHandle) Fill(_ context.Context, text string) error {
	h.rec.record("fill %d %s", h.id, text)
	return nil
}

func (h *fakeHandle) Release() {
	h.released = true
}

type fakeBrowser struct {
	rec *recorder

	ready       bool
	url         string
	snapErr     error
	html        string
	handles     map[int]*fakeHandle
	generations []string
	screenshots []string
}

func newFakeBrowser(rec *recorder) *fakeBrowser {
	b := &fakeBrowser{
		rec:     rec,
		ready:   true,
		url:     "https://shop.example/cart",
		html:    `<html><head><meta name="description" content="Cart page"></head><body><p class="total">$42</p></body></html>`,
		handles: map[int]*fakeHandle{},
	}

	for id := 1; id <= 3; id++ {
		b.handles[id] = &fakeHandle{rec: rec, id: id}
	}

	return b
}

func (b *fakeBrowser) Launch(context.Context) error { return nil }
func (b *fakeBrowser) Close(context.Context) error  { return nil }
func (b *fakeBrowser) IsReady() bool                { return b.ready }

func (b *fakeBrowser) Navigate(_ context.Context, url string) error {
	b.rec.record("navigate %s", url)
	b.url = url

	return nil
}

func (b *fakeBrowser) Scroll(_ context.Context, direction string, amount int) error {
	b.rec.record("scroll %s %d", direction, amount)
	return nil
}

func (b *fakeBrowser) Screenshot(_ context.Context, path string) ([]byte, error) {
	b.rec.record("screenshot")
	b.screenshots = append(b.screenshots, path)

	return []byte("jpeg"), nil
}

func (b *fakeBrowser) Snapshot(_ context.Context, opts dom.CaptureOptions) (*dom.Snapshot, error) {
	b.rec.record("snapshot")

	if b.snapErr != nil {
		return nil, b.snapErr
	}

	b.generations = append(b.generations, opts.Generation)

	return cartSnapshot(opts.Generation, b.url), nil
}

func (b *fakeBrowser) Resolve(_ context.Context, ref dom.Ref) (dom.Handle, error) {
	if len(b.generations) == 0 || ref.Generation != b.generations[len(b.generations)-1] {
		return nil, apperr.Wrap("Resolve", apperr.CodeStaleElement, errors.New("registry replaced"), nil)
	}

	h, ok := b.handles[ref.ID]
	if !ok {
		return nil, apperr.Wrap("Resolve", apperr.CodeStaleElement, errors.New("element detached"), nil)
	}

	return h, nil
}

func (b *fakeBrowser) EvaluateJS(context.Context, string, any) (any, error) { return nil, nil }

func (b *fakeBrowser) Content(context.Context) (string, error) {
	b.rec.record("content")
	return b.html, nil
}

type fakeHighlighter struct {
	rec     *recorder
	entries int
	focus   int
}

func (h *fakeHighlighter) Render(_ context.Context, entries []dom.Entry, focus int) error {
	h.rec.record("render")
	h.entries = len(entries)
	h.focus = focus

	return nil
}

func (h *fakeHighlighter) Clear(context.Context) error {
	h.rec.record("clear")
	return nil
}

// cartSnapshot is body > [button "Delete item", input[type=password], a "Docs"],
// registry ids 1..3 and interactive indices 0..2.
func cartSnapshot(generation, url string) *dom.Snapshot {
	style := dom.Style{Display: "block", Visibility: "visible", Opacity: "1", Cursor: "auto"}
	el := func(ref int, tag, text string, y float64, attrs map[string]string) *dom.Node {
		return &dom.Node{
			Type:       dom.ElementNode,
			Ref:        ref,
			TagName:    tag,
			Attributes: attrs,
			Style:      style,
			Rect:       dom.Rect{X: 10, Y: y, Width: 120, Height: 24},
			Text:       text,
		}
	}

	body := el(0, "body", "", 0, nil)
	body.Rect = dom.Rect{Width: 1280, Height: 800}
	body.Children = []*dom.Node{
		el(1, "button", "Delete item", 20, nil),
		el(2, "input", "", 60, map[string]string{"type": "password", "name": "pw"}),
		el(3, "a", "Docs", 100, map[string]string{"href": "/docs"}),
	}

	return &dom.Snapshot{
		Generation: generation,
		URL:        url,
		Title:      "Cart",
		Viewport:   dom.Viewport{Width: 1280, Height: 800},
		Root:       body,
	}
}

type fakeAI struct {
	mu        sync.Mutex
	responses []any
	requests  [][]entity.AIMessage
	onCall    func(call int)
}

func (f *fakeAI) Provider() string { return "fake" }

func (f *fakeAI) SendMessage(_ context.Context, messages []entity.AIMessage) (*entity.AIResponse, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, append([]entity.AIMessage(nil), messages...))

	var next any = &entity.AIResponse{Complete: true, Result: "out of script"}
	if call < len(f.responses) {
		next = f.responses[call]
	}
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(call)
	}

	switch v := next.(type) {
	case error:
		return nil, v
	case *entity.AIResponse:
		return v, nil
	}

	return nil, fmt.Errorf("unexpected scripted response %T", next)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		AppConfig:     &config.AppConfig{OutputDir: t.TempDir()},
		BrowserConfig: &config.BrowserConfig{UseScreenshots: true},
		DOMConfig: &config.DOMConfig{
			ViewportExpansion: 500,
			Highlight:         true,
			MaxDepth:          256,
			MaxNodes:          1000,
		},
		AgentConfig: &config.AgentConfig{MaxIterations: 5, MaxConsecutiveErrors: 3},
	}
}

type fixture struct {
	rec         *recorder
	browser     *fakeBrowser
	highlighter *fakeHighlighter
	session     *Session
	ai          *fakeAI
	agent       *AgentService
	out         *strings.Builder
}

func newFixture(t *testing.T, confirmInput string) *fixture {
	t.Helper()

	rec := &recorder{}
	cfg := testConfig(t)
	f := &fixture{
		rec:         rec,
		browser:     newFakeBrowser(rec),
		highlighter: &fakeHighlighter{rec: rec},
		ai:          &fakeAI{},
		out:         &strings.Builder{},
	}

	f.session = NewSession(SessionParams{
		Config:      cfg,
		Logger:      zap.NewNop(),
		Browser:     f.browser,
		Highlighter: f.highlighter,
	})

	f.agent = NewAgentService(AgentServiceParams{
		Config:  cfg,
		Logger:  zap.NewNop(),
		Session: f.session,
		AI:      f.ai,
	})
	f.agent.out = f.out
	f.agent.confirm = bufio.NewReader(strings.NewReader(confirmInput))
	f.agent.pause = 0

	return f
}
