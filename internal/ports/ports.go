package ports

import (
	"context"

	"browser-agent/internal/dom"
	"browser-agent/internal/entity"
)

type BrowserManager interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	Scroll(ctx context.Context, direction string, amount int) error
	Screenshot(ctx context.Context, path string) ([]byte, error)
	Snapshot(ctx context.Context, opts dom.CaptureOptions) (*dom.Snapshot, error)
	Resolve(ctx context.Context, ref dom.Ref) (dom.Handle, error)
	EvaluateJS(ctx context.Context, script string, arg any) (any, error)
	Content(ctx context.Context) (string, error)
	IsReady() bool
}

// Highlighter draws and removes the index overlay.
type Highlighter interface {
	Render(ctx context.Context, entries []dom.Entry, focus int) error
	Clear(ctx context.Context) error
}

type AIClient interface {
	SendMessage(ctx context.Context, messages []entity.AIMessage) (*entity.AIResponse, error)
	Provider() string
}
