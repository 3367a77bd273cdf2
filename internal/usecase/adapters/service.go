package adapters

import (
	"context"

	"browser-agent/internal/action"
	"browser-agent/internal/dom"
	"browser-agent/internal/entity"
	"browser-agent/internal/extract"
)

type SessionService interface {
	Observe(ctx context.Context, req entity.ObserveRequest) (*entity.PageState, error)
	Dispatch(ctx context.Context, intent action.Intent) error
	Extract(ctx context.Context, cfg extract.Config) ([]any, error)
	StructuredData(ctx context.Context) (*extract.Structured, error)
	ClearHighlights(ctx context.Context) error
	DefaultObserveRequest() entity.ObserveRequest
	SelectorMap() *dom.SelectorMap
	Ready() bool
}

type AIService interface {
	SendMessage(ctx context.Context, messages []entity.AIMessage) (*entity.AIResponse, error)
	Provider() string
}

type AgentService interface {
	Execute(ctx context.Context, taskDescription string) (*entity.Task, error)
	Stop()
}
