package entity

import (
	"time"

	"github.com/google/uuid"

	"browser-agent/internal/action"
	"browser-agent/internal/dom"
)

type Task struct {
	ID          uuid.UUID
	Description string
	Status      TaskStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Steps       []Step
	Result      string
	Error       string
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

type Step struct {
	ID          uuid.UUID
	Action      action.Kind
	Description string
	Timestamp   time.Time
	Result      ActionResult
	Screenshot  string
}

// ActionResult is what the decision loop learns about one dispatched action.
// Kind is the error code on failure.
type ActionResult struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// ObserveRequest tunes one observation. Highlight draws the index overlay for
// the screenshot; FocusIndex marks one index with the focus color.
type ObserveRequest struct {
	Highlight  bool
	FocusIndex int
	Screenshot bool
	Structured bool
}

// PageState is one observation of the page.
type PageState struct {
	URL            string
	Title          string
	Tree           *dom.Tree
	Selectors      *dom.SelectorMap
	Elements       string
	Structured     string
	Screenshot     []byte
	ScreenshotPath string
	Timestamp      time.Time
}

type AIMessage struct {
	Role      string
	Text      string
	Image     []byte
	MediaType string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AIResponse is a provider decision: an action to dispatch, or completion.
type AIResponse struct {
	Action   action.Intent
	Thought  string
	Complete bool
	Result   string
}
