package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-agent/internal/action"
	"browser-agent/internal/dom"
	"browser-agent/internal/entity"
	"browser-agent/internal/extract"
	"browser-agent/pkg/apperr"
)

func observe(t *testing.T, f *fixture) *entity.PageState {
	t.Helper()

	state, err := f.session.Observe(context.Background(), f.session.DefaultObserveRequest())
	require.NoError(t, err)

	return state
}

func TestObserveHighlightsAroundScreenshot(t *testing.T) {
	f := newFixture(t, "")

	state := observe(t, f)

	assert.Equal(t, []string{"clear", "snapshot", "render", "screenshot", "clear", "content"}, f.rec.list())

	assert.Equal(t, "https://shop.example/cart", state.URL)
	assert.Equal(t, "Cart", state.Title)
	assert.Equal(t, 3, state.Selectors.Len())
	assert.Equal(t, f.browser.generations[0], state.Selectors.Generation())
	assert.Equal(t, 3, f.highlighter.entries)
	assert.Equal(t, dom.NoFocus, f.highlighter.focus)

	assert.Equal(t, "[0]<button>Delete item</button>\n"+
		"[1]<input type=\"password\" name=\"pw\"></input>\n"+
		"[2]<a href=\"/docs\">Docs</a>\n", state.Elements)

	assert.Equal(t, []byte("jpeg"), state.Screenshot)
	assert.Equal(t, "screenshots", filepath.Base(filepath.Dir(state.ScreenshotPath)))
	assert.True(t, strings.HasSuffix(state.ScreenshotPath, ".jpg"))
	assert.Contains(t, state.Structured, "Description: Cart page")
}

func TestObserveWithoutHighlight(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.session.Observe(context.Background(), entity.ObserveRequest{FocusIndex: dom.NoFocus})
	require.NoError(t, err)

	assert.Equal(t, []string{"clear", "snapshot"}, f.rec.list())
}

func TestObserveFocusIndex(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.session.Observe(context.Background(), entity.ObserveRequest{Highlight: true, FocusIndex: 2, Screenshot: true})
	require.NoError(t, err)

	assert.Equal(t, 2, f.highlighter.focus)
}

func TestObserveFailures(t *testing.T) {
	f := newFixture(t, "")
	f.browser.ready = false

	_, err := f.session.Observe(context.Background(), f.session.DefaultObserveRequest())
	assert.Equal(t, apperr.CodeBrowserNotReady, apperr.CodeOf(err))

	f.browser.ready = true
	f.browser.snapErr = apperr.Wrap("Snapshot", apperr.CodeInternal, errors.New("page crashed"), nil)

	_, err = f.session.Observe(context.Background(), f.session.DefaultObserveRequest())
	assert.ErrorIs(t, err, f.browser.snapErr)
	assert.Nil(t, f.session.SelectorMap())
}

func TestFailedObservationDropsPreviousSelectorMap(t *testing.T) {
	f := newFixture(t, "")
	observe(t, f)
	require.Equal(t, 3, f.session.SelectorMap().Len())

	f.browser.snapErr = apperr.Wrap("Snapshot", apperr.CodeInternal, errors.New("page crashed"), nil)

	_, err := f.session.Observe(context.Background(), f.session.DefaultObserveRequest())
	require.ErrorIs(t, err, f.browser.snapErr)

	assert.Nil(t, f.session.SelectorMap())
	assert.Nil(t, f.session.Tree())

	before := len(f.rec.list())
	err = f.session.Dispatch(context.Background(), action.ClickElement{Index: 0})
	assert.Equal(t, apperr.CodeIndexNotFound, apperr.CodeOf(err))
	assert.Len(t, f.rec.list(), before, "no driver call for an index from a superseded build")
}

func TestDispatch(t *testing.T) {
	amount := 300

	tests := []struct {
		name     string
		intent   action.Intent
		wantCode string
		wantCall string
	}{
		{name: "click", intent: action.ClickElement{Index: 0}, wantCall: "click 1"},
		{name: "input overwrites", intent: action.InputText{Index: 1, Text: "hunter2"}, wantCall: "fill 2 hunter2"},
		{name: "missing index", intent: action.ClickElement{Index: 9}, wantCode: apperr.CodeIndexNotFound},
		{name: "missing input index", intent: action.InputText{Index: 3, Text: "x"}, wantCode: apperr.CodeIndexNotFound},
		{name: "navigate", intent: action.GoToURL{URL: "https://go.dev/doc"}, wantCall: "navigate https://go.dev/doc"},
		{name: "relative url", intent: action.GoToURL{URL: "/docs"}, wantCode: apperr.CodeInvalidURL},
		{name: "non http scheme", intent: action.GoToURL{URL: "ftp://files.example"}, wantCode: apperr.CodeInvalidURL},
		{name: "javascript url", intent: action.GoToURL{URL: "javascript:alert(1)"}, wantCode: apperr.CodeInvalidURL},
		{name: "no host", intent: action.GoToURL{URL: "https://"}, wantCode: apperr.CodeInvalidURL},
		{name: "scroll default amount", intent: action.Scroll{Direction: action.DirectionDown}, wantCall: "scroll down 0"},
		{name: "scroll amount", intent: action.Scroll{Direction: action.DirectionUp, Amount: &amount}, wantCall: "scroll up 300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			observe(t, f)
			before := len(f.rec.list())

			err := f.session.Dispatch(context.Background(), tt.intent)

			calls := f.rec.list()[before:]
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperr.CodeOf(err))
				assert.Empty(t, calls)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, []string{tt.wantCall}, calls)
		})
	}
}

func TestDispatchReleasesHandle(t *testing.T) {
	f := newFixture(t, "")
	observe(t, f)

	f.browser.handles[1].clickErr = apperr.Wrap("Click", apperr.CodeActionFailed, errors.New("covered"), nil)

	err := f.session.Dispatch(context.Background(), action.ClickElement{Index: 0})
	assert.Equal(t, apperr.CodeActionFailed, apperr.CodeOf(err))
	assert.True(t, f.browser.handles[1].released)
}

func TestDispatchStaleElement(t *testing.T) {
	f := newFixture(t, "")
	observe(t, f)

	delete(f.browser.handles, 3)

	err := f.session.Dispatch(context.Background(), action.ClickElement{Index: 2})
	assert.Equal(t, apperr.CodeStaleElement, apperr.CodeOf(err))
}

func TestDispatchStaleAfterRegistryReplaced(t *testing.T) {
	f := newFixture(t, "")
	observe(t, f)
	stale := f.session.SelectorMap()

	observe(t, f)
	entry, ok := stale.Lookup(0)
	require.True(t, ok)

	_, err := f.browser.Resolve(context.Background(), entry.Ref)
	assert.Equal(t, apperr.CodeStaleElement, apperr.CodeOf(err))
}

func TestNavigationInvalidatesSelectorMap(t *testing.T) {
	f := newFixture(t, "")
	observe(t, f)
	require.Equal(t, 3, f.session.SelectorMap().Len())

	require.NoError(t, f.session.Dispatch(context.Background(), action.GoToURL{URL: "https://example.com"}))
	assert.Nil(t, f.session.SelectorMap())

	err := f.session.Dispatch(context.Background(), action.ClickElement{Index: 0})
	assert.Equal(t, apperr.CodeIndexNotFound, apperr.CodeOf(err))
}

func TestDispatchBeforeObserve(t *testing.T) {
	f := newFixture(t, "")

	err := f.session.Dispatch(context.Background(), action.ClickElement{Index: 0})
	assert.Equal(t, apperr.CodeIndexNotFound, apperr.CodeOf(err))

	err = f.session.Dispatch(context.Background(), nil)
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestSessionExtract(t *testing.T) {
	f := newFixture(t, "")

	values, err := f.session.Extract(context.Background(), extract.Config{Strategy: extract.StrategyCSS, Query: ".total"})
	require.NoError(t, err)
	assert.Equal(t, []any{"$42"}, values)

	_, err = f.session.Extract(context.Background(), extract.Config{Strategy: "soup"})
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))

	data, err := f.session.StructuredData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Cart page", data.Description)
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("http://localhost:8080/path?q=1"))
	assert.NoError(t, ValidateURL("HTTPS://Example.com"))
	assert.Error(t, ValidateURL("example.com"))
	assert.Error(t, ValidateURL("://bad"))
}
