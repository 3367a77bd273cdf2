package cdp

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"browser-agent/internal/config"
	"browser-agent/internal/dom"
	"browser-agent/internal/overlay"
	"browser-agent/pkg/apperr"
)

var chromeNames = []string{
	"headless-shell",
	"headless_shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

const fixturePage = `<!doctype html>
<html>
<head><title>Fixture</title></head>
<body style="margin:0;height:700px">
<button id="buy" style="position:absolute;left:10px;top:10px;width:100px;height:30px">Buy</button>
<div id="hidden" style="display:none"><button id="ghost">Ghost</button></div>
<div id="host" style="position:absolute;left:10px;top:60px;width:200px;height:40px"></div>
<iframe id="frame" style="position:absolute;left:50px;top:200px;width:300px;height:150px;border:0"
  srcdoc="<body style='margin:0;height:150px'><a id='inner' href='#next' style='position:absolute;left:20px;top:30px;width:80px;height:20px'>Inner</a></body>"></iframe>
<script>
document.getElementById('host').attachShadow({ mode: 'open' }).innerHTML =
  '<button id="shadowed" style="width:90px;height:25px">Shadow</button>';
</script>
</body>
</html>`

// startPage launches a headless browser on the fixture page. The test is
// skipped when no Chromium binary is installed.
func startPage(t *testing.T) *Manager {
	t.Helper()

	if testing.Short() {
		t.Skip("browser test in short mode")
	}

	found := false
	for _, name := range chromeNames {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("no Chromium binary on PATH")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, fixturePage)
	}))
	t.Cleanup(srv.Close)

	m := NewManager(Params{
		Config: &config.Config{BrowserConfig: &config.BrowserConfig{
			Headless:       true,
			Timeout:        10000,
			ViewportWidth:  1024,
			ViewportHeight: 768,
		}},
		Logger: zap.NewNop(),
	})

	ctx := context.Background()
	if err := m.Launch(ctx); err != nil {
		t.Skipf("browser did not start: %v", err)
	}
	t.Cleanup(func() { _ = m.Close(ctx) })

	require.NoError(t, m.Navigate(ctx, srv.URL))

	// The srcdoc frame may finish after the top document.
	require.Eventually(t, func() bool {
		snap, err := m.Snapshot(ctx, dom.CaptureOptions{Generation: "wait"})
		return err == nil && findNode(snap.Root, "inner") != nil
	}, 5*time.Second, 100*time.Millisecond)

	return m
}

func findNode(root *dom.Node, id string) *dom.Node {
	if root == nil {
		return nil
	}

	if v, ok := root.Attr("id"); ok && v == id {
		return root
	}

	for _, child := range root.Children {
		if n := findNode(child, id); n != nil {
			return n
		}
	}

	return nil
}

func countNodes(root *dom.Node) int {
	if root == nil {
		return 0
	}

	n := 1
	for _, child := range root.Children {
		n += countNodes(child)
	}

	return n
}

func snapshot(t *testing.T, m *Manager, opts dom.CaptureOptions) *dom.Snapshot {
	t.Helper()

	snap, err := m.Snapshot(context.Background(), opts)
	require.NoError(t, err)
	require.NotNil(t, snap.Root)

	return snap
}

func indexedIDs(selectors *dom.SelectorMap) []string {
	var ids []string
	for _, e := range selectors.Entries() {
		ids = append(ids, e.Descriptor.ID)
	}

	return ids
}

func overlayPresent(t *testing.T, m *Manager) bool {
	t.Helper()

	res, err := m.EvaluateJS(context.Background(), `(id) => document.getElementById(id) !== null`, overlay.ContainerID)
	require.NoError(t, err)

	present, ok := res.(bool)
	require.True(t, ok, "unexpected result %v", res)

	return present
}

func TestSnapshotShape(t *testing.T) {
	m := startPage(t)
	generation := uuid.NewString()

	snap := snapshot(t, m, dom.CaptureOptions{Generation: generation})

	assert.Equal(t, generation, snap.Generation)
	assert.Equal(t, "Fixture", snap.Title)
	assert.Equal(t, "body", snap.Root.Tag())
	assert.False(t, snap.Truncated)
	assert.Equal(t, 1024.0, snap.Viewport.Width)

	buy := findNode(snap.Root, "buy")
	require.NotNil(t, buy)
	assert.Equal(t, "Buy", buy.Text)
	assert.Equal(t, dom.Rect{X: 10, Y: 10, Width: 100, Height: 30}, buy.Rect)

	hidden := findNode(snap.Root, "hidden")
	require.NotNil(t, hidden)
	assert.Equal(t, "none", hidden.Style.Display)

	shadowed := findNode(findNode(snap.Root, "host"), "shadowed")
	require.NotNil(t, shadowed, "open shadow root content is captured under its host")

	inner := findNode(findNode(snap.Root, "frame"), "inner")
	require.NotNil(t, inner, "same-origin frame content is captured under the iframe")
	assert.Equal(t, 70.0, inner.Rect.X)
	assert.Equal(t, 230.0, inner.Rect.Y)

	tree, selectors := dom.Build(snap, dom.DefaultOptions())
	require.False(t, tree.Empty())

	ids := indexedIDs(selectors)
	assert.Contains(t, ids, "buy")
	assert.Contains(t, ids, "shadowed")
	assert.Contains(t, ids, "inner")
	assert.NotContains(t, ids, "ghost")

	tree.Root.Walk(func(d *dom.ElementDescriptor) bool {
		assert.NotEqual(t, "hidden", d.ID)
		return true
	})
}

func TestSnapshotLimits(t *testing.T) {
	m := startPage(t)

	full := snapshot(t, m, dom.CaptureOptions{Generation: uuid.NewString()})

	capped := snapshot(t, m, dom.CaptureOptions{Generation: uuid.NewString(), MaxNodes: 3})
	assert.True(t, capped.Truncated)
	assert.LessOrEqual(t, countNodes(capped.Root), 3)
	assert.Less(t, countNodes(capped.Root), countNodes(full.Root))

	shallow := snapshot(t, m, dom.CaptureOptions{Generation: uuid.NewString(), MaxDepth: 1})
	assert.NotNil(t, findNode(shallow.Root, "buy"))
	assert.NotNil(t, findNode(shallow.Root, "frame"))
	assert.Nil(t, findNode(shallow.Root, "ghost"))
	assert.Nil(t, findNode(shallow.Root, "inner"))
	assert.Nil(t, findNode(shallow.Root, "shadowed"))
}

func TestOverlayRenderAndClear(t *testing.T) {
	m := startPage(t)
	ctx := context.Background()

	snap := snapshot(t, m, dom.CaptureOptions{Generation: uuid.NewString()})
	_, selectors := dom.Build(snap, dom.DefaultOptions())
	require.Positive(t, selectors.Len())

	renderer := overlay.NewRenderer(m, zap.NewNop(), time.Minute)

	require.NoError(t, renderer.Render(ctx, selectors.Entries(), 0))
	assert.True(t, overlayPresent(t, m))

	drawn := snapshot(t, m, dom.CaptureOptions{Generation: uuid.NewString()})
	assert.NotNil(t, findNode(drawn.Root, overlay.ContainerID))

	require.NoError(t, renderer.Clear(ctx))
	assert.False(t, overlayPresent(t, m))
	require.NoError(t, renderer.Clear(ctx), "clearing twice is a no-op")

	cleared := snapshot(t, m, dom.CaptureOptions{Generation: uuid.NewString()})
	assert.Nil(t, findNode(cleared.Root, overlay.ContainerID))

	data, err := m.Screenshot(ctx, "")
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
	assert.False(t, overlayPresent(t, m))
}

func TestResolveAcrossGenerations(t *testing.T) {
	m := startPage(t)
	ctx := context.Background()

	first := snapshot(t, m, dom.CaptureOptions{Generation: uuid.NewString()})
	_, selectors := dom.Build(first, dom.DefaultOptions())

	entry, ok := selectors.Lookup(0)
	require.True(t, ok)

	handle, err := m.Resolve(ctx, entry.Ref)
	require.NoError(t, err)
	handle.Release()

	second := snapshot(t, m, dom.CaptureOptions{Generation: uuid.NewString()})

	_, err = m.Resolve(ctx, entry.Ref)
	assert.Equal(t, apperr.CodeStaleElement, apperr.CodeOf(err))

	_, current := dom.Build(second, dom.DefaultOptions())
	fresh, ok := current.Lookup(0)
	require.True(t, ok)

	_, err = m.EvaluateJS(ctx, `(id) => document.getElementById(id).remove()`, fresh.Descriptor.ID)
	require.NoError(t, err)

	_, err = m.Resolve(ctx, fresh.Ref)
	assert.Equal(t, apperr.CodeStaleElement, apperr.CodeOf(err), "removed element is stale")
}
