package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/rendergraph/internal/applier"
	"github.com/specialistvlad/rendergraph/internal/hcl"
	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/specialistvlad/rendergraph/internal/prefs"
	"github.com/specialistvlad/rendergraph/internal/target"
	"github.com/specialistvlad/rendergraph/internal/walker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// safeBuffer is a thread-safe buffer for capturing log output in tests.
type safeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

const docHCL = `
node "viewer" "viewer" { inputs = [node.beauty] }
node "render_list" "queue" { inputs = [node.beauty, node.broken] }
node "task" "beauty" {
  label  = "beauty"
  inputs = [node.res, node.cube]
}
node "resolution" "res" {
  res_x     = %d
  res_y     = 720
  res_scale = 50
}
node "object_display" "cube" {
  object        = "Ghost"
  hide_viewport = true
  hide_render   = true
}
node "reroute" "broken" {}
`

func writeDoc(t *testing.T, dir string, resX int) string {
	t.Helper()
	p := filepath.Join(dir, "doc.hcl")
	require.NoError(t, os.WriteFile(p, []byte(fmt.Sprintf(docHCL, resX)), 0o644))
	return p
}

func setupApp(t *testing.T, cfg Config) (*App, *safeBuffer) {
	t.Helper()
	if cfg.Prefs.LogLevel == "" {
		cfg.Prefs = prefs.Defaults()
		cfg.Prefs.LogLevel = "debug"
	}
	c, err := NewConfig(cfg)
	require.NoError(t, err)

	logs := &safeBuffer{}
	a, err := New(context.Background(), logs, c, hcl.NewLoader())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close(context.Background())
		if os.Getenv("RENDERGRAPH_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return a, logs
}

func storeInt(t *testing.T, a *App, raw string) int64 {
	t.Helper()
	loc, err := locator.Parse(raw)
	require.NoError(t, err)
	h, attr, err := target.Lookup(a.Store(), loc)
	require.NoError(t, err)
	v, err := a.Store().Get(h, attr)
	require.NoError(t, err)
	i, _ := v.AsBigFloat().Int64()
	return i
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{Prefs: prefs.Defaults()})
	assert.ErrorContains(t, err, "document path is required")

	_, err = NewConfig(Config{Paths: []string{"x"}, Mode: "final", Prefs: prefs.Defaults()})
	assert.ErrorContains(t, err, `invalid mode "final"`)

	bad := prefs.Defaults()
	bad.LogFormat = "xml"
	_, err = NewConfig(Config{Paths: []string{"x"}, Prefs: bad})
	assert.ErrorContains(t, err, "invalid preferences")

	c, err := NewConfig(Config{Paths: []string{"x"}, Prefs: prefs.Defaults()})
	require.NoError(t, err)
	assert.Equal(t, applier.Viewer, c.Mode)
}

func TestApp_Apply(t *testing.T) {
	a, logs := setupApp(t, Config{Paths: []string{writeDoc(t, t.TempDir(), 1280)}})

	out, err := a.Apply(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Equal(t, "beauty", out.Task)
	assert.EqualValues(t, 1280, storeInt(t, a, "scene.render.resolution_x"))
	assert.EqualValues(t, 50, storeInt(t, a, "scene.render.resolution_percentage"))

	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "cube", out.Warnings[0].Node)
	msg, ok := a.Tree().Warning("cube")
	assert.True(t, ok)
	assert.Contains(t, msg, "Ghost")

	assert.Contains(t, logs.String(), "update took")
}

func TestApp_ApplyFailsWithoutTask(t *testing.T) {
	a, _ := setupApp(t, Config{Paths: []string{writeDoc(t, t.TempDir(), 1280)}})
	_, err := a.Apply(context.Background(), "broken")
	assert.ErrorIs(t, err, walker.ErrNoTaskReachable)
}

func TestApp_InspectDoesNotWrite(t *testing.T) {
	a, _ := setupApp(t, Config{Paths: []string{writeDoc(t, t.TempDir(), 1280)}})
	plan, err := a.Inspect(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Equal(t, "beauty", plan.Task)
	assert.Equal(t, 0, a.Store().Writes())
}

func TestApp_Queue(t *testing.T) {
	a, _ := setupApp(t, Config{Paths: []string{writeDoc(t, t.TempDir(), 1280)}, Mode: applier.Render})
	items, err := a.Queue(context.Background(), "queue")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.NoError(t, items[0].Err)
	assert.Equal(t, applier.Render, items[0].Outcome.Mode)
	assert.ErrorIs(t, items[1].Err, walker.ErrNoTaskReachable)
}

func TestApp_Trace(t *testing.T) {
	a, logs := setupApp(t, Config{Paths: []string{writeDoc(t, t.TempDir(), 1280)}, Trace: true})
	_, err := a.Apply(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"Name": "rendergraph.pass"`)
}

func TestApp_LoadError(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(p, []byte(`node "task" "a" { inputs = [node.ghost] }`), 0o644))
	c, err := NewConfig(Config{Paths: []string{p}, Prefs: prefs.Defaults()})
	require.NoError(t, err)
	_, err = New(context.Background(), &safeBuffer{}, c, hcl.NewLoader())
	assert.ErrorContains(t, err, "failed to build node graph")
}

func TestApp_Watch(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, 1280)
	cfg := Config{Paths: []string{path}, Prefs: prefs.Defaults()}
	cfg.Prefs.Watch.Debounce = 20 * time.Millisecond
	a, logs := setupApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, "viewer") }()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "Watching documents for changes.")
	}, 5*time.Second, 10*time.Millisecond)

	writeDoc(t, dir, 640)
	require.Eventually(t, func() bool {
		return strings.Count(logs.String(), "update took") >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
