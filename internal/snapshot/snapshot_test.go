package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaniidev/pagesnap/internal/config"
	"github.com/shaniidev/pagesnap/internal/report"
	"github.com/shaniidev/pagesnap/internal/ui"
)

func TestMain(m *testing.M) {
	ui.Out = io.Discard
	os.Exit(m.Run())
}

type counter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (c *counter) get(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[path]
}

func (c *counter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.hits {
		n += v
	}
	return n
}

// newSite serves a small site. /slow.js never answers within a test timeout.
func newSite(t *testing.T) (*httptest.Server, *counter) {
	t.Helper()
	c := &counter{hits: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		io.WriteString(w, "body { background: url(icon.png) no-repeat; }\n")
	})
	mux.HandleFunc("/icon.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/a.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		io.WriteString(w, `@import "b.css"; .a{background:url(old.png)}`)
	})
	mux.HandleFunc("/b.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		io.WriteString(w, `@import url(a.css); .b{background:url(/img/i.png)}`)
	})
	mux.Handle("/old.png", http.RedirectHandler("/img/i.png", http.StatusMovedPermanently))
	mux.HandleFunc("/img/i.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/fast.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		io.WriteString(w, "console.log('fast')")
	})
	mux.HandleFunc("/slow.js", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.hits[r.URL.Path]++
		c.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newConfig(t *testing.T, root, baseURL string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Input = filepath.Join(root, "www", "index.html")
	cfg.OutputDir = filepath.Join(root, "www", "assets")
	cfg.LogsDir = filepath.Join(root, "logs")
	cfg.BaseURL = baseURL
	cfg.Delay = 0
	cfg.Timeout = 5 * time.Second
	cfg.Silent = true
	require.NoError(t, cfg.Validate())
	return cfg
}

func writeDocument(t *testing.T, cfg *config.Config, html string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Input), 0755))
	require.NoError(t, os.WriteFile(cfg.Input, []byte(html), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_StylesheetAndNestedImage(t *testing.T) {
	srv, hits := newSite(t)
	root := t.TempDir()
	cfg := newConfig(t, root, srv.URL+"/")
	writeDocument(t, cfg, `<html><head><link rel="stylesheet" href="style.css"></head><body><img src="/icon.png"></body></html>`)
	logger, _ := test.NewNullLogger()

	rep, err := New(cfg, logger).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, hits.get("/icon.png"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "images", "icon.png"))
	assert.Equal(t, "body { background: url(../images/icon.png) no-repeat; }\n",
		readFile(t, filepath.Join(cfg.OutputDir, "css", "style.css")))
	assert.Equal(t,
		`<html><head><link rel="stylesheet" href="assets/css/style.css"></head><body><img src="assets/images/icon.png"></body></html>`,
		readFile(t, cfg.Input))

	assert.True(t, rep.DocumentRewritten)
	assert.Equal(t, []string{"assets/css/style.css"}, rep.Stylesheets)
	assert.Equal(t, 2, rep.Stats.TotalResources)
	assert.Equal(t, 2, rep.Stats.Downloaded)
	assert.Empty(t, rep.FailedURLs)

	for _, dir := range []string{"css", "js", "images", "fonts", "videos", "other"} {
		assert.DirExists(t, filepath.Join(cfg.OutputDir, dir))
	}
	assert.FileExists(t, filepath.Join(cfg.LogsDir, "download_report.json"))
	assert.FileExists(t, filepath.Join(cfg.LogsDir, "download_report.txt"))
}

func TestRun_ImageOnlyReferencedFromStylesheet(t *testing.T) {
	srv, hits := newSite(t)
	root := t.TempDir()
	cfg := newConfig(t, root, srv.URL+"/")
	writeDocument(t, cfg, `<link rel="stylesheet" href="style.css">`)

	rep, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, hits.get("/style.css"))
	assert.Equal(t, 1, hits.get("/icon.png"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "images", "icon.png"))
	assert.Equal(t, "body { background: url(../images/icon.png) no-repeat; }\n",
		readFile(t, filepath.Join(cfg.OutputDir, "css", "style.css")))
	assert.Equal(t, `<link rel="stylesheet" href="assets/css/style.css">`, readFile(t, cfg.Input))
	assert.Equal(t, 2, rep.Stats.Downloaded)
	assert.Equal(t, "assets/images/icon.png", rep.URLMap[srv.URL+"/icon.png"])
}

func TestRun_InlineStyles(t *testing.T) {
	srv, hits := newSite(t)
	root := t.TempDir()
	cfg := newConfig(t, root, srv.URL+"/")
	writeDocument(t, cfg, `<style>.hero { background: url('/icon.png') }</style><div style="background:url(fast.js)"></div>`)

	_, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, hits.get("/icon.png"))
	assert.Equal(t, 1, hits.get("/fast.js"))
	assert.Equal(t,
		`<style>.hero { background: url('assets/images/icon.png') }</style><div style="background:url(assets/js/fast.js)"></div>`,
		readFile(t, cfg.Input))
}

func TestRun_MutuallyImportingStylesheets(t *testing.T) {
	srv, hits := newSite(t)
	root := t.TempDir()
	cfg := newConfig(t, root, srv.URL+"/")
	cfg.Concurrency = 1
	writeDocument(t, cfg, `<link rel="stylesheet" href="/a.css">`)

	rep, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, hits.get("/a.css"))
	assert.Equal(t, 1, hits.get("/b.css"))
	assert.Equal(t, 1, hits.get("/img/i.png"))
	assert.Equal(t, `@import "b.css"; .a{background:url(../images/i.png)}`,
		readFile(t, filepath.Join(cfg.OutputDir, "css", "a.css")))
	assert.Equal(t, `@import url(a.css); .b{background:url(../images/i.png)}`,
		readFile(t, filepath.Join(cfg.OutputDir, "css", "b.css")))
	assert.Equal(t, 3, rep.Stats.Downloaded)
	assert.Empty(t, rep.FailedURLs)
}

func TestRun_TimeoutLeavesReferenceUnrewritten(t *testing.T) {
	srv, _ := newSite(t)
	root := t.TempDir()
	cfg := newConfig(t, root, srv.URL+"/")
	cfg.Timeout = 100 * time.Millisecond
	writeDocument(t, cfg, `<script src="/slow.js"></script><script src="/fast.js"></script>`)

	rep, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{srv.URL + "/slow.js"}, rep.FailedURLs)
	assert.NotContains(t, rep.URLMap, "/slow.js")
	assert.Equal(t, `<script src="/slow.js"></script><script src="assets/js/fast.js"></script>`, readFile(t, cfg.Input))
	assert.Equal(t, 1, rep.Stats.Failed)
	assert.Contains(t, readFile(t, filepath.Join(cfg.LogsDir, "download_report.txt")), srv.URL+"/slow.js")
}

func TestRun_MissingInput(t *testing.T) {
	srv, hits := newSite(t)
	root := t.TempDir()
	cfg := newConfig(t, root, srv.URL+"/")

	rep, err := New(cfg, nil).Run(context.Background())

	assert.Nil(t, rep)
	assert.True(t, errors.Is(err, ErrInputMissing))
	assert.NoDirExists(t, cfg.OutputDir)
	assert.NoDirExists(t, cfg.LogsDir)
	assert.Zero(t, hits.total())
}

func TestCheckInput(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorIs(t, CheckInput(dir), ErrInputMissing)
	assert.ErrorIs(t, CheckInput(filepath.Join(dir, "index.html")), ErrInputMissing)

	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0644))
	assert.NoError(t, CheckInput(path))
}

func TestRun_InlineSchemesOnly(t *testing.T) {
	srv, hits := newSite(t)
	root := t.TempDir()
	cfg := newConfig(t, root, srv.URL+"/")
	html := `<img src="data:image/png;base64,AAAA"><a href="javascript:void(0)">x</a>`
	writeDocument(t, cfg, html)

	rep, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, hits.total())
	assert.False(t, rep.DocumentRewritten)
	assert.Empty(t, rep.URLMap)
	assert.Equal(t, html, readFile(t, cfg.Input))
}

func TestRun_OptionalOutputs(t *testing.T) {
	srv, _ := newSite(t)
	root := t.TempDir()
	cfg := newConfig(t, root, srv.URL+"/")
	cfg.ReportFormat = "yaml"
	cfg.MigrationNotes = filepath.Join(root, "MIGRATION.txt")
	cfg.Database = filepath.Join(root, "runs.db")
	writeDocument(t, cfg, `<script src="fast.js"></script>`)
	logger, hook := test.NewNullLogger()

	recorded := func() []string {
		var out []string
		for _, e := range hook.AllEntries() {
			if strings.HasPrefix(e.Message, "Run recorded") {
				out = append(out, e.Message)
			}
		}
		return out
	}

	rep, err := New(cfg, logger).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{fmt.Sprintf("Run recorded in %s (1 in history)", cfg.Database)}, recorded())

	writeDocument(t, cfg, `<script src="fast.js"></script>`)
	_, err = New(cfg, logger).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, recorded(), 2)
	assert.Equal(t, fmt.Sprintf("Run recorded in %s (2 in history)", cfg.Database), recorded()[1])

	assert.FileExists(t, filepath.Join(cfg.LogsDir, "download_report.yaml"))
	assert.Contains(t, readFile(t, cfg.MigrationNotes), "fast.js\n  -> assets/js/fast.js")

	store, err := report.OpenStore(cfg.Database)
	require.NoError(t, err)
	defer store.Close()
	var local string
	require.NoError(t, store.QueryRow(`SELECT local_path FROM url_map WHERE run_id = ? AND url = ?`,
		rep.RunID, "fast.js").Scan(&local))
	assert.Equal(t, "assets/js/fast.js", local)
}
