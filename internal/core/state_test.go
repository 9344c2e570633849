package core

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResource(final, local string, cat Category) *Resource {
	return &Resource{
		FinalURL:  final,
		File:      filepath.Join("out", filepath.FromSlash(local)),
		LocalPath: local,
		Category:  cat,
		Size:      10,
	}
}

func TestState_CommitAliasesEverySpelling(t *testing.T) {
	s := NewState()
	r := newResource("https://example.com/static/app.js", "assets/js/app.js", CategoryJS)

	got, fresh := s.Commit(r, "https://example.com/app.js", "app.js")
	require.True(t, fresh)
	assert.Same(t, r, got)

	m := s.URLMap()
	assert.Equal(t, "assets/js/app.js", m["app.js"])
	assert.Equal(t, "assets/js/app.js", m["https://example.com/app.js"])
	assert.Equal(t, "assets/js/app.js", m["https://example.com/static/app.js"])

	_, ok := s.Lookup("https://example.com/app.js")
	assert.True(t, ok)
	_, ok = s.Lookup("https://example.com/static/app.js")
	assert.True(t, ok)

	st := s.Stats()
	assert.Equal(t, 1, st.Downloaded)
	assert.Equal(t, 1, st.JSFiles)
	assert.Equal(t, int64(10), st.Bytes)
}

func TestState_CommitConvergingFinalURL(t *testing.T) {
	s := NewState()
	first := newResource("https://example.com/logo.png", "assets/images/logo.png", CategoryImages)
	_, fresh := s.Commit(first, "https://example.com/logo.png", "logo.png")
	require.True(t, fresh)

	second := newResource("https://example.com/logo.png", "assets/images/logo-2.png", CategoryImages)
	got, fresh := s.Commit(second, "https://example.com/old-logo.png", "/old-logo.png")
	assert.False(t, fresh)
	assert.Same(t, first, got)

	m := s.URLMap()
	assert.Equal(t, "assets/images/logo.png", m["/old-logo.png"])
	assert.Equal(t, "assets/images/logo.png", m["https://example.com/old-logo.png"])

	st := s.Stats()
	assert.Equal(t, 1, st.Downloaded)
	assert.Equal(t, 1, st.Images)
	assert.Equal(t, 1, st.Aliased)
}

func TestState_AliasIsAppendOnly(t *testing.T) {
	s := NewState()
	a := newResource("https://a.example/x.css", "assets/css/x.css", CategoryCSS)
	b := newResource("https://b.example/x.css", "assets/css/x-2.css", CategoryCSS)
	s.Commit(a, "https://a.example/x.css", "x.css")
	s.Commit(b, "https://b.example/x.css", "x.css")

	assert.Equal(t, "assets/css/x.css", s.URLMap()["x.css"])
	assert.Len(t, s.Stylesheets(), 2)
}

func TestState_FailedAndDownloadedAreDisjoint(t *testing.T) {
	s := NewState()
	s.Fail("https://example.com/a.png", "a.png", errors.New("timeout"))
	s.Fail("https://example.com/a.png", "a.png", errors.New("timeout again"))
	assert.True(t, s.IsFailed("https://example.com/a.png"))
	assert.Equal(t, 1, s.Stats().Failed)

	r := newResource("https://example.com/a.png", "assets/images/a.png", CategoryImages)
	s.Commit(r, "https://example.com/b.png", "b.png")
	assert.False(t, s.IsFailed("https://example.com/a.png"))
	assert.Empty(t, s.Failures())
	assert.Equal(t, 1, s.Stats().Failed, "failure counter never decrements")

	s.Fail("https://example.com/b.png", "b.png", errors.New("late"))
	assert.False(t, s.IsFailed("https://example.com/b.png"))
}

func TestState_Claim(t *testing.T) {
	s := NewState()
	owner, done := s.Claim("https://example.com/a.js")
	require.True(t, owner)

	again, wait := s.Claim("https://example.com/a.js")
	assert.False(t, again)
	assert.Equal(t, done, wait)

	s.Release("https://example.com/a.js")
	select {
	case <-wait:
	default:
		t.Fatal("waiters not released")
	}

	owner, _ = s.Claim("https://example.com/a.js")
	assert.True(t, owner)
}

func TestState_ReservePath(t *testing.T) {
	s := NewState()
	p := filepath.Join("out", "js", "app.js")

	assert.Equal(t, p, s.ReservePath(p, "https://a.example/app.js"))
	assert.Equal(t, p, s.ReservePath(p, "https://a.example/app.js"))
	assert.Equal(t, filepath.Join("out", "js", "app-2.js"), s.ReservePath(p, "https://b.example/app.js"))
	assert.Equal(t, filepath.Join("out", "js", "app-3.js"), s.ReservePath(p, "https://c.example/app.js"))
}
