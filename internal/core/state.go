package core

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// State is the run-scoped table shared by every stage of a snapshot: the URL map,
// the downloaded and failed sets and the counters. One State per run.
type State struct {
	mu sync.Mutex

	aliases     map[string]*Resource // every observed spelling -> resource
	downloaded  map[string]*Resource // resolved and final URLs that were fetched
	failed      map[string]Failure
	claims      map[string]chan struct{}
	paths       map[string]string // file -> final URL that owns it
	stylesheets []*Resource
	stats       Stats
}

func NewState() *State {
	return &State{
		aliases:    make(map[string]*Resource),
		downloaded: make(map[string]*Resource),
		failed:     make(map[string]Failure),
		claims:     make(map[string]chan struct{}),
		paths:      make(map[string]string),
	}
}

// Lookup reports whether url was already downloaded, as a resolved or final URL.
func (s *State) Lookup(url string) (*Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.downloaded[url]
	return r, ok
}

// Resolve returns the resource any known spelling maps to.
func (s *State) Resolve(key string) (*Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.aliases[key]
	return r, ok
}

func (s *State) IsFailed(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.failed[url]
	return ok
}

// Claim gives the caller exclusive right to fetch url. When another caller already
// holds the claim, owner is false and done is closed once that caller releases it.
func (s *State) Claim(url string) (owner bool, done <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.claims[url]; ok {
		return false, ch
	}
	ch := make(chan struct{})
	s.claims[url] = ch
	return true, ch
}

func (s *State) Release(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.claims[url]; ok {
		close(ch)
		delete(s.claims, url)
	}
}

// ReservePath returns a file path owned by finalURL. If path already belongs to a
// different final URL a numeric suffix is inserted before the extension.
func (s *State) ReservePath(path, finalURL string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 2; ; n++ {
		owner, taken := s.paths[candidate]
		if !taken || owner == finalURL {
			s.paths[candidate] = finalURL
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
}

// Commit records a freshly written resource under its final URL and the given
// spellings. If another fetch committed the same final URL first, that resource is
// returned and r is discarded by the caller.
func (s *State) Commit(r *Resource, resolved string, spellings ...string) (*Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.downloaded[r.FinalURL]; ok {
		s.linkLocked(existing, resolved, spellings...)
		s.stats.Aliased++
		return existing, false
	}

	s.downloaded[r.FinalURL] = r
	if resolved != "" {
		s.downloaded[resolved] = r
	}
	s.linkLocked(r, resolved, spellings...)
	s.linkLocked(r, "", r.FinalURL)
	delete(s.failed, r.FinalURL)
	delete(s.failed, resolved)

	s.stats.Downloaded++
	s.stats.Bytes += r.Size
	s.stats.count(r.Category)
	if r.Category == CategoryCSS {
		s.stylesheets = append(s.stylesheets, r)
	}
	return r, true
}

// Link aliases spellings to a resource that was already downloaded, without a fetch.
func (s *State) Link(r *Resource, resolved string, spellings ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkLocked(r, resolved, spellings...)
	s.stats.Aliased++
}

func (s *State) linkLocked(r *Resource, resolved string, spellings ...string) {
	if resolved != "" {
		if _, ok := s.downloaded[resolved]; !ok {
			s.downloaded[resolved] = r
		}
	}
	for _, key := range spellings {
		s.aliasLocked(key, r)
	}
	s.aliasLocked(resolved, r)
}

// aliasLocked is append-only: the first mapping for a spelling wins.
func (s *State) aliasLocked(key string, r *Resource) {
	if key == "" {
		return
	}
	if _, ok := s.aliases[key]; !ok {
		s.aliases[key] = r
	}
}

// Fail records that url could not be fetched. A URL already downloaded is never
// moved into the failed set.
func (s *State) Fail(url, reference string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.downloaded[url]; ok {
		return
	}
	if _, ok := s.failed[url]; ok {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.failed[url] = Failure{URL: url, Reference: reference, Error: msg}
	s.stats.Failed++
}

func (s *State) SetTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalResources = n
}

func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// URLMap returns a copy of the alias table as spelling -> local path.
func (s *State) URLMap() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.aliases))
	for k, r := range s.aliases {
		out[k] = r.LocalPath
	}
	return out
}

// Failures returns the failed set sorted by URL.
func (s *State) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Failure, 0, len(s.failed))
	for _, f := range s.failed {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Stylesheets returns downloaded stylesheets in download order.
func (s *State) Stylesheets() []*Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Resource, len(s.stylesheets))
	copy(out, s.stylesheets)
	return out
}
