// Package rewrite substitutes local paths for remote references in document text.
//
// The document is treated as text, never re-serialized: bytes outside replaced
// spans are preserved exactly. A reference is only replaced where it is wrapped
// in quotes or parentheses, or delimited like an entry of a srcset list.
package rewrite

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// A reference is replaced only where the byte before it is a lead and the byte
// after it a trail, or where it sits directly inside parentheses.
const (
	leads  = "\"' ,\n\t"
	trails = "\"' ,\n\t"
)

// Result is the outcome of rewriting one text.
type Result struct {
	Text    string
	Changed bool
	Matched []string // URL map keys that were substituted, longest first
}

type candidate struct {
	spelling string
	key      string
	local    string
}

// Document rewrites every delimited occurrence of a urlMap key with its local
// path in one left-to-right pass. At each position keys are tried longest first,
// so a key that is a substring of another never claims part of the longer one,
// and replaced text is never scanned again.
func Document(text string, urlMap map[string]string) Result {
	keys := present(text, urlMap)
	if len(keys) == 0 {
		return Result{Text: text}
	}

	byFirst := make(map[byte][]candidate)
	for _, k := range keys {
		v := urlMap[k]
		byFirst[k[0]] = append(byFirst[k[0]], candidate{spelling: k, key: k, local: v})
		if esc := escapeAmp(k); esc != k {
			byFirst[esc[0]] = append(byFirst[esc[0]], candidate{spelling: esc, key: k, local: v})
		}
	}
	for _, cs := range byFirst {
		sort.SliceStable(cs, func(i, j int) bool {
			return len(cs[i].spelling) > len(cs[j].spelling)
		})
	}

	var b strings.Builder
	hits := make(map[string]bool)
	last := 0
	for i := 1; i < len(text); i++ {
		cs, ok := byFirst[text[i]]
		if !ok {
			continue
		}
		for _, c := range cs {
			end := i + len(c.spelling)
			if end >= len(text) || text[i:end] != c.spelling || !delimited(text[i-1], text[end]) {
				continue
			}
			if b.Len() == 0 {
				b.Grow(len(text))
			}
			b.WriteString(text[last:i])
			b.WriteString(c.local)
			hits[c.key] = true
			last = end
			i = end - 1
			break
		}
	}
	if len(hits) == 0 {
		return Result{Text: text}
	}
	b.WriteString(text[last:])

	matched := make([]string, 0, len(hits))
	for _, k := range keys {
		if hits[k] {
			matched = append(matched, k)
		}
	}
	out := b.String()
	return Result{Text: out, Changed: out != text, Matched: matched}
}

func delimited(before, after byte) bool {
	if before == '(' && after == ')' {
		return true
	}
	return strings.IndexByte(leads, before) >= 0 && strings.IndexByte(trails, after) >= 0
}

// File rewrites the document at path in place. It writes only when a
// substitution occurred.
func File(path string, urlMap map[string]string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read document: %w", err)
	}

	res := Document(string(data), urlMap)
	if !res.Changed {
		return res, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return res, fmt.Errorf("failed to stat document: %w", err)
	}
	if err := os.WriteFile(path, []byte(res.Text), info.Mode().Perm()); err != nil {
		return res, fmt.Errorf("failed to write document: %w", err)
	}
	return res, nil
}

// present returns the keys of urlMap that occur in text, ordered by descending
// length and then lexicographically.
func present(text string, urlMap map[string]string) []string {
	var dict []string
	for k := range urlMap {
		if k != "" {
			dict = append(dict, k)
		}
	}
	if len(dict) == 0 {
		return nil
	}
	// escaped spellings share the index of their key
	owner := make([]string, 0, len(dict))
	owner = append(owner, dict...)
	for _, k := range dict {
		if esc := escapeAmp(k); esc != k {
			owner = append(owner, k)
			dict = append(dict, esc)
		}
	}

	m := ahocorasick.NewStringMatcher(dict)
	seen := make(map[string]bool)
	var keys []string
	for _, i := range m.Match([]byte(text)) {
		k := owner[i]
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func escapeAmp(s string) string {
	return strings.ReplaceAll(s, "&", "&amp;")
}
