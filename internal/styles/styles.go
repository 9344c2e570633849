// Package styles post-processes downloaded stylesheets: it discovers the resources
// they reference and, once those are downloaded, points them at the local copies.
package styles

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"github.com/shaniidev/pagesnap/internal/core"
	"github.com/shaniidev/pagesnap/internal/extract"
	"github.com/shaniidev/pagesnap/internal/utils"
)

// Resolver finds the resource a URL spelling was downloaded as.
type Resolver interface {
	Resolve(key string) (*core.Resource, bool)
}

// Collect reads a stylesheet and returns the absolute URLs of the resources it
// references, resolved against base, the URL the stylesheet was fetched from.
func Collect(path, base string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stylesheet: %w", err)
	}

	seen := make(map[string]bool)
	var out []string
	for _, ref := range extract.Style(string(data)) {
		abs, err := utils.ResolveReference(base, ref)
		if err != nil || !utils.IsHTTP(abs) || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out, nil
}

// Rewrite points every url() and @import reference of the stylesheet at path that
// was downloaded to its local copy, relative to the stylesheet's own directory.
// The file is written back only when something changed.
func Rewrite(path, base string, urls Resolver) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read stylesheet: %w", err)
	}

	original := string(data)
	rewritten, err := RewriteText(original, filepath.Dir(path), base, urls)
	if err != nil {
		return false, err
	}
	if rewritten == original {
		return false, nil
	}

	if err := os.WriteFile(path, []byte(rewritten), 0644); err != nil {
		return false, fmt.Errorf("failed to write stylesheet: %w", err)
	}
	return true, nil
}

// RewriteText rewrites the stylesheet text. Tokens other than rewritten references
// are copied through unchanged.
func RewriteText(text, dir, base string, urls Resolver) (string, error) {
	r := &rewriter{dir: dir, base: base, urls: urls}
	l := css.NewLexer(parse.NewInputString(text))

	var b strings.Builder
	b.Grow(len(text))
	expectTarget := false // after @import or a url( function token

	for {
		tt, data := l.Next()
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return text, fmt.Errorf("failed to tokenize stylesheet: %w", err)
			}
			return b.String(), nil
		case css.URLToken:
			b.WriteString(r.urlToken(string(data)))
			expectTarget = false
			continue
		case css.StringToken:
			if expectTarget {
				b.WriteString(r.stringToken(string(data)))
				expectTarget = false
				continue
			}
		case css.AtKeywordToken:
			expectTarget = strings.EqualFold(string(data), "@import")
		case css.FunctionToken:
			expectTarget = strings.EqualFold(string(data), "url(")
		case css.WhitespaceToken, css.CommentToken:
		default:
			expectTarget = false
		}
		b.Write(data)
	}
}

type rewriter struct {
	dir  string
	base string
	urls Resolver
}

// urlToken rewrites `url( "ref" )` keeping spacing and quotes.
func (r *rewriter) urlToken(token string) string {
	if len(token) < 5 || !strings.HasSuffix(token, ")") {
		return token
	}
	inner := token[4 : len(token)-1]
	trimmed := strings.TrimSpace(inner)
	lead := inner[:strings.Index(inner, trimmed)]
	trail := inner[len(lead)+len(trimmed):]

	quote := ""
	ref := trimmed
	if n := len(ref); n >= 2 && (ref[0] == '"' || ref[0] == '\'') && ref[n-1] == ref[0] {
		quote = ref[:1]
		ref = ref[1 : n-1]
	}

	local, ok := r.local(ref)
	if !ok {
		return token
	}
	return token[:4] + lead + quote + local + quote + trail + ")"
}

// stringToken rewrites a quoted string that is the target of @import or url(.
func (r *rewriter) stringToken(token string) string {
	n := len(token)
	if n < 2 || token[n-1] != token[0] {
		return token
	}
	local, ok := r.local(token[1 : n-1])
	if !ok {
		return token
	}
	return token[:1] + local + token[:1]
}

func (r *rewriter) local(ref string) (string, bool) {
	if utils.IsIgnorable(ref) {
		return "", false
	}
	abs, err := utils.ResolveReference(r.base, ref)
	if err != nil {
		return "", false
	}
	res, ok := r.urls.Resolve(abs)
	if !ok {
		return "", false
	}
	rel, err := filepath.Rel(r.dir, res.File)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
