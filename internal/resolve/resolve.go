// Package resolve maps a resource URL and its declared content type to the
// extension, category directory and filename it is stored under.
package resolve

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"github.com/shaniidev/pagesnap/internal/core"
)

// DefaultExtension is used when neither the URL nor the content type is recognized.
const DefaultExtension = "bin"

var knownExtensions = map[string]bool{
	"css": true, "js": true,
	"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true, "avif": true,
	"woff": true, "woff2": true, "ttf": true, "eot": true,
	"mp4": true, "webm": true,
}

// mimeTokens is checked in order, so more specific tokens come first
// (font/woff2 must not be claimed by woff).
var mimeTokens = []struct {
	token string
	ext   string
}{
	{"css", "css"},
	{"javascript", "js"},
	{"ecmascript", "js"},
	{"image/png", "png"},
	{"jpeg", "jpg"},
	{"gif", "gif"},
	{"svg+xml", "svg"},
	{"avif", "avif"},
	{"woff2", "woff2"},
	{"woff", "woff"},
	{"ttf", "ttf"},
	{"truetype", "ttf"},
	{"vnd.ms-fontobject", "eot"},
	{"mp4", "mp4"},
	{"webm", "webm"},
}

var categories = map[string]core.Category{
	"css":   core.CategoryCSS,
	"js":    core.CategoryJS,
	"png":   core.CategoryImages,
	"jpg":   core.CategoryImages,
	"jpeg":  core.CategoryImages,
	"gif":   core.CategoryImages,
	"svg":   core.CategoryImages,
	"avif":  core.CategoryImages,
	"woff":  core.CategoryFonts,
	"woff2": core.CategoryFonts,
	"ttf":   core.CategoryFonts,
	"eot":   core.CategoryFonts,
	"mp4":   core.CategoryVideos,
	"webm":  core.CategoryVideos,
}

// Target is where a resource is stored, relative to the output root.
type Target struct {
	Ext      string
	Category core.Category
	Filename string
}

// Path returns the slash-separated path of the target under the output root.
func (t Target) Path() string {
	return string(t.Category) + "/" + t.Filename
}

// Extension picks the file extension for rawURL: a known suffix of the last path
// segment first, then the content type, then DefaultExtension.
func Extension(rawURL, contentType string) string {
	if name := lastSegment(rawURL); strings.Contains(name, ".") {
		ext := strings.ToLower(name[strings.LastIndex(name, ".")+1:])
		if knownExtensions[ext] {
			return ext
		}
	}

	if contentType != "" {
		ct := strings.ToLower(contentType)
		for _, m := range mimeTokens {
			if strings.Contains(ct, m.token) {
				return m.ext
			}
		}
	}
	return DefaultExtension
}

// CategoryFor maps an extension to its category directory.
func CategoryFor(ext string) core.Category {
	if c, ok := categories[strings.ToLower(ext)]; ok {
		return c
	}
	return core.CategoryOther
}

// Sanitize replaces every character outside [A-Za-z0-9_.-] with an underscore.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Resolver builds Targets. The zero value is ready to use; the counter only feeds
// names synthesized for URLs without a filename.
type Resolver struct {
	seq atomic.Int64
}

func (r *Resolver) Resolve(rawURL, contentType string) Target {
	ext := Extension(rawURL, contentType)
	name := lastSegment(rawURL)

	switch {
	case name == "":
		name = fmt.Sprintf("resource_%d.%s", r.seq.Add(1), ext)
	case !strings.Contains(name, "."):
		name = name + "." + ext
	}

	if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
		name += "_" + u.RawQuery
	}

	return Target{
		Ext:      ext,
		Category: CategoryFor(ext),
		Filename: Sanitize(name),
	}
}

func lastSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	p := u.EscapedPath()
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	return path.Base(p)
}
