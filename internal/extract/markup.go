// Package extract discovers resource references in markup documents and in
// style-sheet text.
package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shaniidev/pagesnap/internal/utils"
)

// sourceAttrs lists the URL-bearing attributes collected per element.
var sourceAttrs = map[string][]string{
	"link":   {"href"},
	"script": {"src"},
	"img":    {"src", "data-src"},
	"audio":  {"src"},
	"video":  {"src", "poster"},
	"source": {"src"},
	"track":  {"src"},
	"iframe": {"src"},
	"embed":  {"src"},
	"object": {"data"},
	"input":  {"src"},
}

// resourceRels are link relations that point at a subresource rather than a page.
var resourceRels = map[string]bool{
	"stylesheet":                   true,
	"icon":                         true,
	"shortcut":                     true,
	"apple-touch-icon":             true,
	"apple-touch-icon-precomposed": true,
	"mask-icon":                    true,
	"preload":                      true,
	"modulepreload":                true,
	"manifest":                     true,
	"prefetch":                     true,
}

// Parse reads a markup document.
func Parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Markup returns the distinct references of a document in the order they are first
// seen. References from <style> blocks come last, scanned as one concatenated text.
func Markup(doc *goquery.Document) []string {
	c := newCollector()
	var inline strings.Builder

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)

		switch tag {
		case "link":
			if !isResourceLink(s) {
				return
			}
		case "input":
			if t, _ := s.Attr("type"); !strings.EqualFold(strings.TrimSpace(t), "image") {
				return
			}
		case "meta":
			if content, ok := s.Attr("content"); ok && isImageMeta(s) {
				c.add(content)
			}
			return
		case "style":
			inline.WriteString(s.Text())
			return
		}

		for _, attr := range sourceAttrs[tag] {
			if v, ok := s.Attr(attr); ok {
				c.add(v)
			}
		}
		if tag == "img" || tag == "source" {
			if srcset, ok := s.Attr("srcset"); ok {
				c.addAll(Srcset(srcset))
			}
		}
		if style, ok := s.Attr("style"); ok {
			c.addAll(Style(style))
		}
	})

	c.addAll(Style(inline.String()))
	return c.list
}

// Srcset returns the URL of each comma-separated candidate.
func Srcset(srcset string) []string {
	var out []string
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(entry)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

func isResourceLink(s *goquery.Selection) bool {
	rel, ok := s.Attr("rel")
	if !ok || strings.TrimSpace(rel) == "" {
		return true
	}
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if resourceRels[token] {
			return true
		}
	}
	return false
}

func isImageMeta(s *goquery.Selection) bool {
	name, _ := s.Attr("name")
	if strings.EqualFold(name, "msapplication-TileImage") {
		return true
	}
	property, _ := s.Attr("property")
	itemprop, _ := s.Attr("itemprop")
	for _, v := range []string{name, property, itemprop} {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "image" ||
			strings.HasSuffix(v, ":image") ||
			strings.HasSuffix(v, ":image:url") ||
			strings.HasSuffix(v, ":image:secure_url") {
			return true
		}
	}
	return false
}

// collector keeps first-seen order and drops duplicates and non-fetchable references.
type collector struct {
	seen map[string]bool
	list []string
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

func (c *collector) add(ref string) {
	if utils.IsIgnorable(ref) || c.seen[ref] {
		return
	}
	c.seen[ref] = true
	c.list = append(c.list, ref)
}

func (c *collector) addAll(refs []string) {
	for _, r := range refs {
		c.add(r)
	}
}
