package extract

import (
	"strings"
	"sync"

	"github.com/coregx/coregex"
)

// Compiled once. The lazy DFA behind coregex is not safe for concurrent use, so every
// scan holds styleMu. Case is spelled out in classes: coregex finds nothing for
// patterns carrying the (?i) flag.
var (
	styleMu       sync.Mutex
	urlPattern    = mustCompile(`[uU][rR][lL]\(\s*["']?[^"')\s]+["']?\s*\)`)
	importPattern = mustCompile(`@[iI][mM][pP][oO][rR][tT]\s+(?:[uU][rR][lL]\(\s*)?["']?[^"')\s;]+["']?\s*\)?`)
)

func mustCompile(expr string) *coregex.Regexp {
	re, err := coregex.Compile(expr)
	if err != nil {
		panic("extract: invalid pattern " + expr + ": " + err.Error())
	}
	return re
}

// Style returns the distinct references in style-sheet text: url(...) arguments,
// optionally quoted, and @import targets with or without url(). Data URIs and other
// non-fetchable references are skipped.
func Style(text string) []string {
	if text == "" {
		return nil
	}
	c := newCollector()
	content := []byte(text)

	styleMu.Lock()
	urls := urlPattern.FindAll(content, -1)
	imports := importPattern.FindAll(content, -1)
	styleMu.Unlock()

	for _, m := range urls {
		c.add(urlArgument(string(m)))
	}
	for _, m := range imports {
		c.add(importArgument(string(m)))
	}
	return c.list
}

// urlArgument unwraps `url( "x" )` to `x`.
func urlArgument(token string) string {
	arg := token[len("url("):]
	arg = strings.TrimSuffix(arg, ")")
	return unquote(strings.TrimSpace(arg))
}

// importArgument unwraps `@import url("x")` or `@import 'x'` to `x`.
func importArgument(token string) string {
	arg := strings.TrimSpace(token[len("@import"):])
	if len(arg) >= 4 && strings.EqualFold(arg[:4], "url(") {
		return urlArgument(arg)
	}
	return unquote(arg)
}

func unquote(s string) string {
	return strings.Trim(s, `"'`)
}
