package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Out
	Out = &buf
	t.Cleanup(func() { Out = prev })
	return &buf
}

func TestProgressBar_NilIsNoop(t *testing.T) {
	var p *ProgressBar
	assert.NotPanics(t, func() {
		p.AddTotal(3)
		p.Increment()
		p.Add(2)
	})
}

func TestProgressBar_GrowingTotal(t *testing.T) {
	buf := capture(t)

	p := NewProgressBar(0, "Downloading")
	p.AddTotal(2)
	p.Increment()
	assert.Contains(t, buf.String(), "(1/2)")

	p.AddTotal(1)
	p.Add(2)
	assert.Contains(t, buf.String(), "(3/3)")
	assert.Contains(t, buf.String(), "[100.0%]")
}

func TestProgressBar_ZeroTotal(t *testing.T) {
	buf := capture(t)

	p := NewProgressBar(0, "Downloading")
	p.Add(0)
	assert.Contains(t, buf.String(), "[100.0%]")
}

func TestPrintTable_Truncates(t *testing.T) {
	buf := capture(t)

	PrintTable([]string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}, "Failed", 2)
	out := buf.String()
	assert.Contains(t, out, "https://a.test/2")
	assert.NotContains(t, out, "https://a.test/3")
	assert.Contains(t, out, "1 more not shown")
}
