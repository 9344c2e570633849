package ui

import (
	"fmt"
	"strings"
	"sync"
)

// ProgressBar simple progress indicator. A nil bar ignores every call.
type ProgressBar struct {
	Total   int
	Current int
	Width   int
	Prefix  string
	Mu      sync.Mutex
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{
		Total:  total,
		Width:  40,
		Prefix: prefix,
	}
}

func (p *ProgressBar) Increment() {
	p.Add(1)
}

func (p *ProgressBar) Add(n int) {
	if p == nil {
		return
	}
	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.Current += n
	p.render()
}

// AddTotal grows the expected total, for work discovered while running.
func (p *ProgressBar) AddTotal(n int) {
	if p == nil || n == 0 {
		return
	}
	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.Total += n
}

func (p *ProgressBar) render() {
	percent := 1.0
	if p.Total > 0 {
		percent = float64(p.Current) / float64(p.Total)
	}
	if percent > 1.0 {
		percent = 1.0
	}

	filled := int(float64(p.Width) * percent)
	if filled > p.Width {
		filled = p.Width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.Width-filled)

	fmt.Fprintf(Out, "\r%s %s [%.1f%%] (%d/%d)   ",
		Blue+p.Prefix+Reset,
		Cyan+bar+Reset,
		percent*100,
		p.Current, p.Total,
	)

	if p.Current >= p.Total {
		fmt.Fprintln(Out)
	}
}

// PrintTable prints a list of items in a simple table format
// Limits display to 'limit' items
func PrintTable(items []string, title string, limit int) {
	Section(title)

	fmt.Fprintf(Out, "%s\n", strings.Repeat("-", 60))
	fmt.Fprintf(Out, "%-5s | %s\n", "#", "URL")
	fmt.Fprintf(Out, "%s\n", strings.Repeat("-", 60))

	count := len(items)
	displayCount := count
	if displayCount > limit {
		displayCount = limit
	}

	for i := 0; i < displayCount; i++ {
		url := items[i]
		if len(url) > 50 {
			url = "..." + url[len(url)-47:]
		}
		fmt.Fprintf(Out, "%-5d | %s%s%s\n", i+1, Red, url, Reset)
	}

	if count > limit {
		fmt.Fprintf(Out, "%s\n", strings.Repeat("-", 60))
		fmt.Fprintf(Out, Yellow+"... and %d more not shown (displaying first %d)."+Reset+"\n", count-limit, limit)
		fmt.Fprintf(Out, "The full list is in the run report.\n")
	}
	fmt.Fprintf(Out, "%s\n", strings.Repeat("-", 60))
}
