package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/shaniidev/pagesnap/internal/core"
	"github.com/shaniidev/pagesnap/internal/resolve"
	"github.com/shaniidev/pagesnap/internal/styles"
	"github.com/shaniidev/pagesnap/internal/ui"
	"github.com/shaniidev/pagesnap/internal/utils"
)

// maxLogURL caps URLs quoted inside log messages. Fields carry them in full.
const maxLogURL = 120

// Options controls where and how fast resources are fetched.
type Options struct {
	OutputDir   string        // root holding one subdirectory per category
	DocumentDir string        // local paths are made relative to this directory
	Workers     int           // 1 keeps downloads sequential in discovery order
	Delay       time.Duration // minimum spacing between two requests
}

// Downloader drains a queue of references, fetching each distinct resource once
// and recording every spelling it was reached by in the shared State.
type Downloader struct {
	client   *Client
	state    *core.State
	resolver *resolve.Resolver
	limiter  *rate.Limiter
	log      logrus.FieldLogger
	opts     Options
	bar      *ui.ProgressBar
}

func NewDownloader(client *Client, state *core.State, log logrus.FieldLogger, opts Options) *Downloader {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Downloader{
		client:   client,
		state:    state,
		resolver: &resolve.Resolver{},
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
		opts:     opts,
	}
}

// SetProgress attaches a progress bar. Its total grows as stylesheets add work.
func (d *Downloader) SetProgress(bar *ui.ProgressBar) {
	d.bar = bar
}

// Run fetches refs, resolved against base, plus everything the downloaded
// stylesheets reference. It returns once the queue is drained. A cancelled
// context skips the remaining jobs.
func (d *Downloader) Run(ctx context.Context, base string, refs []string) {
	q := newQueue()
	jobs := make([]Job, 0, len(refs))
	for _, ref := range refs {
		jobs = append(jobs, Job{Ref: ref, Base: base})
	}
	d.bar.AddTotal(len(jobs))
	q.push(jobs...)

	var wg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := q.pop()
				if !ok {
					return
				}
				if ctx.Err() == nil {
					next := d.Fetch(ctx, job)
					d.bar.AddTotal(len(next))
					q.push(next...)
				}
				d.bar.Increment()
				q.done()
			}
		}()
	}
	wg.Wait()
}

// Fetch handles one job and returns the follow-up jobs discovered in it.
func (d *Downloader) Fetch(ctx context.Context, job Job) []Job {
	if utils.IsIgnorable(job.Ref) {
		return nil
	}

	abs, err := utils.ResolveReference(job.Base, job.Ref)
	if err != nil {
		d.log.WithField("reference", job.Ref).Warnf("Unresolvable reference: %v", err)
		d.state.Fail(job.Ref, job.Ref, err)
		return nil
	}
	if !utils.IsHTTP(abs) {
		d.log.WithField("url", abs).Debug("Skipping non-HTTP reference")
		return nil
	}

	for {
		if r, ok := d.state.Lookup(abs); ok {
			d.state.Link(r, abs, job.Ref)
			d.log.WithField("url", abs).Debugf("Already downloaded as %s", r.LocalPath)
			return nil
		}
		if d.state.IsFailed(abs) {
			return nil
		}
		owner, done := d.state.Claim(abs)
		if owner {
			break
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil
		}
	}
	defer d.state.Release(abs)

	return d.download(ctx, abs, job.Ref)
}

func (d *Downloader) download(ctx context.Context, abs, ref string) []Job {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil
	}

	log := d.log.WithField("url", abs)
	resp, err := d.client.Fetch(ctx, abs)
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) {
			log.Warnf("Failed: HTTP %d", status.StatusCode)
		} else {
			log.Warnf("Failed: %v", err)
		}
		d.state.Fail(abs, ref, err)
		return nil
	}

	final := resp.URL
	for final != abs {
		if r, ok := d.state.Lookup(final); ok {
			d.state.Link(r, abs, ref)
			log.Infof("Redirected to %s, already downloaded as %s", utils.Shorten(final, maxLogURL), r.LocalPath)
			return nil
		}
		// only one of several chains converging on final writes it
		owner, done := d.state.Claim(final)
		if owner {
			defer d.state.Release(final)
			break
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil
		}
	}

	target := d.resolver.Resolve(final, resp.ContentType)
	file := d.state.ReservePath(filepath.Join(d.opts.OutputDir, filepath.FromSlash(target.Path())), final)
	if err := writeFile(file, resp.Body); err != nil {
		log.Errorf("Write failed: %v", err)
		d.state.Fail(abs, ref, err)
		return nil
	}

	local, err := filepath.Rel(d.opts.DocumentDir, file)
	if err != nil {
		local = file
	}
	res := &core.Resource{
		FinalURL:    final,
		File:        file,
		LocalPath:   filepath.ToSlash(local),
		Category:    target.Category,
		ContentType: resp.ContentType,
		Size:        int64(len(resp.Body)),
	}

	kept, fresh := d.state.Commit(res, abs, ref)
	if !fresh {
		if kept.File != file {
			os.Remove(file)
		}
		log.Infof("Converged on %s, keeping %s", utils.Shorten(final, maxLogURL), kept.LocalPath)
		return nil
	}
	log.Infof("Saved %s (%s)", res.LocalPath, humanize.Bytes(uint64(res.Size)))

	if res.Category != core.CategoryCSS {
		return nil
	}
	nested, err := styles.Collect(file, final)
	if err != nil {
		log.Errorf("Stylesheet scan failed: %v", err)
		return nil
	}
	jobs := make([]Job, 0, len(nested))
	for _, u := range nested {
		jobs = append(jobs, Job{Ref: u, Base: final})
	}
	if len(jobs) > 0 {
		log.Debugf("Stylesheet references %d resources", len(jobs))
	}
	return jobs
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
