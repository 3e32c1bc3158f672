package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

// ErrScanInProgress is returned by Start while a scan is running.
var ErrScanInProgress = errors.New("catalog: scan already in progress")

// FormatLister is the part of plugin.Registry the scanner needs.
type FormatLister interface {
	Formats() []plugin.Format
}

// Failure is a candidate that could not be described.
type Failure struct {
	Format    string
	Candidate string
	Err       error
}

// Completion is delivered once per scan.
type Completion struct {
	// Found lists descriptors discovered by this scan, in discovery order.
	Found []plugin.Descriptor
	// Failed lists candidates Describe rejected.
	Failed []Failure
	// Skipped counts candidates already in the known list.
	Skipped int
	// Cancelled is set when Stop or the context ended the scan early.
	Cancelled bool
	Duration  time.Duration
}

// Scanner discovers plugins for every registered format that implements
// plugin.Discoverer and records them in a KnownList. One scan runs at a
// time on its own goroutine.
type Scanner struct {
	formats FormatLister
	known   *KnownList
	opts    options

	running atomic.Bool
	stop    atomic.Bool
}

// NewScanner returns a scanner that adds its findings to known.
func NewScanner(formats FormatLister, known *KnownList, opts ...Option) *Scanner {
	return &Scanner{formats: formats, known: known, opts: applyOptions(opts)}
}

// Scanning reports whether a scan is running. It stays true until the
// scan's Completion has been delivered.
func (s *Scanner) Scanning() bool {
	return s.running.Load()
}

// Stop asks the running scan to end. The scan checks the request between
// candidates, so it halts after at most one more Describe call. Stop has no
// effect when no scan is running; Start clears earlier requests.
func (s *Scanner) Stop() {
	s.stop.Store(true)
}

// Start begins a scan. paths maps a format name to its search paths;
// formats without an entry use their DefaultSearchPaths. The returned
// channel receives exactly one Completion and is closed once Scanning
// reports false.
func (s *Scanner) Start(ctx context.Context, paths map[string][]string) (<-chan Completion, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}

	s.stop.Store(false)

	done := make(chan Completion, 1)

	go func() {
		result := s.run(ctx, paths)

		done <- result
		s.running.Store(false)
		close(done)
	}()

	return done, nil
}

// Scan starts a scan and waits for its Completion.
func (s *Scanner) Scan(ctx context.Context, paths map[string][]string) (Completion, error) {
	done, err := s.Start(ctx, paths)
	if err != nil {
		return Completion{}, err
	}

	result := <-done
	<-done

	return result, nil
}

func (s *Scanner) cancelled(ctx context.Context) bool {
	return s.stop.Load() || ctx.Err() != nil
}

func (s *Scanner) run(ctx context.Context, paths map[string][]string) Completion {
	start := time.Now()
	logger := s.opts.logger

	var result Completion

	for _, f := range s.formats.Formats() {
		d, ok := f.(plugin.Discoverer)
		if !ok {
			continue
		}

		search, ok := paths[f.Name()]
		if !ok {
			search = d.DefaultSearchPaths()
		}

		candidates := d.FindCandidates(search)
		logger.Debug("scanning format", "format", f.Name(), "candidates", len(candidates))

		for _, candidate := range candidates {
			if s.cancelled(ctx) {
				result.Cancelled = true
				logger.Info("plugin scan cancelled", "found", len(result.Found))

				return s.finish(result, start)
			}

			if !s.opts.rescan && s.known.HasPath(candidate) {
				result.Skipped++
				continue
			}

			found, err := d.Describe(candidate)
			if err != nil {
				logger.Warn("plugin candidate rejected", "format", f.Name(), "candidate", candidate, "error", err)
				result.Failed = append(result.Failed, Failure{Format: f.Name(), Candidate: candidate, Err: err})

				continue
			}

			for _, desc := range found {
				s.known.Add(desc)
				result.Found = append(result.Found, desc)
			}
		}
	}

	logger.Info("plugin scan finished",
		"found", len(result.Found), "failed", len(result.Failed), "skipped", result.Skipped)

	return s.finish(result, start)
}

func (s *Scanner) finish(result Completion, start time.Time) Completion {
	result.Duration = time.Since(start)

	return result
}

// Option configures a Scanner or Watcher.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	rescan     bool
	debounce   time.Duration
	extensions []string
}

func applyOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		debounce: defaultDebounce,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return o
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRescan makes the scanner describe candidates that are already known.
func WithRescan(rescan bool) Option {
	return func(o *options) { o.rescan = rescan }
}

// WithDebounce sets how long the watcher waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithExtensions limits the watcher to files with these extensions.
func WithExtensions(exts ...string) Option {
	return func(o *options) { o.extensions = exts }
}
