// Package service wires the engines to the store. Each exported method is one
// API operation; mutations run inside a single write transaction.
package service

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/garnizeh/talentflow/internal/metrics"
	"github.com/garnizeh/talentflow/internal/timeline"
)

type options struct {
	now           func() time.Time
	newID         func() string
	logger        *slog.Logger
	metrics       *metrics.Manager
	strictChoices bool
}

type Option func(*options)

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Manager) Option {
	return func(o *options) { o.metrics = m }
}

// WithStrictChoices makes submissions reject choice answers outside the
// declared options.
func WithStrictChoices(strict bool) Option {
	return func(o *options) { o.strictChoices = strict }
}

func buildOptions(opts []Option) options {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: timeline.NewID,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return o
}

func (o options) recorder() *timeline.Recorder {
	return timeline.New(timeline.WithClock(o.now), timeline.WithIDGenerator(o.newID))
}

func (o options) stamp() time.Time {
	return o.now().UTC().Truncate(time.Millisecond)
}

// detach keeps a started mutation running when the caller goes away; the
// caller re-fetches to learn the outcome.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9-]`)
)

// Slugify lowercases title, turns whitespace runs into dashes and drops every
// other character outside [a-z0-9-].
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = whitespaceRun.ReplaceAllString(s, "-")
	return nonSlugChars.ReplaceAllString(s, "")
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping the first
// occurrence.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// pageDefaults fills in unset paging parameters. Negative values are left for
// the query engine to reject.
func pageDefaults(page, size, defaultSize int) (int, int) {
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = defaultSize
	}
	return page, size
}
