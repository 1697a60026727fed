// Package research gathers optional web context about an artist or song so
// the style prompt can describe its production characteristics.
package research

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/makeasinger/songprompt/internal/logger"
)

// DefaultMaxChars bounds the research text handed to the backend.
const DefaultMaxChars = 3000

// Status records what happened when research was attempted.
type Status string

const (
	StatusNotConfigured Status = "not_configured"
	StatusEmpty         Status = "empty"
	StatusFailed        Status = "failed"
	StatusFound         Status = "found"
)

// Searcher is a black-box text source returning snippet passages for a query.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]string, error)
}

// Context is the outcome of a research attempt. Text is only set when Status is StatusFound.
type Context struct {
	Status Status
	Text   string
	Err    error
}

// Usable reports whether the research produced text worth sending to the backend.
func (c Context) Usable() bool {
	return c.Status == StatusFound && c.Text != ""
}

// Describe renders a short human-readable line for result status reporting.
func (c Context) Describe() string {
	switch c.Status {
	case StatusNotConfigured:
		return "Research skipped: no search provider configured"
	case StatusEmpty:
		return "Research returned no results, using genre template"
	case StatusFailed:
		return "Research unavailable, using genre template"
	case StatusFound:
		return fmt.Sprintf("Research found %d characters of context", utf8.RuneCountInString(c.Text))
	}
	return ""
}

// Researcher fans a subject out into angled queries. A nil searcher means
// research is not configured.
type Researcher struct {
	searcher Searcher
	maxChars int
	log      *logger.Logger
}

func NewResearcher(searcher Searcher, maxChars int, log *logger.Logger) *Researcher {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Researcher{searcher: searcher, maxChars: maxChars, log: log}
}

// Configured reports whether a search provider is wired in.
func (r *Researcher) Configured() bool {
	return r != nil && r.searcher != nil
}

// Provider names the search provider, or "none".
func (r *Researcher) Provider() string {
	if !r.Configured() {
		return "none"
	}
	return r.searcher.Name()
}

// Queries returns the angled search queries for subject, in concatenation order.
func Queries(subject string) []string {
	return []string{
		subject + " music production style instrumentation",
		subject + " sound characteristics tempo BPM mixing vocals",
		subject + " influences similar artists",
	}
}

// Research never returns an error: failures are reported through Context.Status.
func (r *Researcher) Research(ctx context.Context, subject string) Context {
	if !r.Configured() {
		return Context{Status: StatusNotConfigured}
	}

	queries := Queries(strings.TrimSpace(subject))
	snippets := make([][]string, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			res, err := r.searcher.Search(ctx, q)
			if err != nil {
				errs[i] = err
				return nil
			}
			snippets[i] = res
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	var firstErr error
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == len(queries) {
		r.log.Warn("research failed", "provider", r.searcher.Name(), "subject", subject, "error", firstErr)
		return Context{Status: StatusFailed, Err: firstErr}
	}
	if failed > 0 {
		r.log.Debug("research partially failed", "provider", r.searcher.Name(), "failed", failed, "error", firstErr)
	}

	var parts []string
	for _, group := range snippets {
		for _, s := range group {
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) == 0 {
		return Context{Status: StatusEmpty}
	}

	text := truncate(strings.Join(parts, "\n"), r.maxChars)
	r.log.Debug("research found", "provider", r.searcher.Name(), "chars", utf8.RuneCountInString(text))
	return Context{Status: StatusFound, Text: text}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
