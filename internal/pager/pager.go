// Package pager turns cursor-based remote listings into a single lazy
// sequence of records.
//
// A listing collaborator is a PageFunc: it receives the cursor returned by
// the previous page (empty for the first call) and returns one Page. A page
// with an empty Next cursor is the last one. The collaborator must make
// progress on every call; stuck cursors are not detected here.
package pager

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/paularlott/logger"

	"github.com/martinsuchenak/ipusage/internal/log"
)

// ErrMethodNotFound is wrapped by collaborators when the listing operation
// itself does not exist
var ErrMethodNotFound = errors.New("listing method not found")

// Page is one batch of results plus the cursor of the next batch
type Page[T any] struct {
	Items []T
	Next  string
}

// Last reports whether this is the final page
func (p Page[T]) Last() bool { return p.Next == "" }

// PageFunc fetches the page identified by cursor
type PageFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// MethodError reports a listing operation that does not exist
type MethodError struct {
	Page int
	Err  error
}

func (e *MethodError) Error() string {
	return fmt.Sprintf("pagination method error on page %d: %v", e.Page, e.Err)
}

func (e *MethodError) Unwrap() error { return e.Err }

// ServiceError reports a failed call to the listing operation
type ServiceError struct {
	Page int
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("pagination service error on page %d: %v", e.Page, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Pages walks a listing one page at a time
type Pages[T any] struct {
	fetch  PageFunc[T]
	log    logger.Logger
	cursor string
	page   Page[T]
	number int
	done   bool
	err    error
}

// NewPages creates a page iterator over fetch
func NewPages[T any](fetch PageFunc[T], l logger.Logger) *Pages[T] {
	return &Pages[T]{fetch: fetch, log: log.OrNull(l)}
}

// Next fetches the next page. It returns false at the end of the listing or
// after a failure; Err tells the two apart.
func (p *Pages[T]) Next(ctx context.Context) bool {
	if p.done {
		return false
	}

	p.number++
	page, err := p.fetch(ctx, p.cursor)
	if err != nil {
		p.done = true
		p.page = Page[T]{}
		if errors.Is(err, ErrMethodNotFound) {
			p.err = &MethodError{Page: p.number, Err: err}
		} else {
			p.err = &ServiceError{Page: p.number, Err: err}
		}
		p.log.Debug("Page fetch failed", "page", p.number, "error", err)
		return false
	}

	p.log.Trace("Page fetched", "page", p.number, "items", len(page.Items), "last", page.Last())

	p.page = page
	p.cursor = page.Next
	if page.Last() {
		p.done = true
	}
	return true
}

// Page returns the page fetched by the last successful Next
func (p *Pages[T]) Page() Page[T] { return p.page }

// Number returns how many pages have been requested
func (p *Pages[T]) Number() int { return p.number }

// Err returns the failure that stopped the iteration, if any
func (p *Pages[T]) Err() error { return p.err }

// Fetcher flattens pages into individual records
type Fetcher[T any] struct {
	pages *Pages[T]
	buf   []T
	pos   int
	item  T
	count int
}

// Fetch returns a single-pass record iterator over fetch
func Fetch[T any](fetch PageFunc[T], l logger.Logger) *Fetcher[T] {
	return &Fetcher[T]{pages: NewPages(fetch, l)}
}

// Next advances to the next record, fetching pages as needed
func (f *Fetcher[T]) Next(ctx context.Context) bool {
	for f.pos >= len(f.buf) {
		if !f.pages.Next(ctx) {
			f.buf = nil
			f.pos = 0
			return false
		}
		f.buf = f.pages.Page().Items
		f.pos = 0
	}
	f.item = f.buf[f.pos]
	f.pos++
	f.count++
	return true
}

// Item returns the current record
func (f *Fetcher[T]) Item() T { return f.item }

// Count returns how many records have been produced so far
func (f *Fetcher[T]) Count() int { return f.count }

// Pages returns how many pages have been requested so far
func (f *Fetcher[T]) Pages() int { return f.pages.Number() }

// Err returns the failure that stopped the iteration, if any
func (f *Fetcher[T]) Err() error { return f.pages.Err() }

// All adapts the fetcher to a range-over-func sequence. Check Err once the
// loop ends.
func (f *Fetcher[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for f.Next(ctx) {
			if !yield(f.Item()) {
				return
			}
		}
	}
}

// Collect drains the listing. On failure no records are returned.
func Collect[T any](ctx context.Context, fetch PageFunc[T], l logger.Logger) ([]T, error) {
	f := Fetch(fetch, l)
	var items []T
	for f.Next(ctx) {
		items = append(items, f.Item())
	}
	if err := f.Err(); err != nil {
		return nil, err
	}
	log.OrNull(l).Debug("Listing complete", "pages", f.Pages(), "items", len(items))
	return items, nil
}
