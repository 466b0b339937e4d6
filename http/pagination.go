package http

import (
	"context"
	"strconv"
)

// PageMeta is the pagination block EmailBison returns under "meta".
type PageMeta struct {
	CurrentPage int
	LastPage    int
	PerPage     int
	Total       int
}

// HasMore reports whether pages remain after the current one.
func (m PageMeta) HasMore() bool {
	return m.LastPage > 0 && m.CurrentPage < m.LastPage
}

// ParsePage splits a list response into its items and pagination meta.
// Items that are not JSON objects are skipped.
func ParsePage(resp *Response) ([]map[string]any, PageMeta) {
	var items []map[string]any
	if list, ok := resp.Data["data"].([]any); ok {
		for _, it := range list {
			if obj, ok := it.(map[string]any); ok {
				items = append(items, obj)
			}
		}
	}

	var meta PageMeta
	if m, ok := resp.Data["meta"].(map[string]any); ok {
		meta.CurrentPage = intField(m["current_page"])
		meta.LastPage = intField(m["last_page"])
		meta.PerPage = intField(m["per_page"])
		meta.Total = intField(m["total"])
	}
	return items, meta
}

func intField(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

// PageFetcher fetches one page. Pages are numbered from 1.
type PageFetcher[T any] func(ctx context.Context, page int) (items []T, meta PageMeta, err error)

// PageIterator provides iteration over paginated API results.
// It lazily fetches pages as needed.
type PageIterator[T any] struct {
	fetch    PageFetcher[T]
	page     int
	buffer   []T
	done     bool
	err      error
	total    int // Total items if known, -1 otherwise
	fetched  int // Total items fetched so far
	pages    int
	maxPages int
}

// NewPageIterator creates a new iterator with the given fetch function.
func NewPageIterator[T any](fetch PageFetcher[T]) *PageIterator[T] {
	return &PageIterator[T]{
		fetch: fetch,
		page:  1,
		total: -1,
	}
}

// WithMaxPages stops iteration after n pages. Zero means no limit.
func (p *PageIterator[T]) WithMaxPages(n int) *PageIterator[T] {
	p.maxPages = n
	return p
}

// Next returns the next item from the iterator.
// When iteration is complete, returns (zero, false, nil).
func (p *PageIterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T

	if p.err != nil {
		return zero, false, p.err
	}

	for len(p.buffer) == 0 && !p.done {
		items, meta, err := p.fetch(ctx, p.page)
		if err != nil {
			p.err = err
			return zero, false, err
		}
		p.pages++
		if meta.Total > 0 {
			p.total = meta.Total
		}
		p.buffer = items
		p.done = !meta.HasMore() || len(items) == 0 ||
			(p.maxPages > 0 && p.pages >= p.maxPages)
		p.page++
	}

	if len(p.buffer) == 0 {
		return zero, false, nil
	}

	item := p.buffer[0]
	p.buffer = p.buffer[1:]
	p.fetched++

	return item, true, nil
}

// All collects all items from the iterator into a slice.
// This will fetch all pages and may be slow for large result sets.
func (p *PageIterator[T]) All(ctx context.Context) ([]T, error) {
	var all []T
	err := p.ForEach(ctx, func(item T) error {
		all = append(all, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// ForEach calls fn for each item in the iterator.
// If fn returns an error, iteration stops and that error is returned.
func (p *PageIterator[T]) ForEach(ctx context.Context, fn func(T) error) error {
	for {
		item, ok, err := p.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}

// Err returns any error that occurred during iteration.
func (p *PageIterator[T]) Err() error {
	return p.err
}

// Total returns the total number of items if known, -1 otherwise.
func (p *PageIterator[T]) Total() int {
	return p.total
}

// Fetched returns the number of items fetched so far.
func (p *PageIterator[T]) Fetched() int {
	return p.fetched
}

// Pages returns the number of pages fetched so far.
func (p *PageIterator[T]) Pages() int {
	return p.pages
}
