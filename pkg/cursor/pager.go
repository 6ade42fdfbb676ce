// Package cursor provides the paginated read cursors used by every list view.
package cursor

import (
	"errors"
	"fmt"
)

// DefaultItemsPerPage is used when a cursor is built with a non-positive
// page size.
const DefaultItemsPerPage = 10

var ErrItemsPerPage = errors.New("items per page must be positive")

// Pager holds the page arithmetic shared by every cursor.
type Pager struct {
	CurrentPage  int // 1-based
	ItemsPerPage int
	TotalEntries int
	TotalPages   int // always >= 1
	Offset       int // row offset of CurrentPage
}

func newPager(perPage int) Pager {
	if perPage <= 0 {
		perPage = DefaultItemsPerPage
	}

	return Pager{
		CurrentPage:  1,
		ItemsPerPage: perPage,
		TotalPages:   1,
	}
}

// recompute derives TotalPages from TotalEntries and clamps CurrentPage
// into [1, TotalPages].
func (p *Pager) recompute() {
	pages := (p.TotalEntries + p.ItemsPerPage - 1) / p.ItemsPerPage
	p.TotalPages = max(pages, 1)
	p.CurrentPage = min(max(p.CurrentPage, 1), p.TotalPages)
	p.Offset = (p.CurrentPage - 1) * p.ItemsPerPage
}

// SetPage selects the page from a zero-based index; 0 resets to page 1.
func (p *Pager) SetPage(index int) {
	index = max(index, 0)
	p.CurrentPage = index + 1
	p.Offset = index * p.ItemsPerPage
}

// SetItemsPerPage changes the page size. Nothing derived from the old size
// survives: the next count refresh and fetch recompute pages and offset.
func (p *Pager) SetItemsPerPage(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrItemsPerPage, n)
	}

	p.ItemsPerPage = n
	p.Offset = (p.CurrentPage - 1) * n

	return nil
}

// HasNext reports whether a page follows the current one.
func (p *Pager) HasNext() bool {
	return p.CurrentPage < p.TotalPages
}

// HasPrev reports whether a page precedes the current one.
func (p *Pager) HasPrev() bool {
	return p.CurrentPage > 1
}

// Next moves to the following page if there is one.
func (p *Pager) Next() bool {
	if !p.HasNext() {
		return false
	}
	p.SetPage(p.CurrentPage)

	return true
}

// Prev moves to the preceding page if there is one.
func (p *Pager) Prev() bool {
	if !p.HasPrev() {
		return false
	}
	p.SetPage(p.CurrentPage - 2)

	return true
}
