// Package pagination computes listing windows and the cursor hints returned with them.
package pagination

import (
	"math"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps page*MaxLimit within an int.
	MaxPage = math.MaxInt / MaxLimit
)

type Request struct {
	Page  int
	Limit int
}

// Parse reads page/limit query values, falling back to defaults for anything missing or invalid.
func Parse(page, limit string) Request {
	req := Request{Page: DefaultPage, Limit: DefaultLimit}
	if p, err := strconv.Atoi(page); err == nil && p > 0 {
		req.Page = p
	}
	if l, err := strconv.Atoi(limit); err == nil && l > 0 {
		req.Limit = l
	}
	return req.Normalize()
}

func (r Request) Normalize() Request {
	if r.Page < 1 {
		r.Page = DefaultPage
	}
	if r.Page > MaxPage {
		r.Page = MaxPage
	}
	if r.Limit < 1 {
		r.Limit = DefaultLimit
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
	return r
}

// Offset is the index of the first item on the page: (page-1)*limit.
func (r Request) Offset() int {
	r = r.Normalize()
	return (r.Page - 1) * r.Limit
}

type Cursor struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type Pagination struct {
	Next        *Cursor `json:"next,omitempty"`
	Prev        *Cursor `json:"prev,omitempty"`
	Total       int     `json:"total"`
	Pages       int     `json:"pages"`
	CurrentPage int     `json:"currentPage"`
}

// Build derives the cursors for a page of a result set holding total items.
// next exists iff page*limit < total (equivalently page < pages), prev iff page > 1.
func Build(r Request, total int) Pagination {
	r = r.Normalize()
	p := Pagination{
		Total:       total,
		Pages:       (total + r.Limit - 1) / r.Limit,
		CurrentPage: r.Page,
	}
	if r.Page < p.Pages {
		p.Next = &Cursor{Page: r.Page + 1, Limit: r.Limit}
	}
	if r.Page > 1 {
		p.Prev = &Cursor{Page: r.Page - 1, Limit: r.Limit}
	}
	return p
}

// Page is one window of a listing.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

func NewPage[T any](r Request, items []T, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Pagination: Build(r, total)}
}

// Slice applies the window to an in-memory list.
func Slice[T any](r Request, items []T) Page[T] {
	r = r.Normalize()
	start := r.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := start + r.Limit
	if end > len(items) {
		end = len(items)
	}
	return NewPage(r, items[start:end], len(items))
}
