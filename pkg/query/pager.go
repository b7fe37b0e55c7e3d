package query

import (
	"context"

	"github.com/fivetwenty-io/postgrestx/internal/constants"
	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
)

// Page is one window of an infinite list. NextFrom is nil on the last page.
type Page struct {
	Items    any  `json:"items"`
	NextFrom *int `json:"nextFrom,omitempty"`
}

// Pager walks a table in fixed-size windows using the Range header.
type Pager struct {
	query    *QueryClient
	table    string
	args     ListArgs
	pageSize int
	next     *int
}

// Pager returns a pager over table starting at initialFrom. A non-positive
// pageSize uses the default page size. args.Range is ignored.
func (q *QueryClient) Pager(table string, args *ListArgs, pageSize, initialFrom int) *Pager {
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}

	p := &Pager{
		query:    q,
		table:    table,
		pageSize: pageSize,
		next:     &initialFrom,
	}

	if args != nil {
		p.args = *args
	}

	p.args.Range = nil

	return p
}

// HasNext reports whether Next has another page to fetch.
func (p *Pager) HasNext() bool {
	return p.next != nil
}

// Next fetches the following page and advances the pager.
func (p *Pager) Next(ctx context.Context) (*Page, error) {
	if p.next == nil {
		return &Page{}, nil
	}

	page, err := p.Fetch(ctx, *p.next)
	if err != nil {
		return nil, err
	}

	p.next = page.NextFrom

	return page, nil
}

// Fetch loads the page starting at from without moving the pager.
func (p *Pager) Fetch(ctx context.Context, from int) (*Page, error) {
	to := from + p.pageSize - 1

	args := p.args
	args.Range = postgrest.Range(from, to)

	res, err := p.query.List(ctx, p.table, &args)
	if err != nil {
		return nil, err
	}

	return &Page{Items: res.Data, NextFrom: nextFrom(res, to, p.pageSize)}, nil
}

// nextFrom is to+1 unless the server's total shows the window reached the
// end. Without a total, a short page also ends the list.
func nextFrom(res *ListResult, to, pageSize int) *int {
	if res.Total != nil {
		if to+1 >= *res.Total {
			return nil
		}

		next := to + 1

		return &next
	}

	rows, ok := res.Data.([]any)
	if ok && len(rows) < pageSize {
		return nil
	}

	next := to + 1

	return &next
}
