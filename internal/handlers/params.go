package handlers

import (
	"github.com/gdg-garage/sputnik-ledger/internal/pagination"
)

type PageParams struct {
	Page   int    `query:"page" minimum:"1" default:"1"`
	Limit  int    `query:"limit" minimum:"1" maximum:"100" default:"20"`
	SortBy string `query:"sort_by" doc:"column:ASC|DESC, comma separated"`
}

func (p PageParams) query() (pagination.Query, error) {
	sortBy, err := pagination.ParseSort(p.SortBy)
	if err != nil {
		return pagination.Query{}, err
	}
	return pagination.Query{Page: p.Page, Limit: p.Limit, SortBy: sortBy}, nil
}

// filters drops empty values.
func filters(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
