package domain

import (
	"sort"
	"strings"
	"time"
)

// Criterios de orden y filtro admitidos por la búsqueda.
const (
	OrderByMake       = "make"
	OrderByNew        = "new"
	OrderByEndingSoon = "endingSoon"

	FilterByFinished   = "finished"
	FilterByEndingSoon = "endingSoon"
	FilterByLive       = "live"
)

const (
	DefaultPageSize = 4
	MaxPageSize     = 100
	// EndingSoonWindow es el margen para considerar que una subasta acaba pronto.
	EndingSoonWindow = 6 * time.Hour
)

type SearchParams struct {
	SearchTerm string
	OrderBy    string
	FilterBy   string
	Seller     string
	Winner     string
	PageNumber int
	PageSize   int
}

// Normalize aplica los valores por defecto de paginación, orden y filtro.
func (p SearchParams) Normalize() SearchParams {
	if p.PageNumber < 1 {
		p.PageNumber = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	switch p.OrderBy {
	case OrderByMake, OrderByNew:
	default:
		p.OrderBy = OrderByEndingSoon
	}
	switch p.FilterBy {
	case FilterByFinished, FilterByEndingSoon:
	default:
		p.FilterBy = FilterByLive
	}
	p.SearchTerm = strings.TrimSpace(p.SearchTerm)
	return p
}

func (p SearchParams) Skip() int {
	return (p.PageNumber - 1) * p.PageSize
}

type SearchResult struct {
	Results    []Item `json:"results"`
	PageCount  int    `json:"pageCount"`
	TotalCount int64  `json:"totalCount"`
}

func PageCount(total int64, pageSize int) int {
	if pageSize <= 0 || total == 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// Matches evalúa los filtros sobre un item. Es la referencia de las implementaciones en memoria.
func (p SearchParams) Matches(i Item, now time.Time) bool {
	switch p.FilterBy {
	case FilterByFinished:
		if !i.AuctionEnd.Before(now) {
			return false
		}
	case FilterByEndingSoon:
		if !i.AuctionEnd.After(now) || !i.AuctionEnd.Before(now.Add(EndingSoonWindow)) {
			return false
		}
	default:
		if !i.AuctionEnd.After(now) {
			return false
		}
	}
	if p.Seller != "" && i.Seller != p.Seller {
		return false
	}
	if p.Winner != "" && i.Winner != p.Winner {
		return false
	}
	if p.SearchTerm != "" {
		return matchesTerm(i, p.SearchTerm)
	}
	return true
}

// matchesTerm busca cada palabra en marca, modelo o color.
func matchesTerm(i Item, term string) bool {
	haystack := strings.ToLower(i.Make + " " + i.Model + " " + i.Color)
	for _, word := range strings.Fields(strings.ToLower(term)) {
		if strings.Contains(haystack, word) {
			return true
		}
	}
	return false
}

// Sort ordena los items según OrderBy; el id desempata.
func (p SearchParams) Sort(items []Item) {
	sort.SliceStable(items, func(a, b int) bool {
		x, y := items[a], items[b]
		switch p.OrderBy {
		case OrderByMake:
			if x.Make != y.Make {
				return x.Make < y.Make
			}
			if x.Model != y.Model {
				return x.Model < y.Model
			}
		case OrderByNew:
			if !x.CreatedAt.Equal(y.CreatedAt) {
				return x.CreatedAt.After(y.CreatedAt)
			}
		default:
			if !x.AuctionEnd.Equal(y.AuctionEnd) {
				return x.AuctionEnd.Before(y.AuctionEnd)
			}
		}
		return x.ID.String() < y.ID.String()
	})
}

// Page recorta la página pedida de una lista ya filtrada y ordenada.
func (p SearchParams) Page(items []Item) SearchResult {
	total := int64(len(items))
	start := p.Skip()
	if start > len(items) {
		start = len(items)
	}
	end := start + p.PageSize
	if end > len(items) {
		end = len(items)
	}
	return SearchResult{
		Results:    append([]Item{}, items[start:end]...),
		PageCount:  PageCount(total, p.PageSize),
		TotalCount: total,
	}
}
