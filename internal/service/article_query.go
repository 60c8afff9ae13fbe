package service

import (
	"strconv"

	"myblog/internal/models"
	"myblog/internal/repository"
)

const (
	// OrderByViews is the order token that sorts a listing by view count.
	OrderByViews = "total_views"
	// TagPlaceholder is what templates send when no tag is selected.
	TagPlaceholder = "None"
)

// ListArticlesInput carries the raw query parameters of a listing request.
type ListArticlesInput struct {
	Search string
	Order  string
	Column string
	Tag    string
	Page   string
}

// ArticlePage is one page of a listing together with the echoed query so
// templates can build pagination links.
type ArticlePage struct {
	Articles []*models.Article `json:"articles"`
	Search   string            `json:"search"`
	Order    string            `json:"order"`
	Column   string            `json:"column"`
	Tag      string            `json:"tag"`

	Number       int   `json:"page"`
	NumPages     int   `json:"num_pages"`
	Total        int64 `json:"total"`
	PerPage      int   `json:"per_page"`
	HasPrevious  bool  `json:"has_previous"`
	HasNext      bool  `json:"has_next"`
	PreviousPage int   `json:"previous_page,omitempty"`
	NextPage     int   `json:"next_page,omitempty"`
}

// BuildFilter turns listing parameters into a repository filter. Malformed
// values are dropped rather than rejected.
func BuildFilter(in ListArticlesInput) repository.ArticleFilter {
	f := repository.ArticleFilter{
		Search:       in.Search,
		OrderByViews: in.Order == OrderByViews,
	}
	if id, ok := parseColumnID(in.Column); ok {
		f.ColumnID = &id
	}
	if in.Tag != "" && in.Tag != TagPlaceholder {
		f.Tag = in.Tag
	}
	return f
}

// parseColumnID accepts only plain decimal digits.
func parseColumnID(s string) (uint, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// pageCount is the number of pages for total items. An empty result still
// has one (empty) page.
func pageCount(total int64, perPage int) int {
	if total <= 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// clampPage resolves the requested page number against numPages. Garbage
// becomes the first page and out-of-range numbers snap to the nearest end.
func clampPage(raw string, numPages int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	if n > numPages {
		return numPages
	}
	return n
}

func newArticlePage(in ListArticlesInput, total int64, perPage int) *ArticlePage {
	numPages := pageCount(total, perPage)
	number := clampPage(in.Page, numPages)
	p := &ArticlePage{
		Search:      in.Search,
		Order:       in.Order,
		Column:      in.Column,
		Tag:         in.Tag,
		Number:      number,
		NumPages:    numPages,
		Total:       total,
		PerPage:     perPage,
		HasPrevious: number > 1,
		HasNext:     number < numPages,
	}
	if p.HasPrevious {
		p.PreviousPage = number - 1
	}
	if p.HasNext {
		p.NextPage = number + 1
	}
	return p
}

func (p *ArticlePage) offset() int {
	return (p.Number - 1) * p.PerPage
}
