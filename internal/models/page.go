package models

// Page is the pagination state reported through the total-pages and current-page response headers.
type Page struct {
	Current int `json:"current_page"`
	Total   int `json:"total_pages"`
}

func (p Page) HasNext() bool {
	return p.Current < p.Total
}
