// Package dto provides request and response types for the ffserve API.
// These types are used by huma to generate OpenAPI documentation.
package dto

// PageParams is the page query parameter of the grouped author listings.
type PageParams struct {
	Page int `query:"page" default:"0" doc:"Zero-based page index; -1 returns every author on one page"`
}

// SortParams is the sort query parameter of the story listings.
type SortParams struct {
	Sort string `query:"sort" doc:"Sort key: title, author, category, words or updated (default updated)"`
}

// IDParam is a path parameter for resource IDs.
type IDParam struct {
	ID string `path:"id" doc:"Resource identifier"`
}

// RedirectOutput is a body-less redirect.
type RedirectOutput struct {
	Status   int
	Location string `header:"Location"`
}
