// Package paging splits an ordered list of authors into pages bounded by story count.
//
// Items are appended to the current page while a running weight (the number of
// stories) is summed. As soon as the running weight reaches the threshold the page
// is closed. Whatever is left is flushed as the final page, so an empty input
// produces exactly one empty page. Page boundaries depend only on the inputs,
// which lets Find recompute them to locate an item.
package paging

import "errors"

// All requests every item as a single page.
const All = -1

// ErrPageOutOfRange is returned for an index past the last page.
var ErrPageOutOfRange = errors.New("page out of range")

// Group partitions items into pages. A threshold below one is treated as one.
func Group[T any](items []T, weight func(T) int, threshold int) [][]T {
	if threshold < 1 {
		threshold = 1
	}

	var pages [][]T
	current := []T{}
	count := 0
	for _, item := range items {
		current = append(current, item)
		count += weight(item)
		if count >= threshold {
			pages = append(pages, current)
			current = []T{}
			count = 0
		}
	}
	if len(current) > 0 || len(pages) == 0 {
		pages = append(pages, current)
	}
	return pages
}

// Page returns page index of the grouping and whether it is the last one.
// Index All returns every item in one page flagged as last.
func Page[T any](items []T, weight func(T) int, threshold, index int) ([]T, bool, error) {
	if index == All {
		return items, true, nil
	}
	pages := Group(items, weight, threshold)
	if index < 0 || index >= len(pages) {
		return nil, false, ErrPageOutOfRange
	}
	return pages[index], index == len(pages)-1, nil
}

// Count returns the number of pages Group would produce.
func Count[T any](items []T, weight func(T) int, threshold int) int {
	return len(Group(items, weight, threshold))
}

// Find returns the index of the first page holding an item for which match is true.
func Find[T any](items []T, weight func(T) int, threshold int, match func(T) bool) (int, bool) {
	for i, page := range Group(items, weight, threshold) {
		for _, item := range page {
			if match(item) {
				return i, true
			}
		}
	}
	return -1, false
}
