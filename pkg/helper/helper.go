package helper

import (
	"strconv"
)

// FormatPoints prints a points total as its raw value: 395.5, 387.5, 0.
func FormatPoints(points float64) string {
	return strconv.FormatFloat(points, 'f', -1, 64)
}

// Pages returns how many pages of perPage items are needed for total items.
func Pages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// PageBounds clamps page into range and returns it along with the slice
// bounds of its items.
func PageBounds(page, total, perPage int) (int, int, int) {
	pages := Pages(total, perPage)
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	if perPage <= 0 {
		return page, 0, total
	}
	from := page * perPage
	to := from + perPage
	if to > total {
		to = total
	}
	if from > total {
		from = total
	}
	return page, from, to
}

// PageOf returns the page holding the item at index.
func PageOf(index, perPage int) int {
	if index < 0 || perPage <= 0 {
		return 0
	}
	return index / perPage
}
