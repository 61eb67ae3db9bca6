package coredbx

import "sort"

// sortPgnoSlice sorts a slice of page numbers in ascending order.
// Dirty, retired and reclaimed page sets are kept sorted so merges,
// bounded scans and duplicate checks can use binary search instead of
// a linear walk.
func sortPgnoSlice(pages []pgno) {
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
}

// pnlMerge merges two already-sorted, duplicate-free page lists into a
// single sorted, duplicate-free list.
func pnlMerge(a, b []pgno) []pgno {
	out := make([]pgno, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
