package domain

import "slices"

// PositionStep is the gap used when placing an item past either end of a column.
const PositionStep = 1024.0

// SortOrderBetween returns a sort order strictly between prev and next.
// A nil bound means the drop happened at that end of the column.
func SortOrderBetween(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return 0
	case prev == nil:
		return *next - PositionStep
	case next == nil:
		return *prev + PositionStep
	default:
		return (*prev + *next) / 2
	}
}

// SortOrderForDrop computes the sort order for dropping an item at index
// within neighbors. neighbors must already exclude the moved item.
func SortOrderForDrop(neighbors []float64, index int) (float64, error) {
	if index < 0 || index > len(neighbors) {
		return 0, ErrInvalidPosition
	}
	ordered := slices.Clone(neighbors)
	slices.Sort(ordered)
	var prev, next *float64
	if index > 0 {
		prev = &ordered[index-1]
	}
	if index < len(ordered) {
		next = &ordered[index]
	}
	return SortOrderBetween(prev, next), nil
}
