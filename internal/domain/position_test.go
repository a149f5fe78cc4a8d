package domain

import (
	"errors"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestSortOrderBetween(t *testing.T) {
	tests := []struct {
		name string
		prev *float64
		next *float64
		want float64
	}{
		{name: "midpoint", prev: ptr(10.0), next: ptr(20.0), want: 15},
		{name: "before first", prev: nil, next: ptr(10.0), want: 10 - PositionStep},
		{name: "after last", prev: ptr(20.0), next: nil, want: 20 + PositionStep},
		{name: "empty column", want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SortOrderBetween(tc.prev, tc.next); got != tc.want {
				t.Fatalf("SortOrderBetween() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSortOrderForDrop(t *testing.T) {
	neighbors := []float64{20, 10}
	got, err := SortOrderForDrop(neighbors, 1)
	if err != nil {
		t.Fatalf("SortOrderForDrop() error = %v", err)
	}
	if got != 15 {
		t.Fatalf("expected midpoint 15, got %v", got)
	}
	got, err = SortOrderForDrop(neighbors, 0)
	if err != nil {
		t.Fatalf("SortOrderForDrop(0) error = %v", err)
	}
	if got >= 10 || got != 10-PositionStep {
		t.Fatalf("expected fixed step before 10, got %v", got)
	}
	if _, err := SortOrderForDrop(neighbors, 3); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
	if neighbors[0] != 20 {
		t.Fatal("SortOrderForDrop must not reorder caller slice")
	}
}
