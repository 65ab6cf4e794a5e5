package allocation

import (
	"slices"

	"foodcoop/internal/core/id"
)

// FirstComeFirstServed serves the earliest request first.
// Requests placed at the same instant are ordered by subgroup id.
type FirstComeFirstServed struct{}

// Name implements Policy.
func (FirstComeFirstServed) Name() string { return "fcfs" }

// Rank implements Policy.
func (FirstComeFirstServed) Rank(requests []Request) ([]int, error) {
	order := identity(len(requests))
	slices.SortStableFunc(order, func(a, b int) int {
		return compareArrival(requests[a], requests[b])
	})
	return order, nil
}

func compareArrival(a, b Request) int {
	if c := a.RequestedAt.Compare(b.RequestedAt); c != 0 {
		return c
	}
	return id.Compare(a.SubgroupID, b.SubgroupID)
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
