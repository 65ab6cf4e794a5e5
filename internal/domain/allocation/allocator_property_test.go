package allocation

import (
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"

	"foodcoop/internal/core/id"
)

func drawRequests(t *rapid.T) []Request {
	n := rapid.IntRange(0, 8).Draw(t, "n")
	requests := make([]Request, n)
	for i := range requests {
		var sg id.ID
		sg[15] = byte(i + 1)
		requests[i] = Request{
			SubgroupID:  sg,
			Quantity:    rapid.IntRange(0, 20).Draw(t, "quantity"),
			Tolerance:   rapid.IntRange(0, 20).Draw(t, "tolerance"),
			RequestedAt: t0.Add(time.Duration(rapid.IntRange(0, 5).Draw(t, "minute")) * time.Minute),
		}
	}
	return requests
}

func TestProperty_AllocationConservesTotalsAndCaps(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		requests := drawRequests(t)
		total := rapid.IntRange(0, 200).Draw(t, "total")

		results, err := Allocate(total, requests, FirstComeFirstServed{})
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}

		sum, caps, firm := 0, 0, 0
		for i, r := range requests {
			if results[i] < 0 || results[i] > r.Cap() {
				t.Fatalf("request %d got %d, cap %d", i, results[i], r.Cap())
			}
			sum += results[i]
			caps += r.Cap()
			firm += r.Quantity
		}
		if sum > total {
			t.Fatalf("allocated %d of %d", sum, total)
		}
		if sum != min(total, caps) {
			t.Fatalf("allocated %d, want everything claimable: %d", sum, min(total, caps))
		}
		if total >= firm {
			for i, r := range requests {
				if results[i] < r.Quantity {
					t.Fatalf("request %d got %d below firm %d though total %d covers all firm", i, results[i], r.Quantity, total)
				}
			}
		}
	})
}

func TestProperty_AllocationIgnoresInputOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		requests := drawRequests(t)
		total := rapid.IntRange(0, 200).Draw(t, "total")

		first, err := Allocate(total, requests, FirstComeFirstServed{})
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}

		shuffled := slices.Clone(requests)
		slices.Reverse(shuffled)
		second, err := Allocate(total, shuffled, FirstComeFirstServed{})
		if err != nil {
			t.Fatalf("allocate reversed: %v", err)
		}

		for i := range requests {
			j := len(requests) - 1 - i
			if first[i] != second[j] {
				t.Fatalf("subgroup %s got %d then %d", requests[i].SubgroupID, first[i], second[j])
			}
		}
	})
}
