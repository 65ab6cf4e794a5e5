// Package allocation computes how a limited quantity of one article is shared
// between the subgroups that requested it.
//
// Allocation is a pure function of its inputs: for identical requests, total and
// policy it always returns the same results.
//
// Contract:
//   - Σ results never exceeds total
//   - a subgroup never receives more than quantity + tolerance
//   - firm quantities are served before any tolerance
package allocation

import (
	"fmt"
	"time"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
)

// Request is one subgroup's claim on an article.
type Request struct {
	SubgroupID  id.ID
	Quantity    int
	Tolerance   int
	RequestedAt time.Time
}

// Cap is the most this request can ever be granted.
func (r Request) Cap() int {
	return r.Quantity + r.Tolerance
}

// Policy decides the order in which requests are served.
type Policy interface {
	// Name identifies the policy in logs and audit entries.
	Name() string

	// Rank returns request indices, highest priority first.
	// The result must be a permutation of 0..len(requests)-1.
	Rank(requests []Request) ([]int, error)
}

// Allocate distributes total units across requests.
// The returned slice is aligned with requests.
//
// Firm quantities are granted in rank order until total runs out; whatever is
// left is then granted against tolerance in the same order.
func Allocate(total int, requests []Request, policy Policy) ([]int, error) {
	if total < 0 {
		return nil, apperror.NewValidation("total must not be negative").
			WithDetail("total", total)
	}
	for i, r := range requests {
		if r.Quantity < 0 || r.Tolerance < 0 {
			return nil, apperror.NewValidation("quantity and tolerance must not be negative").
				WithDetail("index", i).
				WithDetail("subgroup_id", r.SubgroupID.String())
		}
	}
	if policy == nil {
		policy = FirstComeFirstServed{}
	}

	results := make([]int, len(requests))
	if len(requests) == 0 || total == 0 {
		return results, nil
	}

	order, err := policy.Rank(requests)
	if err != nil {
		return nil, fmt.Errorf("rank requests with %s: %w", policy.Name(), err)
	}
	if err := checkPermutation(order, len(requests)); err != nil {
		return nil, fmt.Errorf("policy %s: %w", policy.Name(), err)
	}

	remaining := total
	for _, i := range order {
		grant := min(requests[i].Quantity, remaining)
		results[i] = grant
		remaining -= grant
		if remaining == 0 {
			return results, nil
		}
	}

	for _, i := range order {
		grant := min(requests[i].Tolerance, remaining)
		results[i] += grant
		remaining -= grant
		if remaining == 0 {
			break
		}
	}

	return results, nil
}

func checkPermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("ranked %d of %d requests", len(order), n)
	}
	seen := make([]bool, n)
	for _, i := range order {
		if i < 0 || i >= n || seen[i] {
			return fmt.Errorf("invalid rank index %d", i)
		}
		seen[i] = true
	}
	return nil
}

// PackagesToOrder returns how many supplier packages of unitQuantity pieces to
// order for the summed firm quantity and tolerance. A started package is only
// ordered when tolerance can fill it up.
func PackagesToOrder(quantity, tolerance, unitQuantity int) int {
	if unitQuantity <= 1 {
		return quantity
	}
	units := quantity / unitQuantity
	remainder := quantity % unitQuantity
	if remainder > 0 && remainder+tolerance >= unitQuantity {
		units++
	}
	return units
}
