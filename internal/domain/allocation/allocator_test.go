package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
)

var (
	sgA = id.MustParse("00000000-0000-7000-8000-00000000000a")
	sgB = id.MustParse("00000000-0000-7000-8000-00000000000b")
	sgC = id.MustParse("00000000-0000-7000-8000-00000000000c")
	t0  = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func TestAllocate_FirstComeFirstServed(t *testing.T) {
	requests := []Request{
		{SubgroupID: sgA, Quantity: 3, Tolerance: 2, RequestedAt: at(0)},
		{SubgroupID: sgB, Quantity: 2, Tolerance: 1, RequestedAt: at(1)},
		{SubgroupID: sgC, Quantity: 4, Tolerance: 0, RequestedAt: at(2)},
	}

	tests := []struct {
		name  string
		total int
		want  []int
	}{
		{name: "nothing available", total: 0, want: []int{0, 0, 0}},
		{name: "shortage cuts the latest firm request", total: 7, want: []int{3, 2, 2}},
		{name: "firm requests exactly covered", total: 9, want: []int{3, 2, 4}},
		{name: "surplus goes to tolerance in arrival order", total: 12, want: []int{5, 3, 4}},
		{name: "more than everyone accepts", total: 100, want: []int{5, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.total, requests, FirstComeFirstServed{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocate_SameInstantOrderedBySubgroup(t *testing.T) {
	requests := []Request{
		{SubgroupID: sgC, Quantity: 2, RequestedAt: at(0)},
		{SubgroupID: sgA, Quantity: 2, RequestedAt: at(0)},
	}

	got, err := Allocate(3, requests, nil)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

func TestAllocate_RejectsNegativeInput(t *testing.T) {
	_, err := Allocate(-1, nil, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = Allocate(5, []Request{{SubgroupID: sgA, Quantity: -2}}, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

type brokenPolicy struct{}

func (brokenPolicy) Name() string { return "broken" }
func (brokenPolicy) Rank([]Request) ([]int, error) { return []int{0, 0}, nil }

func TestAllocate_RejectsPolicyThatIsNotAPermutation(t *testing.T) {
	requests := []Request{{SubgroupID: sgA, Quantity: 1}, {SubgroupID: sgB, Quantity: 1}}

	_, err := Allocate(2, requests, brokenPolicy{})

	assert.ErrorContains(t, err, "invalid rank index")
}

func TestPackagesToOrder(t *testing.T) {
	tests := []struct {
		quantity, tolerance, unitQuantity int
		want                              int
	}{
		{7, 0, 1, 7},
		{7, 3, 0, 7},
		{12, 0, 6, 2},
		{10, 0, 6, 1},
		{10, 2, 6, 2},
		{10, 1, 6, 1},
		{0, 5, 6, 0},
		{5, 1, 6, 1},
	}

	for _, tt := range tests {
		got := PackagesToOrder(tt.quantity, tt.tolerance, tt.unitQuantity)
		assert.Equal(t, tt.want, got, "quantity=%d tolerance=%d unit=%d", tt.quantity, tt.tolerance, tt.unitQuantity)
	}
}
