package services

import (
	"math"

	"gigBack/internal/models"
)

// evenSplits divides 100% into n whole percentages. The first member takes
// the remainder so the result always sums to models.FullSplitBP.
func evenSplits(n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := int64(100 / n)
	remainder := 100 - base*int64(n)
	out := make([]int64, n)
	for i := range out {
		out[i] = base * 100
	}
	out[0] += remainder * 100
	return out
}

// redistribute spreads a removed member's share over the remaining members.
// Each gets removed/len(current) in hundredths of a percent; the leftover
// hundredths go to the first member.
func redistribute(current []int64, removed int64) []int64 {
	if len(current) == 0 {
		return nil
	}
	n := int64(len(current))
	extra := removed / n
	leftover := removed - extra*n
	out := make([]int64, len(current))
	for i, v := range current {
		out[i] = v + extra
	}
	out[0] += leftover
	return out
}

// errSplitPrecision rejects percentages finer than a hundredth.
var errSplitPrecision = &models.Error{Kind: models.ErrValidation, Code: models.ErrInvalidSplit.Code, Message: "splits allow at most two decimals"}

// toBasisPoints converts a percentage with up to two decimals. Finer values
// are rejected rather than rounded.
func toBasisPoints(pct float64) (int64, error) {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, models.ErrInvalidSplit
	}
	bp := math.Round(pct * 100)
	if math.Abs(pct*100-bp) > 1e-6 {
		return 0, errSplitPrecision
	}
	return int64(bp), nil
}

func splitSum(members []models.BandMember) int64 {
	var sum int64
	for _, m := range members {
		sum += m.SplitBP
	}
	return sum
}

func checkSplits(members []models.BandMember) error {
	if len(members) == 0 {
		return nil
	}
	for _, m := range members {
		if m.SplitBP < 0 {
			return models.ErrInvalidSplit
		}
	}
	if splitSum(members) != models.FullSplitBP {
		return models.ErrInvalidSplit
	}
	return nil
}

func countAdmins(members []models.BandMember) int {
	n := 0
	for _, m := range members {
		if m.IsAdmin {
			n++
		}
	}
	return n
}
