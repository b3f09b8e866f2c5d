package dkg

import (
	"fmt"
	"math/big"
	"math/bits"
	"sort"

	"github.com/drand/stakedkg/common"
)

// Partition splits the params.TotalWeight share indices among the announced
// validators in proportion to their stake. The output is ordered by stake,
// highest first, with ties kept in input order; every validator computing the
// partition of the same announcements obtains the same result.
//
// Each validator first gets floor(TotalWeight·stake/totalStake) indices. The
// indices left over by rounding go one each to the highest stakes. Ranges are
// then assigned contiguously from 0, so that they cover [0, TotalWeight)
// without gap or overlap.
func Partition[P any, A Announcement[P]](params Params, announcements []A) ([]P, error) {
	if len(announcements) == 0 {
		return nil, fmt.Errorf("%w: no announcements to partition", common.ErrLengthMismatch)
	}
	sorted := make([]A, len(announcements))
	copy(sorted, announcements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Stake() > sorted[j].Stake()
	})

	// total stake on 128 bits, as hi:lo
	var totalHi, totalLo uint64
	for _, a := range sorted {
		var carry uint64
		totalLo, carry = bits.Add64(totalLo, a.Stake(), 0)
		totalHi += carry
	}
	if totalHi == 0 && totalLo == 0 {
		return nil, fmt.Errorf("%w: total stake is zero", common.ErrArithmetic)
	}

	weights := make([]uint32, len(sorted))
	var assigned uint64
	for i, a := range sorted {
		w := provisionalWeight(params.TotalWeight, a.Stake(), totalHi, totalLo)
		weights[i] = uint32(w)
		assigned += w
	}

	if assigned > uint64(params.TotalWeight) {
		return nil, fmt.Errorf("%w: provisional weights %d exceed total weight %d", common.ErrArithmetic, assigned, params.TotalWeight)
	}
	adjust := uint64(params.TotalWeight) - assigned
	if adjust > uint64(len(weights)) {
		return nil, fmt.Errorf("%w: rounding remainder %d exceeds the %d participants", common.ErrArithmetic, adjust, len(weights))
	}
	for i := uint64(0); i < adjust; i++ {
		weights[i]++
	}

	participants := make([]P, len(sorted))
	var offset uint32
	for i, a := range sorted {
		end, carry := bits.Add32(offset, weights[i], 0)
		if carry != 0 {
			return nil, fmt.Errorf("%w: share offset overflows", common.ErrArithmetic)
		}
		participants[i] = a.Participant(weights[i], ShareRange{Start: offset, End: end})
		offset = end
	}
	if offset != params.TotalWeight {
		return nil, fmt.Errorf("%w: weights sum to %d instead of %d", common.ErrArithmetic, offset, params.TotalWeight)
	}
	return participants, nil
}

// provisionalWeight returns floor(totalWeight·stake/total) with total given as
// hi:lo. The 128-bit product is exact and stake <= total keeps the quotient at
// most totalWeight.
func provisionalWeight(totalWeight uint32, stake, totalHi, totalLo uint64) uint64 {
	hi, lo := bits.Mul64(uint64(totalWeight), stake)
	if totalHi == 0 {
		w, _ := bits.Div64(hi, lo, totalLo)
		return w
	}
	num := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 64)
	num.Or(num, new(big.Int).SetUint64(lo))
	den := new(big.Int).Lsh(new(big.Int).SetUint64(totalHi), 64)
	den.Or(den, new(big.Int).SetUint64(totalLo))
	return num.Quo(num, den).Uint64()
}
