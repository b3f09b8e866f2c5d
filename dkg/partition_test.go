package dkg

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drand/stakedkg/common"
)

type testAnnouncement struct {
	name  string
	stake uint64
}

type testParticipant struct {
	name   string
	weight uint32
	shares ShareRange
}

func (a testAnnouncement) Stake() uint64 {
	return a.stake
}

func (a testAnnouncement) Participant(weight uint32, shares ShareRange) testParticipant {
	return testParticipant{name: a.name, weight: weight, shares: shares}
}

func announce(stakes ...uint64) []testAnnouncement {
	out := make([]testAnnouncement, len(stakes))
	for i, s := range stakes {
		out[i] = testAnnouncement{name: string(rune('a' + i)), stake: s}
	}
	return out
}

func partition(t *testing.T, totalWeight uint32, anns []testAnnouncement) []testParticipant {
	t.Helper()
	ps, err := Partition[testParticipant](Params{TotalWeight: totalWeight}, anns)
	require.NoError(t, err)
	requireCovers(t, totalWeight, ps)
	return ps
}

// requireCovers checks the ranges are contiguous from 0 and cover the domain.
func requireCovers(t *testing.T, totalWeight uint32, ps []testParticipant) {
	t.Helper()
	var offset, sum uint32
	for _, p := range ps {
		require.Equal(t, offset, p.shares.Start)
		require.Equal(t, p.weight, p.shares.Len())
		offset = p.shares.End
		sum += p.weight
	}
	require.Equal(t, totalWeight, offset)
	require.Equal(t, totalWeight, sum)
}

func weights(ps []testParticipant) []uint32 {
	out := make([]uint32, len(ps))
	for i, p := range ps {
		out[i] = p.weight
	}
	return out
}

func TestPartitionProportional(t *testing.T) {
	ps := partition(t, 100, announce(40, 30, 20, 10))
	require.Equal(t, []uint32{40, 30, 20, 10}, weights(ps))
	require.Equal(t, []ShareRange{{0, 40}, {40, 70}, {70, 90}, {90, 100}},
		[]ShareRange{ps[0].shares, ps[1].shares, ps[2].shares, ps[3].shares})
}

func TestPartitionRemainderGoesToHighestStakes(t *testing.T) {
	ps := partition(t, 10, announce(1, 1, 1))
	require.Equal(t, []uint32{4, 3, 3}, weights(ps))
	require.Equal(t, "a", ps[0].name)

	// sorted by stake before the remainder is handed out
	ps = partition(t, 10, announce(1, 3, 2))
	require.Equal(t, []string{"b", "c", "a"}, []string{ps[0].name, ps[1].name, ps[2].name})
	// floors are 5, 3, 1 and the remaining index goes to b
	require.Equal(t, []uint32{6, 3, 1}, weights(ps))
}

func TestPartitionStableTies(t *testing.T) {
	anns := announce(5, 7, 5, 7, 5)
	ps := partition(t, 11, anns)
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.name
	}
	require.Equal(t, []string{"b", "d", "a", "c", "e"}, names)
	// the input slice is left untouched
	require.Equal(t, announce(5, 7, 5, 7, 5), anns)
}

func TestPartitionDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	stakes := make([]uint64, 17)
	for i := range stakes {
		stakes[i] = uint64(r.Intn(1000))
	}
	stakes[3] = stakes[9]
	first := partition(t, 256, announce(stakes...))
	second := partition(t, 256, announce(stakes...))
	require.Equal(t, first, second)
}

func TestPartitionCoverageRandomStakes(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		n := 1 + r.Intn(30)
		stakes := make([]uint64, n)
		for i := range stakes {
			// heavily skewed distributions
			stakes[i] = uint64(r.Int63n(1 << uint(r.Intn(50)+1)))
		}
		stakes[r.Intn(n)]++
		totalWeight := uint32(1 + r.Intn(2000))
		partition(t, totalWeight, announce(stakes...))
	}
}

func TestPartitionLargeStakes(t *testing.T) {
	ps := partition(t, 1000, announce(1<<62, 1<<61, 1<<61))
	require.Equal(t, []uint32{500, 250, 250}, weights(ps))

	// floors are 500, 249 and 249
	ps = partition(t, 1000, announce(math.MaxUint64/2, math.MaxUint64/4, math.MaxUint64/4))
	require.Equal(t, []uint32{501, 250, 249}, weights(ps))
}

func TestPartitionMonotonic(t *testing.T) {
	others := []uint64{13, 29, 7, 51}
	const totalWeight = 37
	var previous uint32
	for stake := uint64(0); stake <= 200; stake++ {
		anns := append([]testAnnouncement{{name: "x", stake: stake}}, announce(others...)...)
		ps := partition(t, totalWeight, anns)
		var w uint32
		for _, p := range ps {
			if p.name == "x" {
				w = p.weight
			}
		}
		assert.GreaterOrEqual(t, w, previous, "stake %d", stake)
		previous = w
	}
}

func TestPartitionZeroWeightParticipants(t *testing.T) {
	ps := partition(t, 2, announce(100, 100, 100, 1))
	require.Equal(t, []uint32{1, 1, 0, 0}, weights(ps))
	require.Equal(t, ShareRange{2, 2}, ps[3].shares)
	require.Empty(t, ps[3].shares.Indices())
}

func TestPartitionErrors(t *testing.T) {
	_, err := Partition[testParticipant](Params{TotalWeight: 10}, []testAnnouncement{})
	require.True(t, errors.Is(err, common.ErrLengthMismatch))

	_, err = Partition[testParticipant](Params{TotalWeight: 10}, announce(0, 0))
	require.True(t, errors.Is(err, common.ErrArithmetic))
}

func TestPartitionTotalStakeAbove64Bits(t *testing.T) {
	ps := partition(t, 10, announce(1<<63, 1<<63))
	require.Equal(t, []uint32{5, 5}, weights(ps))

	// floors are 9 and 0
	ps = partition(t, 10, announce(math.MaxUint64, 1))
	require.Equal(t, []uint32{10, 0}, weights(ps))

	ps = partition(t, 1000, announce(math.MaxUint64, math.MaxUint64, math.MaxUint64, math.MaxUint64))
	require.Equal(t, []uint32{250, 250, 250, 250}, weights(ps))
}

func TestShareRange(t *testing.T) {
	r := ShareRange{Start: 3, End: 6}
	require.Equal(t, uint32(3), r.Len())
	require.True(t, r.Contains(3))
	require.True(t, r.Contains(5))
	require.False(t, r.Contains(6))
	require.False(t, r.Contains(2))
	require.Equal(t, []uint32{3, 4, 5}, r.Indices())
	require.Equal(t, "[3, 6)", r.String())
}
