package dkg

import (
	"fmt"

	"github.com/drand/stakedkg/key"
)

// ShareRange is the half-open range [Start, End) of share indices owned by a
// participant.
type ShareRange struct {
	Start uint32
	End   uint32
}

// Len returns the number of indices in the range.
func (r ShareRange) Len() uint32 {
	return r.End - r.Start
}

// Contains reports whether index i belongs to the range.
func (r ShareRange) Contains(i uint32) bool {
	return r.Start <= i && i < r.End
}

// Indices lists the indices of the range in increasing order.
func (r ShareRange) Indices() []uint32 {
	out := make([]uint32, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		out = append(out, i)
	}
	return out
}

func (r ShareRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Announcement is what a validator declares to take part in a DKG: its stake,
// and how to build its participant entry once its share of the domain is
// known.
type Announcement[P any] interface {
	Stake() uint64
	Participant(weight uint32, shares ShareRange) P
}

// ValidatorAnnouncement announces a validator identified by its long-term
// key with the given amount of stake.
type ValidatorAnnouncement struct {
	Validator *key.Identity
	Amount    uint64
}

// Stake implements Announcement.
func (a ValidatorAnnouncement) Stake() uint64 {
	return a.Amount
}

// Participant implements Announcement.
func (a ValidatorAnnouncement) Participant(weight uint32, shares ShareRange) Participant {
	return Participant{
		Validator: a.Validator,
		Stake:     a.Amount,
		Weight:    weight,
		Shares:    shares,
	}
}

// Participant is a validator taking part in a session, together with the
// share indices it owns. Weight always equals Shares.Len().
type Participant struct {
	Validator *key.Identity
	Stake     uint64
	Weight    uint32
	Shares    ShareRange
}
