package dkg

import (
	"errors"
	"fmt"
)

// Params are the public parameters of one DKG epoch. All validators must
// run the session with identical parameters.
type Params struct {
	// Tau tags the epoch the session belongs to.
	Tau uint64
	// SecurityThreshold is the number of share indices needed to reconstruct
	// the secret. The shared polynomial has degree SecurityThreshold-1.
	SecurityThreshold uint32
	// TotalWeight is the number of share indices, i.e. the size of the
	// evaluation domain, split among validators in proportion to stake.
	TotalWeight uint32
	// MinDealers is the number of valid transcripts the aggregate must be
	// built from.
	MinDealers uint32
}

// Validate returns an error if the parameters cannot describe a session.
func (p Params) Validate() error {
	if p.TotalWeight == 0 {
		return errors.New("total weight must be positive")
	}
	if p.SecurityThreshold == 0 || p.SecurityThreshold > p.TotalWeight {
		return fmt.Errorf("security threshold %d must be within [1, %d]", p.SecurityThreshold, p.TotalWeight)
	}
	if p.MinDealers == 0 {
		return errors.New("at least one dealer is required")
	}
	return nil
}
