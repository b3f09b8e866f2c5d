package dkg

import (
	"fmt"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/crypto"
)

// Aggregate is the sum of the valid transcripts of a session. Its constant
// commitment is the DKG public key and Shares[i] holds the encrypted key
// shares of participant i.
type Aggregate struct {
	Transcript
	// Dealers lists, in increasing order, the dealers whose transcripts were
	// summed.
	Dealers []uint32
}

// VerifyOptimistic checks the aggregate is well formed and that Sigma shares
// the discrete log of the public key. It needs no session state and does not
// detect shares inconsistent with the commitments.
func (a *Aggregate) VerifyOptimistic(sch *crypto.Scheme) bool {
	if a == nil || len(a.Coeffs) == 0 || a.Coeffs[0] == nil || a.Sigma == nil {
		return false
	}
	return a.verifyOptimistic(sch) == nil
}

// VerifyFull checks every share of the aggregate against its commitments and
// that the aggregate is exactly the sum of the valid transcripts recorded in
// the session.
func (a *Aggregate) VerifyFull(s *Session) bool {
	_, err := a.verifyFull(s)
	if err != nil {
		s.log.Warnw("aggregate failed full verification", "err", err)
	}
	return err == nil
}

func (a *Aggregate) verifyFull(s *Session) (int, error) {
	if a == nil {
		return 0, fmt.Errorf("%w: nil aggregate", common.ErrVerification)
	}
	if err := a.Transcript.verifyFull(s); err != nil {
		return 0, err
	}
	return s.VerifyAggregation(a)
}
