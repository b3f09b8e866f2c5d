package dkg

import (
	"errors"
	"fmt"
)

// Status is the state of a session.
type Status uint32

const (
	// Sharing is the state a session starts in: transcripts are being
	// collected and fewer than MinDealers were recorded so far.
	Sharing Status = iota
	// Dealt means at least MinDealers transcripts were recorded. More may
	// still be recorded until the session is finalized.
	Dealt
	// Success means an aggregate was verified and the DKG public key is known
	Success
	// Invalid means the aggregate submitted for finalization failed
	// verification. The committee's key for this epoch cannot be trusted.
	Invalid
)

func (s Status) String() string {
	switch s {
	case Sharing:
		return "Sharing"
	case Dealt:
		return "Dealt"
	case Success:
		return "Success"
	case Invalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Status(%d)", uint32(s))
	}
}

func InvalidStateChange(from, to Status) error {
	return fmt.Errorf("invalid transition attempt from %s to %s", from.String(), to.String())
}

var ErrUnknownDealer = errors.New("the dealer is not a participant of the session")
var ErrDuplicateTranscript = errors.New("this dealer already submitted a transcript")
var ErrUnknownValidator = errors.New("the key does not belong to a participant of the session")
var ErrNotFinalized = errors.New("the session has not been finalized")

// isValidStateChange details all the viable state changes
func isValidStateChange(current, next Status) bool {
	switch current {
	case Sharing:
		return next == Dealt
	case Dealt:
		return next == Success || next == Invalid
	}
	return false
}
