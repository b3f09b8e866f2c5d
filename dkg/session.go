package dkg

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	clock "github.com/jonboulle/clockwork"

	"github.com/drand/kyber"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/common/log"
	"github.com/drand/stakedkg/crypto"
	"github.com/drand/stakedkg/internal/metrics"
	"github.com/drand/stakedkg/internal/util"
	"github.com/drand/stakedkg/key"
	"github.com/drand/stakedkg/tpke"
)

// Config holds all the information needed to open a session for one epoch.
type Config struct {
	// ID identifies the session. A random one is generated when unset.
	ID     uuid.UUID
	Params Params
	// Scheme defaults to the one named by the environment.
	Scheme        *crypto.Scheme
	Announcements []ValidatorAnnouncement
	Logger        log.Logger
	Clock         clock.Clock
}

type recordedTranscript struct {
	transcript *Transcript
	received   time.Time
	// verified caches the result of the full verification, nil until run
	verified *error
}

// Session is the state of the DKG of one epoch: the participants obtained by
// partitioning the announcements, the evaluation domain, the transcripts
// received so far and, once finalized, the verified aggregate.
type Session struct {
	sync.Mutex
	id           uuid.UUID
	params       Params
	scheme       *crypto.Scheme
	participants []Participant
	domain       *crypto.EvaluationDomain
	log          log.Logger
	clock        clock.Clock

	state       Status
	transcripts map[uint32]*recordedTranscript
	final       *Aggregate
}

// NewSession partitions the announcements and opens a session in the
// Sharing state. Every announced validator must carry a valid self-signed
// identity.
func NewSession(c Config) (*Session, error) {
	if err := c.Params.Validate(); err != nil {
		return nil, err
	}
	sch := c.Scheme
	if sch == nil {
		var err error
		if sch, err = crypto.GetSchemeFromEnv(); err != nil {
			return nil, err
		}
	}
	for i, a := range c.Announcements {
		if a.Validator == nil {
			return nil, fmt.Errorf("announcement %d has no validator", i)
		}
		if err := a.Validator.ValidSignature(); err != nil {
			return nil, fmt.Errorf("announcement %d from %s: %w", i, a.Validator.Address(), err)
		}
	}

	participants, err := Partition[Participant](c.Params, c.Announcements)
	if err != nil {
		return nil, err
	}
	if int(c.Params.MinDealers) > len(participants) {
		return nil, fmt.Errorf("%d dealers required but only %d participants", c.Params.MinDealers, len(participants))
	}
	domain, err := crypto.NewEvaluationDomain(sch, int(c.Params.TotalWeight))
	if err != nil {
		return nil, err
	}

	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	l := c.Logger
	if l == nil {
		l = log.DefaultLogger()
	}
	clk := c.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}

	s := &Session{
		id:           id,
		params:       c.Params,
		scheme:       sch,
		participants: participants,
		domain:       domain,
		log:          l.Named("dkg").With("session", id.String(), "tau", c.Params.Tau),
		clock:        clk,
		state:        Sharing,
		transcripts:  make(map[uint32]*recordedTranscript),
	}
	s.log.Infow("session opened", "participants", len(participants), "total_weight", c.Params.TotalWeight,
		"threshold", c.Params.SecurityThreshold, "scheme", sch.Name)
	metrics.DKGStateChange(id.String(), c.Params.Tau, uint32(Sharing))
	return s, nil
}

// ID returns the identifier of the session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Params returns the parameters of the session.
func (s *Session) Params() Params {
	return s.params
}

// Scheme returns the scheme of the session.
func (s *Session) Scheme() *crypto.Scheme {
	return s.scheme
}

// Domain returns the evaluation domain shared by all participants.
func (s *Session) Domain() *crypto.EvaluationDomain {
	return s.domain
}

// Participants returns a copy of the participants, highest stake first.
func (s *Session) Participants() []Participant {
	out := make([]Participant, len(s.participants))
	copy(out, s.participants)
	return out
}

// State returns the current state of the session.
func (s *Session) State() Status {
	s.Lock()
	defer s.Unlock()
	return s.state
}

// ParticipantIndex returns the position of the validator holding the given
// public key among the participants. Dealers are identified by this index.
func (s *Session) ParticipantIndex(id *key.Identity) (uint32, error) {
	_, i, err := util.First(s.participants, func(p Participant) bool {
		return p.Validator.Key.Equal(id.Key)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownValidator, id.Address())
	}
	return uint32(i), nil
}

// DomainPoints returns the evaluation points of the shares of participant i.
func (s *Session) DomainPoints(i uint32) ([]kyber.Scalar, error) {
	if int(i) >= len(s.participants) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownValidator, i)
	}
	r := s.participants[i].Shares
	return s.domain.Points(int(r.Start), int(r.End)), nil
}

func (s *Session) transition(next Status) error {
	if !isValidStateChange(s.state, next) {
		return InvalidStateChange(s.state, next)
	}
	s.log.Infow("state change", "from", s.state, "to", next)
	s.state = next
	metrics.DKGStateChange(s.id.String(), s.params.Tau, uint32(next))
	return nil
}

// RecordTranscript stores the transcript of a dealer. It is not verified
// here: invalid transcripts are excluded at aggregation time. The session
// moves to Dealt once MinDealers transcripts are recorded.
func (s *Session) RecordTranscript(dealer uint32, t *Transcript) error {
	s.Lock()
	defer s.Unlock()

	if s.state != Sharing && s.state != Dealt {
		return fmt.Errorf("cannot record a transcript in state %s", s.state)
	}
	if int(dealer) >= len(s.participants) {
		return fmt.Errorf("%w: index %d", ErrUnknownDealer, dealer)
	}
	if t == nil {
		return fmt.Errorf("%w: nil transcript", common.ErrVerification)
	}
	if _, ok := s.transcripts[dealer]; ok {
		return fmt.Errorf("%w: dealer %d", ErrDuplicateTranscript, dealer)
	}

	s.transcripts[dealer] = &recordedTranscript{transcript: t, received: s.clock.Now()}
	metrics.TranscriptsRecorded.WithLabelValues(s.id.String()).Inc()
	s.log.Debugw("transcript recorded", "dealer", dealer, "address", s.participants[dealer].Validator.Address(),
		"recorded", len(s.transcripts))

	if s.state == Sharing && len(s.transcripts) >= int(s.params.MinDealers) {
		return s.transition(Dealt)
	}
	return nil
}

// Transcripts returns the recorded transcripts by dealer index.
func (s *Session) Transcripts() map[uint32]*Transcript {
	s.Lock()
	defer s.Unlock()
	out := make(map[uint32]*Transcript, len(s.transcripts))
	for d, r := range s.transcripts {
		out[d] = r.transcript
	}
	return out
}

// verifyDealer runs, once, the full verification of a recorded transcript.
// Must be called with the lock held.
func (s *Session) verifyDealer(dealer uint32) error {
	r := s.transcripts[dealer]
	if r.verified == nil {
		err := r.transcript.verifyFull(s)
		r.verified = &err
		metrics.DealerVerified(err == nil)
	}
	return *r.verified
}

// honestSum adds up the recorded transcripts that pass verification, in
// increasing dealer order. The rejections are returned as a multierror.
// Must be called with the lock held.
func (s *Session) honestSum() (*Transcript, []uint32, error) {
	var sum *Transcript
	var dealers []uint32
	var rejected error
	for _, d := range util.SortedKeys(s.transcripts) {
		if err := s.verifyDealer(d); err != nil {
			rejected = multierror.Append(rejected, fmt.Errorf("dealer %d: %w", d, err))
			continue
		}
		t := s.transcripts[d].transcript
		if sum == nil {
			sum = t.clone()
		} else {
			var err error
			if sum, err = sum.add(s.scheme, t); err != nil {
				return nil, nil, err
			}
		}
		dealers = append(dealers, d)
	}
	return sum, dealers, rejected
}

// Aggregate sums the transcripts that pass verification. Invalid transcripts
// are left out. It fails with ErrVerification if fewer than MinDealers
// transcripts are valid.
func (s *Session) Aggregate() (*Aggregate, error) {
	s.Lock()
	defer s.Unlock()

	if s.state == Sharing {
		return nil, fmt.Errorf("only %d of %d transcripts recorded", len(s.transcripts), s.params.MinDealers)
	}
	start := s.clock.Now()
	sum, dealers, rejected := s.honestSum()
	metrics.AggregationDuration.Observe(s.clock.Since(start).Seconds())
	if rejected != nil {
		s.log.Warnw("transcripts excluded from aggregation", "err", rejected)
	}
	if len(dealers) < int(s.params.MinDealers) {
		return nil, fmt.Errorf("%w: %d valid transcripts, %d required", common.ErrVerification, len(dealers), s.params.MinDealers)
	}
	s.log.Infow("transcripts aggregated", "dealers", len(dealers), "took", s.clock.Since(start))
	return &Aggregate{Transcript: *sum, Dealers: dealers}, nil
}

// VerifyAggregation verifies every recorded transcript and returns how many
// are valid. Invalid transcripts are logged and do not count. It fails with
// ErrVerification if agg is not the sum of exactly the valid transcripts.
func (s *Session) VerifyAggregation(agg *Aggregate) (int, error) {
	s.Lock()
	defer s.Unlock()

	sum, dealers, rejected := s.honestSum()
	if rejected != nil {
		s.log.Warnw("dealers rejected", "count", len(rejected.(*multierror.Error).Errors), "err", rejected)
	}
	count := len(dealers)
	if count == 0 {
		return 0, fmt.Errorf("%w: no valid transcript", common.ErrVerification)
	}
	if agg == nil || agg.Transcript.checkStructure(s) != nil {
		return count, fmt.Errorf("%w: malformed aggregate", common.ErrVerification)
	}
	if len(agg.Dealers) != len(dealers) {
		return count, fmt.Errorf("%w: aggregate of %d dealers, %d valid", common.ErrVerification, len(agg.Dealers), count)
	}
	for i := range dealers {
		if agg.Dealers[i] != dealers[i] {
			return count, fmt.Errorf("%w: aggregate dealers differ from the valid dealers", common.ErrVerification)
		}
	}
	if !agg.Transcript.Equal(sum) {
		return count, fmt.Errorf("%w: aggregate differs from the sum of valid transcripts", common.ErrVerification)
	}
	return count, nil
}

// Finalize verifies the aggregate and, on success, makes it the outcome of
// the session. A failed verification moves the session to Invalid and is
// returned as ErrVerification.
func (s *Session) Finalize(agg *Aggregate) error {
	if st := s.State(); st != Dealt {
		return InvalidStateChange(st, Success)
	}

	var err error
	if !agg.VerifyOptimistic(s.scheme) {
		err = fmt.Errorf("%w: aggregate failed optimistic verification", common.ErrVerification)
	} else {
		var count int
		count, err = agg.verifyFull(s)
		if err == nil && count < int(s.params.MinDealers) {
			err = fmt.Errorf("%w: %d valid transcripts, %d required", common.ErrVerification, count, s.params.MinDealers)
		}
	}

	s.Lock()
	defer s.Unlock()
	if err != nil {
		s.log.Errorw("aggregate rejected", "err", err)
		if terr := s.transition(Invalid); terr != nil {
			return multierror.Append(err, terr)
		}
		return err
	}
	if err := s.transition(Success); err != nil {
		return err
	}
	s.final = agg
	s.log.Infow("session finalized", "dealers", len(agg.Dealers), "public_key", agg.Coeffs[0].String())
	return nil
}

// FinalAggregate returns the aggregate the session was finalized with.
func (s *Session) FinalAggregate() (*Aggregate, error) {
	s.Lock()
	defer s.Unlock()
	if s.state != Success {
		return nil, ErrNotFinalized
	}
	return s.final, nil
}

// FinalKey returns the DKG public key: the constant commitment of the
// finalized aggregate.
func (s *Session) FinalKey() (kyber.Point, error) {
	agg, err := s.FinalAggregate()
	if err != nil {
		return nil, err
	}
	return agg.Coeffs[0].Clone(), nil
}

// PrivateKeyShare decrypts the validator's shares of the aggregate:
// Z_j = dk·Y_j = f(ω_j)·H.
func (s *Session) PrivateKeyShare(agg *Aggregate, pair *key.Pair) (*tpke.PrivateKeyShare, error) {
	i, err := s.ParticipantIndex(pair.Public)
	if err != nil {
		return nil, err
	}
	if len(agg.Shares) != len(s.participants) || len(agg.Shares[i]) != int(s.participants[i].Weight) {
		return nil, fmt.Errorf("%w: aggregate shares do not match participant %d", common.ErrLengthMismatch, i)
	}
	dk := pair.DecryptionKey()
	points := make([]kyber.Point, len(agg.Shares[i]))
	for j, y := range agg.Shares[i] {
		points[j] = s.scheme.ShareGroup.Point().Mul(dk, y)
	}
	return &tpke.PrivateKeyShare{Points: points}, nil
}

// DecryptionShareSimple computes the validator's decryption share of ct.
func (s *Session) DecryptionShareSimple(agg *Aggregate, pair *key.Pair, ct *tpke.Ciphertext) (*tpke.DecryptionShareSimple, error) {
	i, err := s.ParticipantIndex(pair.Public)
	if err != nil {
		return nil, err
	}
	pks, err := s.PrivateKeyShare(agg, pair)
	if err != nil {
		return nil, err
	}
	ds, err := tpke.CreateDecryptionShareSimple(s.scheme, ct, pks, i)
	if err != nil {
		return nil, err
	}
	metrics.DecryptionSharesCreated.WithLabelValues("simple").Inc()
	return ds, nil
}

// DecryptionSharePrecomputed computes the validator's decryption share of ct
// for the given set of responders, which must include the validator.
func (s *Session) DecryptionSharePrecomputed(agg *Aggregate, pair *key.Pair, ct *tpke.Ciphertext, responders []uint32) (*tpke.DecryptionSharePrecomputed, error) {
	i, err := s.ParticipantIndex(pair.Public)
	if err != nil {
		return nil, err
	}
	points, offset, err := s.ResponderPoints(i, responders)
	if err != nil {
		return nil, err
	}
	coeffs, err := tpke.LagrangeCoefficients(points)
	if err != nil {
		return nil, err
	}
	pks, err := s.PrivateKeyShare(agg, pair)
	if err != nil {
		return nil, err
	}
	ds, err := tpke.CreateDecryptionSharePrecomputed(s.scheme, ct, pks, coeffs[offset:offset+len(pks.Points)], i)
	if err != nil {
		return nil, err
	}
	metrics.DecryptionSharesCreated.WithLabelValues("precomputed").Inc()
	return ds, nil
}

// ResponderPoints concatenates the domain points of the responders, in the
// given order, and returns the position of the first point of validator i.
func (s *Session) ResponderPoints(i uint32, responders []uint32) ([]kyber.Scalar, int, error) {
	var points []kyber.Scalar
	offset := -1
	for _, r := range responders {
		if r == i {
			offset = len(points)
		}
		ps, err := s.DomainPoints(r)
		if err != nil {
			return nil, 0, err
		}
		points = append(points, ps...)
	}
	if offset < 0 {
		return nil, 0, fmt.Errorf("validator %d is not among the responders", i)
	}
	return points, offset, nil
}

// CombineDecryptionShares interpolates the shared secret from the decryption
// shares of the responding validators. Shares from fewer indices than the
// security threshold combine to a wrong secret that fails decryption.
func (s *Session) CombineDecryptionShares(shares []*tpke.DecryptionShareSimple) (kyber.Point, error) {
	var points []kyber.Scalar
	var elems []kyber.Point
	for _, ds := range shares {
		if ds == nil {
			return nil, errors.New("nil decryption share")
		}
		ps, err := s.DomainPoints(ds.ValidatorIndex)
		if err != nil {
			return nil, err
		}
		if len(ps) != len(ds.Shares) {
			return nil, fmt.Errorf("%w: %d shares from validator %d of weight %d",
				common.ErrLengthMismatch, len(ds.Shares), ds.ValidatorIndex, len(ps))
		}
		points = append(points, ps...)
		elems = append(elems, ds.Shares...)
	}
	coeffs, err := tpke.LagrangeCoefficients(points)
	if err != nil {
		return nil, err
	}
	secret, err := tpke.Combine(s.scheme, elems, coeffs)
	if err != nil {
		return nil, err
	}
	metrics.SharesCombined.Add(float64(len(elems)))
	return secret, nil
}

// CombinePrecomputedShares multiplies precomputed decryption shares.
func (s *Session) CombinePrecomputedShares(shares []*tpke.DecryptionSharePrecomputed) (kyber.Point, error) {
	secret, err := tpke.CombinePrecomputed(s.scheme, shares)
	if err != nil {
		return nil, err
	}
	for _, ds := range shares {
		metrics.SharesCombined.Add(float64(len(ds.Shares)))
	}
	return secret, nil
}

// DealAndRecord deals a transcript as the given validator and records it.
func (s *Session) DealAndRecord(pair *key.Pair, rand cipher.Stream) (*Transcript, error) {
	i, err := s.ParticipantIndex(pair.Public)
	if err != nil {
		return nil, err
	}
	t, err := Deal(s, rand)
	if err != nil {
		return nil, err
	}
	return t, s.RecordTranscript(i, t)
}
