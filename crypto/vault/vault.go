package vault

import (
	"errors"
	"fmt"
	"sync"

	"github.com/drand/kyber"

	"github.com/drand/stakedkg/crypto"
	"github.com/drand/stakedkg/dkg"
	"github.com/drand/stakedkg/internal/metrics"
	"github.com/drand/stakedkg/key"
	"github.com/drand/stakedkg/tpke"
)

// ErrNoShare is returned when the vault is used before a finalized aggregate
// was handed to it.
var ErrNoShare = errors.New("vault holds no key share")

// CryptoSafe holds the cryptographic material needed to answer decryption
// requests.
type CryptoSafe interface {
	// DecryptionShare returns the validator's decryption share of ct
	DecryptionShare(ct *tpke.Ciphertext) (*tpke.DecryptionShareSimple, error)
}

// Vault stores the validator key pair and its private key share of the
// finalized aggregate (it implements CryptoSafe interface).
// Vault is thread safe when using the methods.
type Vault struct {
	mu sync.RWMutex
	*crypto.Scheme
	pair    *key.Pair
	session *dkg.Session
	index   uint32
	// decrypted shares Z_j of the validator
	share *tpke.PrivateKeyShare
	// public key of the DKG
	pub kyber.Point
}

// NewVault returns a vault for the validator of pair. The validator must take
// part in the session.
func NewVault(s *dkg.Session, pair *key.Pair) (*Vault, error) {
	i, err := s.ParticipantIndex(pair.Public)
	if err != nil {
		return nil, err
	}
	return &Vault{
		Scheme:  s.Scheme(),
		pair:    pair,
		session: s,
		index:   i,
	}, nil
}

// SetAggregate decrypts the validator's share of the aggregate, which must be
// the one the session finalized with.
func (v *Vault) SetAggregate(agg *dkg.Aggregate) error {
	final, err := v.session.FinalAggregate()
	if err != nil {
		return err
	}
	if !final.Equal(&agg.Transcript) {
		return fmt.Errorf("aggregate differs from the finalized one")
	}
	pks, err := v.session.PrivateKeyShare(agg, v.pair)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.share = pks
	v.pub = agg.Coeffs[0].Clone()
	return nil
}

// Index returns the position of the validator in the session
func (v *Vault) Index() uint32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.index
}

// PublicKey returns the DKG public key, or nil before SetAggregate.
func (v *Vault) PublicKey() kyber.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pub
}

// Weight returns the number of key shares held.
func (v *Vault) Weight() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.share == nil {
		return 0
	}
	return len(v.share.Points)
}

// DecryptionShare implements the CryptoSafe interface
func (v *Vault) DecryptionShare(ct *tpke.Ciphertext) (*tpke.DecryptionShareSimple, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.share == nil {
		return nil, ErrNoShare
	}
	ds, err := tpke.CreateDecryptionShareSimple(v.Scheme, ct, v.share, v.index)
	if err != nil {
		return nil, err
	}
	metrics.DecryptionSharesCreated.WithLabelValues("simple").Inc()
	return ds, nil
}

// DecryptionSharePrecomputed returns the validator's share of ct with the
// Lagrange coefficients for responders already applied.
func (v *Vault) DecryptionSharePrecomputed(ct *tpke.Ciphertext, responders []uint32) (*tpke.DecryptionSharePrecomputed, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.share == nil {
		return nil, ErrNoShare
	}
	points, offset, err := v.session.ResponderPoints(v.index, responders)
	if err != nil {
		return nil, err
	}
	coeffs, err := tpke.LagrangeCoefficients(points)
	if err != nil {
		return nil, err
	}
	ds, err := tpke.CreateDecryptionSharePrecomputed(v.Scheme, ct, v.share, coeffs[offset:offset+len(v.share.Points)], v.index)
	if err != nil {
		return nil, err
	}
	metrics.DecryptionSharesCreated.WithLabelValues("precomputed").Inc()
	return ds, nil
}
