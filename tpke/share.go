package tpke

import (
	"fmt"

	"github.com/drand/kyber"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/crypto"
)

// PrivateKeyShare holds Z_j = f(ω_j)·H for every share index j owned by a
// validator, in the order of its share range.
type PrivateKeyShare struct {
	Points []kyber.Point
}

// DecryptionShareSimple is a validator's contribution to the decryption of
// one ciphertext: C_j = e(U, Z_j) for each of its share indices.
type DecryptionShareSimple struct {
	ValidatorIndex uint32
	Shares         []kyber.Point
}

// DecryptionSharePrecomputed is a DecryptionShareSimple whose elements were
// already raised to the Lagrange coefficients of a known set of responders.
type DecryptionSharePrecomputed struct {
	ValidatorIndex uint32
	Shares         []kyber.Point
}

// CreateDecryptionShareSimple computes the decryption share of a validator.
// It fails with ErrVerification if the ciphertext is not authenticated.
func CreateDecryptionShareSimple(sch *crypto.Scheme, c *Ciphertext, pks *PrivateKeyShare, index uint32) (*DecryptionShareSimple, error) {
	if err := CheckCiphertextValidity(sch, c); err != nil {
		return nil, err
	}
	shares := make([]kyber.Point, len(pks.Points))
	for j, z := range pks.Points {
		shares[j] = sch.Pair(c.Commitment, z)
	}
	return &DecryptionShareSimple{
		ValidatorIndex: index,
		Shares:         shares,
	}, nil
}

// CreateDecryptionSharePrecomputed computes a decryption share already
// raised to the given coefficients, one per private key share point.
func CreateDecryptionSharePrecomputed(sch *crypto.Scheme, c *Ciphertext, pks *PrivateKeyShare, coeffs []kyber.Scalar, index uint32) (*DecryptionSharePrecomputed, error) {
	if len(coeffs) != len(pks.Points) {
		return nil, fmt.Errorf("%w: %d coefficients for %d key shares", common.ErrLengthMismatch, len(coeffs), len(pks.Points))
	}
	simple, err := CreateDecryptionShareSimple(sch, c, pks, index)
	if err != nil {
		return nil, err
	}
	shares := make([]kyber.Point, len(simple.Shares))
	for j, s := range simple.Shares {
		shares[j] = sch.TargetGroup.Point().Mul(coeffs[j], s)
	}
	return &DecryptionSharePrecomputed{
		ValidatorIndex: index,
		Shares:         shares,
	}, nil
}
