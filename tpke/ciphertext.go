// Package tpke implements threshold decryption against the public key of a
// stake-weighted DKG: encryption, decryption shares, Lagrange interpolation
// in the exponent and the final symmetric decryption.
//
// With pk = a_0·G the DKG public key and H the ShareGroup generator:
//
//	Encrypt: U = r·G, S = e(pk, H)^r, payload = AEAD_{kdf(S)}(msg, aad)
//	         W = r·H2(U‖payload‖aad) authenticates the ciphertext
//	Share:   C_j = e(U, Z_j) with Z_j = f(ω_j)·H the validator's key share
//	Combine: S = Π C_j^{L_j}
package tpke

import (
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/drand/kyber"
	"golang.org/x/crypto/blake2b"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/crypto"
)

// Ciphertext is a message encrypted to the DKG public key.
type Ciphertext struct {
	// Commitment is U = r·G in CommitGroup
	Commitment kyber.Point
	// AuthTag is W = r·H2(U‖Payload‖AAD) in ShareGroup
	AuthTag kyber.Point
	AAD     []byte
	Payload []byte
}

type hashablePoint interface {
	Hash([]byte) kyber.Point
}

// Encrypt encrypts msg to the DKG public key pubKey. aad is authenticated but
// not encrypted.
func Encrypt(sch *crypto.Scheme, msg, aad []byte, pubKey kyber.Point, rand cipher.Stream) (*Ciphertext, error) {
	r := sch.CommitGroup.Scalar().Pick(rand)
	commitment := sch.CommitGroup.Point().Mul(r, nil)

	// e(r·pk, H) = e(pk, H)^r
	rPub := sch.CommitGroup.Point().Mul(r, pubKey)
	secret := sch.Pair(rPub, sch.ShareGroup.Point().Base())

	payload, err := seal(sch, secret, msg, aad)
	if err != nil {
		return nil, err
	}

	ct := &Ciphertext{
		Commitment: commitment,
		AAD:        aad,
		Payload:    payload,
	}
	h, err := ct.authHash(sch)
	if err != nil {
		return nil, err
	}
	ct.AuthTag = sch.ShareGroup.Point().Mul(r, h)
	return ct, nil
}

// authHash hashes the commitment, payload and aad to ShareGroup.
func (c *Ciphertext) authHash(sch *crypto.Scheme) (kyber.Point, error) {
	hashable, ok := sch.ShareGroup.Point().(hashablePoint)
	if !ok {
		return nil, errors.New("point needs to implement hashablePoint")
	}
	buff, err := c.Commitment.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buff = append(buff, c.Payload...)
	buff = append(buff, c.AAD...)
	return hashable.Hash(buff), nil
}

// CheckCiphertextValidity verifies that the ciphertext was produced by whoever
// knows the discrete log of its commitment, so that payload and aad cannot be
// swapped under an existing commitment. It returns ErrVerification otherwise.
func CheckCiphertextValidity(sch *crypto.Scheme, c *Ciphertext) error {
	if c == nil || c.Commitment == nil || c.AuthTag == nil {
		return fmt.Errorf("%w: incomplete ciphertext", common.ErrVerification)
	}
	h, err := c.authHash(sch)
	if err != nil {
		return err
	}
	// e(G, W) == e(U, H2(U‖payload‖aad))
	lhs := sch.Pair(sch.CommitGroup.Point().Base(), c.AuthTag)
	rhs := sch.Pair(c.Commitment, h)
	if !lhs.Equal(rhs) {
		return fmt.Errorf("%w: ciphertext authentication tag mismatch", common.ErrVerification)
	}
	return nil
}

// ID returns a digest identifying the ciphertext.
func (c *Ciphertext) ID() []byte {
	h, _ := blake2b.New256(nil)
	_, _ = c.Commitment.MarshalTo(h)
	_, _ = h.Write(c.Payload)
	_, _ = h.Write(c.AAD)
	return h.Sum(nil)
}
