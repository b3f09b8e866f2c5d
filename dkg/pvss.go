package dkg

import (
	"crypto/cipher"
	"fmt"

	"github.com/drand/kyber"
	"github.com/drand/kyber/share"
	"github.com/drand/kyber/util/random"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/crypto"
)

// Transcript is the publicly verifiable sharing of one dealer. With f the
// dealer's secret polynomial of degree SecurityThreshold-1, G and H the
// generators of CommitGroup and ShareGroup:
//
//	Coeffs[k]    = a_k·G
//	Shares[i][j] = f(ω_{s+j})·ek_i  where [s, e) is participant i's range
//	Sigma        = a_0·H
type Transcript struct {
	Coeffs []kyber.Point
	Shares [][]kyber.Point
	Sigma  kyber.Point
}

// Deal samples a fresh secret polynomial and shares it to the participants of
// the session, encrypting each share to the owner's public key.
func Deal(s *Session, rand cipher.Stream) (*Transcript, error) {
	if rand == nil {
		rand = random.New()
	}
	sch := s.scheme
	poly := share.NewPriPoly(sch.CommitGroup, int(s.params.SecurityThreshold), nil, rand)
	_, commits := poly.Commit(sch.CommitGroup.Point().Base()).Info()
	coeffs := poly.Coefficients()

	shares := make([][]kyber.Point, len(s.participants))
	for i, p := range s.participants {
		ys := make([]kyber.Point, 0, p.Weight)
		for _, x := range s.domain.Points(int(p.Shares.Start), int(p.Shares.End)) {
			ys = append(ys, sch.ShareGroup.Point().Mul(evalScalarPoly(sch, coeffs, x), p.Validator.Key))
		}
		shares[i] = ys
	}

	return &Transcript{
		Coeffs: commits,
		Shares: shares,
		Sigma:  sch.ShareGroup.Point().Mul(coeffs[0], nil),
	}, nil
}

// checkStructure verifies the transcript has the shape expected by the
// session: one commitment per coefficient and one share per owned index.
func (t *Transcript) checkStructure(s *Session) error {
	if t == nil {
		return fmt.Errorf("%w: nil transcript", common.ErrVerification)
	}
	if len(t.Coeffs) != int(s.params.SecurityThreshold) {
		return fmt.Errorf("%w: %d commitments instead of %d", common.ErrVerification, len(t.Coeffs), s.params.SecurityThreshold)
	}
	for k, c := range t.Coeffs {
		if c == nil {
			return fmt.Errorf("%w: missing commitment %d", common.ErrVerification, k)
		}
	}
	if t.Sigma == nil {
		return fmt.Errorf("%w: missing sigma", common.ErrVerification)
	}
	if len(t.Shares) != len(s.participants) {
		return fmt.Errorf("%w: shares for %d participants instead of %d", common.ErrVerification, len(t.Shares), len(s.participants))
	}
	for i, p := range s.participants {
		if len(t.Shares[i]) != int(p.Weight) {
			return fmt.Errorf("%w: %d shares for participant %d of weight %d", common.ErrVerification, len(t.Shares[i]), i, p.Weight)
		}
		for j, y := range t.Shares[i] {
			if y == nil {
				return fmt.Errorf("%w: missing share %d of participant %d", common.ErrVerification, j, i)
			}
		}
	}
	return nil
}

// verifyOptimistic checks that Sigma shares the discrete log of the
// constant commitment: e(F_0, H) == e(G, Sigma).
func (t *Transcript) verifyOptimistic(sch *crypto.Scheme) error {
	lhs := sch.Pair(t.Coeffs[0], sch.ShareGroup.Point().Base())
	rhs := sch.Pair(sch.CommitGroup.Point().Base(), t.Sigma)
	if !lhs.Equal(rhs) {
		return fmt.Errorf("%w: sigma does not match the constant commitment", common.ErrVerification)
	}
	return nil
}

// verifyShares checks every encrypted share against the commitments. The
// shares of participant i are checked at once with random weights ρ_j:
//
//	e(Σ ρ_j·F(ω_j), ek_i) == e(G, Σ ρ_j·Y_ij)
//
// where F(x) = Σ x^k·F_k is evaluated through its scalar coefficients
// c_k = Σ ρ_j·ω_j^k.
func (t *Transcript) verifyShares(s *Session, rand cipher.Stream) error {
	sch := s.scheme
	threshold := len(t.Coeffs)
	g1 := sch.CommitGroup.Point().Base()
	for i, p := range s.participants {
		if p.Weight == 0 {
			continue
		}
		cs := make([]kyber.Scalar, threshold)
		for k := range cs {
			cs[k] = sch.CommitGroup.Scalar().Zero()
		}
		combined := sch.ShareGroup.Point().Null()
		for j, x := range s.domain.Points(int(p.Shares.Start), int(p.Shares.End)) {
			rho := sch.CommitGroup.Scalar().Pick(rand)
			pow := rho.Clone()
			for k := 0; k < threshold; k++ {
				cs[k] = sch.CommitGroup.Scalar().Add(cs[k], pow)
				pow = sch.CommitGroup.Scalar().Mul(pow, x)
			}
			combined = sch.ShareGroup.Point().Add(combined, sch.ShareGroup.Point().Mul(rho, t.Shares[i][j]))
		}
		expected := sch.CommitGroup.Point().Null()
		for k, c := range cs {
			expected = sch.CommitGroup.Point().Add(expected, sch.CommitGroup.Point().Mul(c, t.Coeffs[k]))
		}
		if !sch.Pair(expected, p.Validator.Key).Equal(sch.Pair(g1, combined)) {
			return fmt.Errorf("%w: shares of participant %d do not match the commitments", common.ErrVerification, i)
		}
	}
	return nil
}

// verifyFull runs all the checks of a transcript.
func (t *Transcript) verifyFull(s *Session) error {
	if err := t.checkStructure(s); err != nil {
		return err
	}
	if err := t.verifyOptimistic(s.scheme); err != nil {
		return err
	}
	return t.verifyShares(s, random.New())
}

// add returns the sum of two transcripts of the same session.
func (t *Transcript) add(sch *crypto.Scheme, o *Transcript) (*Transcript, error) {
	base := sch.CommitGroup.Point().Base()
	sum, err := share.NewPubPoly(sch.CommitGroup, base, t.Coeffs).Add(share.NewPubPoly(sch.CommitGroup, base, o.Coeffs))
	if err != nil {
		return nil, fmt.Errorf("%w: adding commitments: %v", common.ErrLengthMismatch, err)
	}
	_, coeffs := sum.Info()

	if len(t.Shares) != len(o.Shares) {
		return nil, fmt.Errorf("%w: shares for %d and %d participants", common.ErrLengthMismatch, len(t.Shares), len(o.Shares))
	}
	shares := make([][]kyber.Point, len(t.Shares))
	for i := range t.Shares {
		if len(t.Shares[i]) != len(o.Shares[i]) {
			return nil, fmt.Errorf("%w: %d and %d shares for participant %d", common.ErrLengthMismatch, len(t.Shares[i]), len(o.Shares[i]), i)
		}
		shares[i] = make([]kyber.Point, len(t.Shares[i]))
		for j := range t.Shares[i] {
			shares[i][j] = sch.ShareGroup.Point().Add(t.Shares[i][j], o.Shares[i][j])
		}
	}

	return &Transcript{
		Coeffs: coeffs,
		Shares: shares,
		Sigma:  sch.ShareGroup.Point().Add(t.Sigma, o.Sigma),
	}, nil
}

// clone returns a deep copy of the transcript.
func (t *Transcript) clone() *Transcript {
	coeffs := make([]kyber.Point, len(t.Coeffs))
	for k, c := range t.Coeffs {
		coeffs[k] = c.Clone()
	}
	shares := make([][]kyber.Point, len(t.Shares))
	for i, ys := range t.Shares {
		shares[i] = make([]kyber.Point, len(ys))
		for j, y := range ys {
			shares[i][j] = y.Clone()
		}
	}
	return &Transcript{Coeffs: coeffs, Shares: shares, Sigma: t.Sigma.Clone()}
}

// Equal reports whether both transcripts hold the same elements.
func (t *Transcript) Equal(o *Transcript) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.Coeffs) != len(o.Coeffs) || len(t.Shares) != len(o.Shares) {
		return false
	}
	if t.Sigma == nil || o.Sigma == nil || !t.Sigma.Equal(o.Sigma) {
		return false
	}
	for k := range t.Coeffs {
		if !t.Coeffs[k].Equal(o.Coeffs[k]) {
			return false
		}
	}
	for i := range t.Shares {
		if len(t.Shares[i]) != len(o.Shares[i]) {
			return false
		}
		for j := range t.Shares[i] {
			if !t.Shares[i][j].Equal(o.Shares[i][j]) {
				return false
			}
		}
	}
	return true
}

// evalScalarPoly evaluates the polynomial with the given coefficients at x.
func evalScalarPoly(sch *crypto.Scheme, coeffs []kyber.Scalar, x kyber.Scalar) kyber.Scalar {
	acc := sch.CommitGroup.Scalar().Zero()
	for k := len(coeffs) - 1; k >= 0; k-- {
		acc = sch.CommitGroup.Scalar().Mul(acc, x)
		acc = sch.CommitGroup.Scalar().Add(acc, coeffs[k])
	}
	return acc
}
