package tpke

import (
	"fmt"

	"github.com/drand/kyber"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/crypto"
)

// Combine reconstructs the shared secret Π share_i^coeff_i from decryption
// shares and the Lagrange coefficients of the points they were produced at.
// shares[i] must correspond to coeffs[i].
func Combine(sch *crypto.Scheme, shares []kyber.Point, coeffs []kyber.Scalar) (kyber.Point, error) {
	if len(shares) != len(coeffs) {
		return nil, fmt.Errorf("%w: %d shares for %d coefficients", common.ErrLengthMismatch, len(shares), len(coeffs))
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no shares to combine", common.ErrLengthMismatch)
	}
	// in the target group, Add is the group product and Mul the exponentiation
	acc := sch.TargetGroup.Point().Mul(coeffs[0], shares[0])
	for i := 1; i < len(shares); i++ {
		term := sch.TargetGroup.Point().Mul(coeffs[i], shares[i])
		acc = sch.TargetGroup.Point().Add(acc, term)
	}
	return acc, nil
}

// CombinePrecomputed multiplies decryption shares that were already raised
// to their Lagrange coefficients by the validators that produced them.
func CombinePrecomputed(sch *crypto.Scheme, shares []*DecryptionSharePrecomputed) (kyber.Point, error) {
	var acc kyber.Point
	for _, s := range shares {
		for _, c := range s.Shares {
			if acc == nil {
				acc = c.Clone()
				continue
			}
			acc = sch.TargetGroup.Point().Add(acc, c)
		}
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: no shares to combine", common.ErrLengthMismatch)
	}
	return acc, nil
}
