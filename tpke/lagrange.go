package tpke

import (
	"fmt"

	"github.com/drand/kyber"

	"github.com/drand/stakedkg/common"
)

// LagrangeCoefficients returns, for each point x_j, the coefficient
//
//	L_j = Π_{m≠j} x_m / (x_m - x_j)
//
// which interpolates a polynomial at the origin from its values at points.
// Coefficients are returned in the order of points. A zero or repeated point
// fails with ErrArithmetic.
func LagrangeCoefficients(points []kyber.Scalar) ([]kyber.Scalar, error) {
	if len(points) == 0 {
		return []kyber.Scalar{}, nil
	}
	zero := points[0].Clone().Zero()
	for j, x := range points {
		if x.Equal(zero) {
			return nil, fmt.Errorf("%w: evaluation point %d is zero", common.ErrArithmetic, j)
		}
	}

	coeffs := make([]kyber.Scalar, len(points))
	for j, xj := range points {
		num := xj.Clone().One()
		den := xj.Clone().One()
		for m, xm := range points {
			if m == j {
				continue
			}
			diff := xm.Clone().Sub(xm, xj)
			if diff.Equal(zero) {
				return nil, fmt.Errorf("%w: evaluation points %d and %d are equal", common.ErrArithmetic, j, m)
			}
			num = num.Clone().Mul(num, xm)
			den = den.Clone().Mul(den, diff)
		}
		coeffs[j] = num.Clone().Div(num, den)
	}
	return coeffs, nil
}
