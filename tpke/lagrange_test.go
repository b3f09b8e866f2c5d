package tpke

import (
	"errors"
	"testing"

	"github.com/drand/kyber"
	"github.com/stretchr/testify/require"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/crypto"
)

func scalars(sch *crypto.Scheme, vs ...int64) []kyber.Scalar {
	out := make([]kyber.Scalar, len(vs))
	for i, v := range vs {
		out[i] = sch.CommitGroup.Scalar().SetInt64(v)
	}
	return out
}

func TestLagrangeInterpolatesAtOrigin(t *testing.T) {
	sch := crypto.NewPVSSBLS12381Simple()
	// f(x) = 3 + 5x + 7x²
	f := scalars(sch, 3, 5, 7)
	points := scalars(sch, 1, 2, 3)

	coeffs, err := LagrangeCoefficients(points)
	require.NoError(t, err)
	require.Len(t, coeffs, len(points))

	acc := sch.CommitGroup.Scalar().Zero()
	for i, x := range points {
		term := sch.CommitGroup.Scalar().Mul(coeffs[i], evalPoly(sch, f, x))
		acc = sch.CommitGroup.Scalar().Add(acc, term)
	}
	require.True(t, acc.Equal(f[0]), "got %s", acc)
}

func TestLagrangeOverDomainPoints(t *testing.T) {
	sch := crypto.NewPVSSBLS12381Simple()
	domain, err := crypto.NewEvaluationDomain(sch, 8)
	require.NoError(t, err)
	f := scalars(sch, 42, 1, 2, 3)

	// any 4 points out of 8 interpolate f
	points := []kyber.Scalar{domain.Point(7), domain.Point(2), domain.Point(0), domain.Point(5)}
	coeffs, err := LagrangeCoefficients(points)
	require.NoError(t, err)
	acc := sch.CommitGroup.Scalar().Zero()
	for i, x := range points {
		acc = sch.CommitGroup.Scalar().Add(acc, sch.CommitGroup.Scalar().Mul(coeffs[i], evalPoly(sch, f, x)))
	}
	require.True(t, acc.Equal(f[0]))

	// 3 points interpolate something else
	coeffs, err = LagrangeCoefficients(points[:3])
	require.NoError(t, err)
	acc = sch.CommitGroup.Scalar().Zero()
	for i, x := range points[:3] {
		acc = sch.CommitGroup.Scalar().Add(acc, sch.CommitGroup.Scalar().Mul(coeffs[i], evalPoly(sch, f, x)))
	}
	require.False(t, acc.Equal(f[0]))
}

func TestLagrangeSinglePoint(t *testing.T) {
	sch := crypto.NewPVSSBLS12381Simple()
	coeffs, err := LagrangeCoefficients(scalars(sch, 9))
	require.NoError(t, err)
	require.True(t, coeffs[0].Equal(sch.CommitGroup.Scalar().One()))

	coeffs, err = LagrangeCoefficients(nil)
	require.NoError(t, err)
	require.Empty(t, coeffs)
}

func TestLagrangeInvalidPoints(t *testing.T) {
	sch := crypto.NewPVSSBLS12381Simple()

	_, err := LagrangeCoefficients(scalars(sch, 1, 2, 1))
	require.True(t, errors.Is(err, common.ErrArithmetic))

	_, err = LagrangeCoefficients(scalars(sch, 1, 0, 3))
	require.True(t, errors.Is(err, common.ErrArithmetic))
}

func TestLagrangeDoesNotMutateInput(t *testing.T) {
	sch := crypto.NewPVSSBLS12381Simple()
	points := scalars(sch, 4, 5, 6)
	_, err := LagrangeCoefficients(points)
	require.NoError(t, err)
	for i, want := range scalars(sch, 4, 5, 6) {
		require.True(t, want.Equal(points[i]))
	}
}

// evalPoly evaluates the polynomial with the given coefficients at x.
func evalPoly(sch *crypto.Scheme, coeffs []kyber.Scalar, x kyber.Scalar) kyber.Scalar {
	acc := sch.CommitGroup.Scalar().Zero()
	for k := len(coeffs) - 1; k >= 0; k-- {
		acc = sch.CommitGroup.Scalar().Mul(acc, x)
		acc = sch.CommitGroup.Scalar().Add(acc, coeffs[k])
	}
	return acc
}
