package crypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluationDomainRootsOfUnity(t *testing.T) {
	sch := NewPVSSBLS12381Simple()
	one := sch.CommitGroup.Scalar().One()

	for _, n := range []int{1, 2, 3, 8, 10, 100} {
		d, err := NewEvaluationDomain(sch, n)
		require.NoError(t, err)
		require.Equal(t, n, d.Len())
		require.GreaterOrEqual(t, d.Size(), n)
		require.Less(t, d.Size(), 2*n+1)

		omega := d.Generator()
		require.True(t, scalarExp(omega, big.NewInt(int64(d.Size()))).Equal(one), "n=%d", n)
		if d.Size() > 1 {
			half := big.NewInt(int64(d.Size() / 2))
			require.False(t, scalarExp(omega, half).Equal(one), "n=%d", n)
		}
	}
}

func TestEvaluationDomainPointsDistinctNonZero(t *testing.T) {
	sch := NewPVSSBLS12381Simple()
	zero := sch.CommitGroup.Scalar().Zero()

	d, err := NewEvaluationDomain(sch, 20)
	require.NoError(t, err)
	seen := make(map[string]bool)
	for i := 0; i < d.Len(); i++ {
		p := d.Point(i)
		require.False(t, p.Equal(zero))
		require.False(t, seen[p.String()], "point %d repeated", i)
		seen[p.String()] = true
	}
	require.True(t, d.Point(0).Equal(sch.CommitGroup.Scalar().One()))
}

func TestEvaluationDomainCacheReturnsCopies(t *testing.T) {
	sch := NewPVSSBLS12381Simple()
	d1, err := NewEvaluationDomain(sch, 5)
	require.NoError(t, err)
	d2, err := NewEvaluationDomain(sch, 5)
	require.NoError(t, err)
	require.Same(t, d1, d2)

	p := d1.Point(3)
	p.Zero()
	require.False(t, d2.Point(3).Equal(p))

	pts := d1.Points(1, 4)
	require.Len(t, pts, 3)
	for i, pt := range pts {
		require.True(t, pt.Equal(d1.Point(i+1)))
	}
}

func TestEvaluationDomainInvalidSize(t *testing.T) {
	sch := NewPVSSBLS12381Simple()
	_, err := NewEvaluationDomain(sch, 0)
	require.Error(t, err)
	_, err = NewEvaluationDomain(sch, -3)
	require.Error(t, err)
}
