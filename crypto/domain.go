package crypto

import (
	"fmt"
	"math/big"
	"math/bits"

	lru "github.com/hashicorp/golang-lru"

	"github.com/drand/kyber"
)

// scalarFieldOrder is the order r of the BLS12-381 groups.
var scalarFieldOrder, _ = new(big.Int).SetString(
	"73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001", 16)

const (
	// twoAdicity is the largest s such that 2^s divides r-1.
	twoAdicity = 32
	// multiplicativeGenerator generates the multiplicative group of the
	// scalar field.
	multiplicativeGenerator = 7
)

// MaxDomainSize is the largest evaluation domain the scalar field supports.
const MaxDomainSize = 1 << twoAdicity

// EvaluationDomain is the ordered set of points at which the shared
// polynomial is evaluated: point i is ω^i where ω generates the subgroup of
// 2^k-th roots of unity, 2^k being the smallest power of two holding all the
// points. Points are pairwise distinct and never zero.
type EvaluationDomain struct {
	size      int
	generator kyber.Scalar
	points    []kyber.Scalar
}

// domains caches evaluation domains by (scheme, number of points).
var domains, _ = lru.New(32)

type domainKey struct {
	scheme string
	n      int
}

// NewEvaluationDomain returns the domain made of the first n powers of the
// root of unity of order nextPowerOfTwo(n).
func NewEvaluationDomain(sch *Scheme, n int) (*EvaluationDomain, error) {
	if n <= 0 || n > MaxDomainSize {
		return nil, fmt.Errorf("evaluation domain size %d out of range [1, %d]", n, MaxDomainSize)
	}
	key := domainKey{scheme: sch.Name, n: n}
	if d, ok := domains.Get(key); ok {
		return d.(*EvaluationDomain), nil
	}

	size := 1 << bits.Len(uint(n-1))
	exp := new(big.Int).Sub(scalarFieldOrder, big.NewInt(1))
	exp.Div(exp, big.NewInt(int64(size)))
	gen := sch.CommitGroup.Scalar().SetInt64(multiplicativeGenerator)
	omega := scalarExp(gen, exp)

	points := make([]kyber.Scalar, n)
	points[0] = sch.CommitGroup.Scalar().One()
	for i := 1; i < n; i++ {
		points[i] = sch.CommitGroup.Scalar().Mul(points[i-1], omega)
	}

	d := &EvaluationDomain{
		size:      size,
		generator: omega,
		points:    points,
	}
	domains.Add(key, d)
	return d, nil
}

// Len returns the number of points of the domain.
func (d *EvaluationDomain) Len() int {
	return len(d.points)
}

// Size returns the order of the root of unity generating the domain.
func (d *EvaluationDomain) Size() int {
	return d.size
}

// Generator returns a copy of the root of unity generating the domain.
func (d *EvaluationDomain) Generator() kyber.Scalar {
	return d.generator.Clone()
}

// Point returns a copy of the i-th point of the domain.
func (d *EvaluationDomain) Point(i int) kyber.Scalar {
	return d.points[i].Clone()
}

// Points returns copies of the points in [start, end).
func (d *EvaluationDomain) Points(start, end int) []kyber.Scalar {
	out := make([]kyber.Scalar, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, d.points[i].Clone())
	}
	return out
}

// scalarExp computes base^exp by square and multiply.
func scalarExp(base kyber.Scalar, exp *big.Int) kyber.Scalar {
	acc := base.Clone().One()
	for i := exp.BitLen() - 1; i >= 0; i-- {
		acc = acc.Clone().Mul(acc, acc)
		if exp.Bit(i) == 1 {
			acc = acc.Clone().Mul(acc, base)
		}
	}
	return acc
}
