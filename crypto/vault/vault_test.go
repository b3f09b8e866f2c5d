package vault

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/drand/kyber/util/random"
	"github.com/stretchr/testify/require"

	"github.com/drand/stakedkg/common/testlogger"
	"github.com/drand/stakedkg/crypto"
	"github.com/drand/stakedkg/dkg"
	"github.com/drand/stakedkg/key"
	"github.com/drand/stakedkg/tpke"
)

func finalizedSession(t *testing.T, stakes ...uint64) (*dkg.Session, []*key.Pair, *dkg.Aggregate) {
	t.Helper()
	sch := crypto.NewPVSSBLS12381Simple()
	var pairs []*key.Pair
	var anns []dkg.ValidatorAnnouncement
	for i, s := range stakes {
		p, err := key.NewKeyPair(fmt.Sprintf("127.0.0.1:%d", 7000+i), sch)
		require.NoError(t, err)
		pairs = append(pairs, p)
		anns = append(anns, dkg.ValidatorAnnouncement{Validator: p.Public, Amount: s})
	}
	s, err := dkg.NewSession(dkg.Config{
		Params:        dkg.Params{SecurityThreshold: 4, TotalWeight: 8, MinDealers: uint32(len(stakes))},
		Scheme:        sch,
		Announcements: anns,
		Logger:        testlogger.New(t),
	})
	require.NoError(t, err)
	for _, p := range pairs {
		_, err := s.DealAndRecord(p, random.New())
		require.NoError(t, err)
	}
	agg, err := s.Aggregate()
	require.NoError(t, err)
	require.NoError(t, s.Finalize(agg))
	return s, pairs, agg
}

func TestVaultDecryptionShares(t *testing.T) {
	s, pairs, agg := finalizedSession(t, 40, 30, 20, 10)
	vaults := make([]*Vault, len(pairs))
	for i, p := range pairs {
		v, err := NewVault(s, p)
		require.NoError(t, err)
		_, err = v.DecryptionShare(&tpke.Ciphertext{})
		require.True(t, errors.Is(err, ErrNoShare))
		require.Nil(t, v.PublicKey())
		require.NoError(t, v.SetAggregate(agg))
		vaults[i] = v
	}
	// stakes 40 and 30 weigh 4 and 3 out of 8
	require.Equal(t, 4, vaults[0].Weight())
	require.Equal(t, 3, vaults[1].Weight())

	pub, err := s.FinalKey()
	require.NoError(t, err)
	require.True(t, pub.Equal(vaults[2].PublicKey()))

	msg := []byte("vault")
	ct, err := tpke.Encrypt(s.Scheme(), msg, nil, pub, random.New())
	require.NoError(t, err)

	var wg sync.WaitGroup
	shares := make([]*tpke.DecryptionShareSimple, 2)
	for i := range shares {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := vaults[i].DecryptionShare(ct)
			require.NoError(t, err)
			shares[i] = ds
		}(i)
	}
	wg.Wait()
	secret, err := s.CombineDecryptionShares(shares)
	require.NoError(t, err)
	plain, err := tpke.DecryptWithSharedSecret(s.Scheme(), ct, secret)
	require.NoError(t, err)
	require.Equal(t, msg, plain)

	responders := []uint32{vaults[0].Index(), vaults[2].Index()}
	var pre []*tpke.DecryptionSharePrecomputed
	for _, v := range []*Vault{vaults[0], vaults[2]} {
		ds, err := v.DecryptionSharePrecomputed(ct, responders)
		require.NoError(t, err)
		pre = append(pre, ds)
	}
	secret, err = s.CombinePrecomputedShares(pre)
	require.NoError(t, err)
	plain, err = tpke.DecryptWithSharedSecret(s.Scheme(), ct, secret)
	require.NoError(t, err)
	require.Equal(t, msg, plain)

	_, err = vaults[1].DecryptionSharePrecomputed(ct, responders)
	require.Error(t, err)
}

func TestVaultRejectsForeignAggregate(t *testing.T) {
	s, pairs, _ := finalizedSession(t, 1, 1)
	_, _, other := finalizedSession(t, 1, 1)
	v, err := NewVault(s, pairs[0])
	require.NoError(t, err)
	require.Error(t, v.SetAggregate(other))

	stranger, err := key.NewKeyPair("127.0.0.1:6999", s.Scheme())
	require.NoError(t, err)
	_, err = NewVault(s, stranger)
	require.True(t, errors.Is(err, dkg.ErrUnknownValidator))
}
