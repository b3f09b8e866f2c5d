package boltdb

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/drand/kyber/util/random"

	"github.com/drand/stakedkg/common/testlogger"
	"github.com/drand/stakedkg/crypto"
	"github.com/drand/stakedkg/dkg"
	"github.com/drand/stakedkg/key"
	"github.com/drand/stakedkg/tpke"
)

func newSession(t *testing.T, n int) (*dkg.Session, []*key.Pair) {
	t.Helper()
	sch := crypto.NewPVSSBLS12381Simple()
	var pairs []*key.Pair
	var anns []dkg.ValidatorAnnouncement
	for i := 0; i < n; i++ {
		p, err := key.NewKeyPair(fmt.Sprintf("127.0.0.1:%d", 9000+i), sch)
		require.NoError(t, err)
		pairs = append(pairs, p)
		anns = append(anns, dkg.ValidatorAnnouncement{Validator: p.Public, Amount: 1})
	}
	s, err := dkg.NewSession(dkg.Config{
		Params:        dkg.Params{SecurityThreshold: 2, TotalWeight: uint32(n), MinDealers: uint32(n)},
		Scheme:        sch,
		Announcements: anns,
		Logger:        testlogger.New(t),
	})
	require.NoError(t, err)
	return s, pairs
}

func TestStoreSessionMaterial(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, testlogger.New(t), t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()

	s, pairs := newSession(t, 3)
	sch := s.Scheme()

	empty, err := store.Transcripts(ctx, s.ID(), sch)
	require.NoError(t, err)
	require.Empty(t, empty)
	_, err = store.Aggregate(ctx, s.ID(), sch)
	require.True(t, errors.Is(err, ErrNotFound))

	for _, p := range pairs {
		tr, err := s.DealAndRecord(p, random.New())
		require.NoError(t, err)
		i, err := s.ParticipantIndex(p.Public)
		require.NoError(t, err)
		require.NoError(t, store.PutTranscript(ctx, s.ID(), i, tr))
	}

	stored, err := store.Transcripts(ctx, s.ID(), sch)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for d, tr := range s.Transcripts() {
		require.True(t, tr.Equal(stored[d]))
	}

	agg, err := s.Aggregate()
	require.NoError(t, err)
	require.NoError(t, store.PutAggregate(ctx, s.ID(), agg))
	loaded, err := store.Aggregate(ctx, s.ID(), sch)
	require.NoError(t, err)
	require.True(t, agg.Equal(&loaded.Transcript))
	require.Equal(t, agg.Dealers, loaded.Dealers)

	// other sessions are isolated
	other, err := store.Transcripts(ctx, uuid.New(), sch)
	require.NoError(t, err)
	require.Empty(t, other)

	require.NoError(t, s.Finalize(loaded))
	pub, err := s.FinalKey()
	require.NoError(t, err)
	ct, err := tpke.Encrypt(sch, []byte("stored shares"), nil, pub, random.New())
	require.NoError(t, err)
	other1, err := tpke.Encrypt(sch, []byte("another"), nil, pub, random.New())
	require.NoError(t, err)

	for _, p := range pairs[:2] {
		ds, err := s.DecryptionShareSimple(loaded, p, ct)
		require.NoError(t, err)
		require.NoError(t, store.PutDecryptionShare(ctx, s.ID(), ct.ID(), ds))
	}
	ds, err := s.DecryptionShareSimple(loaded, pairs[2], other1)
	require.NoError(t, err)
	require.NoError(t, store.PutDecryptionShare(ctx, s.ID(), other1.ID(), ds))

	shares, err := store.DecryptionShares(ctx, s.ID(), sch, ct.ID())
	require.NoError(t, err)
	require.Len(t, shares, 2)
	require.Less(t, shares[0].ValidatorIndex, shares[1].ValidatorIndex)

	secret, err := s.CombineDecryptionShares(shares)
	require.NoError(t, err)
	plain, err := tpke.DecryptWithSharedSecret(sch, ct, secret)
	require.NoError(t, err)
	require.Equal(t, []byte("stored shares"), plain)
}

func TestStoreMisplacedDecryptionShare(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, testlogger.New(t), t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()

	s, pairs := newSession(t, 2)
	sch := s.Scheme()
	for _, p := range pairs {
		_, err := s.DealAndRecord(p, random.New())
		require.NoError(t, err)
	}
	agg, err := s.Aggregate()
	require.NoError(t, err)
	require.NoError(t, s.Finalize(agg))
	pub, err := s.FinalKey()
	require.NoError(t, err)
	ct, err := tpke.Encrypt(sch, []byte("misplaced"), nil, pub, random.New())
	require.NoError(t, err)

	ds, err := s.DecryptionShareSimple(agg, pairs[0], ct)
	require.NoError(t, err)
	buff, err := tpke.EncodeDecryptionShare(ds)
	require.NoError(t, err)
	require.NoError(t, store.put(ctx, s.ID(), shareBucket, shareKey(ct.ID(), ds.ValidatorIndex+1), buff))

	_, err = store.DecryptionShares(ctx, s.ID(), sch, ct.ID())
	require.Error(t, err)
}

func TestStoreContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store, err := NewStore(ctx, testlogger.New(t), t.TempDir(), nil)
	require.NoError(t, err)
	defer store.Close()
	cancel()

	_, err = store.Transcripts(ctx, uuid.New(), crypto.NewPVSSBLS12381Simple())
	require.True(t, errors.Is(err, context.Canceled))
	_, err = NewStore(ctx, testlogger.New(t), t.TempDir(), nil)
	require.True(t, errors.Is(err, context.Canceled))
}
