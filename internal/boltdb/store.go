// Package boltdb persists the material exchanged during a session (dealer
// transcripts, the finalized aggregate and decryption shares) in a bolt
// database. It stands in for the message transport when validators run on
// the same machine.
package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/drand/stakedkg/common/log"
	"github.com/drand/stakedkg/crypto"
	"github.com/drand/stakedkg/dkg"
	"github.com/drand/stakedkg/tpke"
)

// Store keeps one bucket per session. Values are JSON-encoded with hex bytes.
//
//nolint:gocritic// We do want to have a mutex here
type Store struct {
	sync.Mutex
	db *bolt.DB

	log log.Logger
}

// ErrNotFound is returned when nothing is stored under the requested key.
var ErrNotFound = errors.New("not found in store")

var (
	transcriptBucket = []byte("transcripts")
	aggregateBucket  = []byte("aggregate")
	shareBucket      = []byte("shares")
	aggregateKey     = []byte("final")
)

// BoltFileName is the name of the file boltdb writes to
const BoltFileName = "stakedkg.db"

// BoltStoreOpenPerm is the permission we will use to read bolt store file from disk
const BoltStoreOpenPerm = 0660

// NewStore opens, or creates, the database in folder.
func NewStore(ctx context.Context, l log.Logger, folder string, opts *bolt.Options) (*Store, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	dbPath := path.Join(folder, BoltFileName)
	db, err := bolt.Open(dbPath, BoltStoreOpenPerm, opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		log: l.Named("boltdb"),
		db:  db,
	}, nil
}

func (s *Store) Close() error {
	err := s.db.Close()
	if err != nil {
		s.log.Errorw("", "boltdb", "close", "err", err)
	}
	return err
}

func dealerKey(dealer uint32) []byte {
	var buff [4]byte
	binary.BigEndian.PutUint32(buff[:], dealer)
	return buff[:]
}

// sessionBucket returns the nested bucket name of the session, creating it
// when tx is writable.
func sessionBucket(tx *bolt.Tx, session uuid.UUID, name []byte) (*bolt.Bucket, error) {
	id := []byte(session.String())
	if tx.Writable() {
		root, err := tx.CreateBucketIfNotExists(id)
		if err != nil {
			return nil, err
		}
		return root.CreateBucketIfNotExists(name)
	}
	root := tx.Bucket(id)
	if root == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, session)
	}
	bucket := root.Bucket(name)
	if bucket == nil {
		return nil, fmt.Errorf("%w: %s of session %s", ErrNotFound, name, session)
	}
	return bucket, nil
}

func (s *Store) put(ctx context.Context, session uuid.UUID, bucketName, key, value []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.Lock()
	defer s.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket, err := sessionBucket(tx, session, bucketName)
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
}

// PutTranscript stores the transcript of a dealer, replacing any previous one.
func (s *Store) PutTranscript(ctx context.Context, session uuid.UUID, dealer uint32, t *dkg.Transcript) error {
	buff, err := dkg.EncodeTranscript(t)
	if err != nil {
		return err
	}
	if err := s.put(ctx, session, transcriptBucket, dealerKey(dealer), buff); err != nil {
		return err
	}
	s.log.Debugw("stored transcript", "session", session, "dealer", dealer)
	return nil
}

// Transcripts returns all the transcripts stored for the session by dealer.
func (s *Store) Transcripts(ctx context.Context, session uuid.UUID, sch *crypto.Scheme) (map[uint32]*dkg.Transcript, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	out := make(map[uint32]*dkg.Transcript)
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := sessionBucket(tx, session, transcriptBucket)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			if len(k) != 4 {
				return fmt.Errorf("invalid dealer key %x", k)
			}
			t, err := dkg.DecodeTranscript(sch, v)
			if err != nil {
				return fmt.Errorf("dealer %d: %w", binary.BigEndian.Uint32(k), err)
			}
			out[binary.BigEndian.Uint32(k)] = t
			return nil
		})
	})
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	return out, err
}

// PutAggregate stores the finalized aggregate of the session.
func (s *Store) PutAggregate(ctx context.Context, session uuid.UUID, agg *dkg.Aggregate) error {
	buff, err := dkg.EncodeAggregate(agg)
	if err != nil {
		return err
	}
	return s.put(ctx, session, aggregateBucket, aggregateKey, buff)
}

// Aggregate returns the finalized aggregate of the session.
func (s *Store) Aggregate(ctx context.Context, session uuid.UUID, sch *crypto.Scheme) (*dkg.Aggregate, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var agg *dkg.Aggregate
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := sessionBucket(tx, session, aggregateBucket)
		if err != nil {
			return err
		}
		v := bucket.Get(aggregateKey)
		if v == nil {
			return fmt.Errorf("%w: aggregate of session %s", ErrNotFound, session)
		}
		agg, err = dkg.DecodeAggregate(sch, v)
		return err
	})
	return agg, err
}

// shareKey identifies the share of a validator for a given ciphertext.
func shareKey(ciphertextID []byte, validator uint32) []byte {
	return append(append([]byte{}, ciphertextID...), dealerKey(validator)...)
}

// PutDecryptionShare stores the decryption share of a validator for the
// ciphertext with the given identifier.
func (s *Store) PutDecryptionShare(ctx context.Context, session uuid.UUID, ciphertextID []byte, ds *tpke.DecryptionShareSimple) error {
	buff, err := tpke.EncodeDecryptionShare(ds)
	if err != nil {
		return err
	}
	return s.put(ctx, session, shareBucket, shareKey(ciphertextID, ds.ValidatorIndex), buff)
}

// DecryptionShares returns the shares stored for the ciphertext, in
// increasing validator order.
func (s *Store) DecryptionShares(ctx context.Context, session uuid.UUID, sch *crypto.Scheme, ciphertextID []byte) ([]*tpke.DecryptionShareSimple, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var out []*tpke.DecryptionShareSimple
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket, err := sessionBucket(tx, session, shareBucket)
		if err != nil {
			return err
		}
		c := bucket.Cursor()
		for k, v := c.Seek(ciphertextID); k != nil && bytes.HasPrefix(k, ciphertextID); k, v = c.Next() {
			if len(k) != len(ciphertextID)+4 {
				continue
			}
			ds, err := tpke.DecodeDecryptionShare(sch, v)
			if err != nil {
				return err
			}
			if i := binary.BigEndian.Uint32(k[len(ciphertextID):]); i != ds.ValidatorIndex {
				return fmt.Errorf("share of validator %d stored under validator %d", ds.ValidatorIndex, i)
			}
			out = append(out, ds)
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return out, err
}
