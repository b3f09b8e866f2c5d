package key

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/drand/kyber"
	"github.com/drand/kyber/util/random"

	"github.com/drand/stakedkg/crypto"
)

// Pair is a validator's long-term key pair. The public key lives in the
// scheme's ShareGroup: dealers encrypt shares to it, so it doubles as the
// validator's encryption key.
type Pair struct {
	Key    kyber.Scalar
	Public *Identity
}

// Identity is the public part of a validator's key pair together with its
// address. The signature is a self-signature binding the key to the scheme.
type Identity struct {
	Key       kyber.Point
	Addr      string
	Signature []byte
	Scheme    *crypto.Scheme
}

// Address returns the address the validator announced.
func (i *Identity) Address() string {
	return i.Addr
}

func (i *Identity) String() string {
	return fmt.Sprintf("{%s - %s}", i.Address(), i.Key.String())
}

// Hash returns the hash of the public key. It does _not_ hash the address
// field as the address may change while the validator keeps the same key.
func (i *Identity) Hash() []byte {
	h := i.Scheme.IdentityHash()
	_, _ = i.Key.MarshalTo(h)
	return h.Sum(nil)
}

func (i *Identity) signedMessage() []byte {
	// we prepend the scheme name to avoid scheme confusion between epochs
	msg := []byte(i.Scheme.Name)
	return append(msg, i.Hash()...)
}

// ValidSignature returns an error if the self-signature of this identity is
// missing or invalid.
func (i *Identity) ValidSignature() error {
	if len(i.Signature) == 0 {
		return errors.New("identity is not signed")
	}
	return i.Scheme.AuthScheme.Verify(i.Key, i.signedMessage(), i.Signature)
}

// Equal indicates if two identities are equal
func (i *Identity) Equal(i2 *Identity) bool {
	if i.Addr != i2.Addr {
		return false
	}
	return i.Key.Equal(i2.Key)
}

// SelfSign signs the public key with the key pair
func (p *Pair) SelfSign() error {
	signature, err := p.Public.Scheme.AuthScheme.Sign(p.Key, p.Public.signedMessage())
	if err != nil {
		return err
	}
	p.Public.Signature = signature
	return nil
}

// Scheme returns the key's crypto Scheme
func (p *Pair) Scheme() *crypto.Scheme {
	return p.Public.Scheme
}

// DecryptionKey returns the inverse of the private key. Multiplying a share
// encrypted to the public key by it recovers the share blinded by the
// ShareGroup generator.
func (p *Pair) DecryptionKey() kyber.Scalar {
	return p.Scheme().ShareGroup.Scalar().Inv(p.Key)
}

// NewKeyPair returns a freshly created and self-signed key pair. A nil scheme
// selects the scheme named by the environment.
func NewKeyPair(address string, targetScheme *crypto.Scheme) (*Pair, error) {
	if targetScheme == nil {
		var err error
		targetScheme, err = crypto.GetSchemeFromEnv()
		if err != nil {
			return nil, err
		}
	}
	key := targetScheme.ShareGroup.Scalar().Pick(random.New())
	pubKey := targetScheme.ShareGroup.Point().Mul(key, nil)

	p := &Pair{
		Key: key,
		Public: &Identity{
			Key:    pubKey,
			Addr:   address,
			Scheme: targetScheme,
		},
	}

	err := p.SelfSign()
	return p, err
}

// PairTOML is the TOML-able version of a private key
type PairTOML struct {
	Key        string
	SchemeName string
}

// PublicTOML is the TOML-able version of a public key
type PublicTOML struct {
	Address    string
	Key        string
	Signature  string
	SchemeName string
}

// TOML returns a struct that can be marshaled using a TOML-encoding library
func (p *Pair) TOML() interface{} {
	return &PairTOML{ScalarToString(p.Key), p.Public.Scheme.Name}
}

// FromTOML constructs the private key from an unmarshalled structure from
// TOML. The public part must be loaded separately.
func (p *Pair) FromTOML(i interface{}) error {
	ptoml, ok := i.(*PairTOML)
	if !ok {
		return errors.New("private can't decode toml from non PairTOML struct")
	}
	p.Public = new(Identity)
	sch, err := crypto.SchemeFromName(ptoml.SchemeName)
	if err != nil {
		return err
	}
	p.Public.Scheme = sch
	p.Key, err = StringToScalar(sch.ShareGroup, ptoml.Key)

	return err
}

// TOMLValue returns an empty TOML-compatible interface value
func (p *Pair) TOMLValue() interface{} {
	return &PairTOML{}
}

// FromTOML loads reads the TOML description of the public key
func (i *Identity) FromTOML(t interface{}) error {
	ptoml, ok := t.(*PublicTOML)
	if !ok {
		return errors.New("public can't decode from non PublicTOML struct")
	}
	sch, err := crypto.GetSchemeByIDWithDefault(ptoml.SchemeName)
	if err != nil {
		return err
	}
	i.Scheme = sch
	i.Key, err = StringToPoint(sch.ShareGroup, ptoml.Key)
	if err != nil {
		return fmt.Errorf("decoding public key: %w", err)
	}
	i.Addr = ptoml.Address
	i.Signature = nil
	if ptoml.Signature != "" {
		i.Signature, err = hex.DecodeString(ptoml.Signature)
	}
	return err
}

// TOML returns a TOML-compatible version of the public key
func (i *Identity) TOML() interface{} {
	schemeName := ""
	if i.Scheme != nil {
		schemeName = i.Scheme.Name
	}
	return &PublicTOML{
		Address:    i.Addr,
		Key:        PointToString(i.Key),
		Signature:  hex.EncodeToString(i.Signature),
		SchemeName: schemeName,
	}
}

// TOMLValue returns a TOML-compatible interface value
func (i *Identity) TOMLValue() interface{} {
	return &PublicTOML{}
}

// ByKey sorts identities by the lexicographic order of their marshaled keys.
type ByKey []*Identity

func (b ByKey) Len() int {
	return len(b)
}

func (b ByKey) Swap(i, j int) {
	(b)[i], (b)[j] = (b)[j], (b)[i]
}

func (b ByKey) Less(i, j int) bool {
	is, _ := (b)[i].Key.MarshalBinary()
	js, _ := (b)[j].Key.MarshalBinary()
	return bytes.Compare(is, js) < 0
}
