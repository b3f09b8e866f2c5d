package crypto

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/pairing"
	"github.com/drand/kyber/sign"

	// Identities are only self-signed, signatures are never aggregated, so the
	// rogue key attack against aggregated BLS signatures does not apply here.
	//nolint:staticcheck
	signBls "github.com/drand/kyber/sign/bls"
)

// Scheme holds the groups and hash functions used by the DKG and the threshold
// decryption. All groups come from the same pairing suite and share the same
// scalar field, so a scalar obtained from any of them can be used with the
// others.
//
// Note: Scheme is not meant to be marshaled directly. Instead use the SchemeFromName
type Scheme struct {
	// The name of the scheme
	Name string
	// Pairing is the bilinear map between CommitGroup and ShareGroup.
	Pairing pairing.Suite
	// CommitGroup holds the polynomial commitments, the DKG public key and
	// the ciphertext commitments.
	CommitGroup kyber.Group
	// ShareGroup holds the validators' public keys, the encrypted shares
	// and the ciphertext authentication tags.
	ShareGroup kyber.Group
	// TargetGroup holds the decryption shares and the shared secret.
	TargetGroup kyber.Group
	// AuthScheme signs identities with a key living in ShareGroup.
	AuthScheme sign.Scheme
	// IdentityHash is used to hash identities before they are self-signed.
	IdentityHash func() hash.Hash `toml:"-"`
	// KDFHash is used to derive symmetric keys from shared secrets.
	KDFHash func() hash.Hash `toml:"-"`
}

func (s *Scheme) String() string {
	if s != nil {
		return s.Name
	}
	return ""
}

// Pair computes e(p1, p2) with p1 in CommitGroup and p2 in ShareGroup.
func (s *Scheme) Pair(p1, p2 kyber.Point) kyber.Point {
	return s.Pairing.Pair(p1, p2)
}

// DefaultSchemeID is the default scheme ID.
const DefaultSchemeID = "pvss-bls12381-simple"

// NewPVSSBLS12381Simple instantiates the scheme used since the first release:
// commitments and the DKG public key on G1 (48 bytes), validator keys and
// encrypted shares on G2 (96 bytes), decryption shares in GT.
func NewPVSSBLS12381Simple() *Scheme {
	var Pairing = bls.NewBLS12381Suite()
	var IdentityHashFunc = func() hash.Hash { h, _ := blake2b.New256(nil); return h }

	return &Scheme{
		Name:         DefaultSchemeID,
		Pairing:      Pairing,
		CommitGroup:  Pairing.G1(),
		ShareGroup:   Pairing.G2(),
		TargetGroup:  Pairing.GT(),
		AuthScheme:   signBls.NewSchemeOnG1(Pairing),
		IdentityHash: IdentityHashFunc,
		KDFHash:      sha256.New,
	}
}

func SchemeFromName(schemeName string) (*Scheme, error) {
	switch schemeName {
	case DefaultSchemeID:
		return NewPVSSBLS12381Simple(), nil
	default:
		return nil, fmt.Errorf("invalid scheme name '%s'", schemeName)
	}
}

var schemeIDs = []string{DefaultSchemeID}

// ListSchemes will return a slice of valid scheme ids
func ListSchemes() []string {
	return schemeIDs
}

// GetSchemeByIDWithDefault returns the scheme with the given ID, or the
// default scheme if id is empty.
func GetSchemeByIDWithDefault(id string) (*Scheme, error) {
	if id == "" {
		id = DefaultSchemeID
	}

	return SchemeFromName(id)
}

// GetSchemeFromEnv returns the scheme named by the SCHEME_ID environment
// variable, or the default one when it is unset.
func GetSchemeFromEnv() (*Scheme, error) {
	id := os.Getenv("SCHEME_ID")

	return GetSchemeByIDWithDefault(id)
}
