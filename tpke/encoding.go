package tpke

import (
	"fmt"

	json "github.com/nikkolasg/hexjson"

	"github.com/drand/kyber"

	"github.com/drand/stakedkg/crypto"
)

// CiphertextJSON is the JSON form of a ciphertext, byte fields in hex.
type CiphertextJSON struct {
	Commitment []byte `json:"commitment"`
	AuthTag    []byte `json:"auth_tag"`
	AAD        []byte `json:"aad"`
	Payload    []byte `json:"payload"`
}

// DecryptionShareJSON is the JSON form of a decryption share.
type DecryptionShareJSON struct {
	ValidatorIndex uint32   `json:"validator_index"`
	Shares         [][]byte `json:"shares"`
}

// EncodeCiphertext returns the JSON encoding of c.
func EncodeCiphertext(c *Ciphertext) ([]byte, error) {
	commitment, err := c.Commitment.MarshalBinary()
	if err != nil {
		return nil, err
	}
	tag, err := c.AuthTag.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(&CiphertextJSON{
		Commitment: commitment,
		AuthTag:    tag,
		AAD:        c.AAD,
		Payload:    c.Payload,
	})
}

// DecodeCiphertext decodes a ciphertext encoded with EncodeCiphertext.
func DecodeCiphertext(sch *crypto.Scheme, data []byte) (*Ciphertext, error) {
	j := new(CiphertextJSON)
	if err := json.Unmarshal(data, j); err != nil {
		return nil, err
	}
	commitment := sch.CommitGroup.Point()
	if err := commitment.UnmarshalBinary(j.Commitment); err != nil {
		return nil, fmt.Errorf("decoding commitment: %w", err)
	}
	tag := sch.ShareGroup.Point()
	if err := tag.UnmarshalBinary(j.AuthTag); err != nil {
		return nil, fmt.Errorf("decoding auth tag: %w", err)
	}
	return &Ciphertext{
		Commitment: commitment,
		AuthTag:    tag,
		AAD:        j.AAD,
		Payload:    j.Payload,
	}, nil
}

// EncodeDecryptionShare returns the JSON encoding of a simple decryption share.
func EncodeDecryptionShare(ds *DecryptionShareSimple) ([]byte, error) {
	shares := make([][]byte, len(ds.Shares))
	for i, s := range ds.Shares {
		buff, err := s.MarshalBinary()
		if err != nil {
			return nil, err
		}
		shares[i] = buff
	}
	return json.Marshal(&DecryptionShareJSON{ValidatorIndex: ds.ValidatorIndex, Shares: shares})
}

// DecodeDecryptionShare decodes a share encoded with EncodeDecryptionShare.
func DecodeDecryptionShare(sch *crypto.Scheme, data []byte) (*DecryptionShareSimple, error) {
	j := new(DecryptionShareJSON)
	if err := json.Unmarshal(data, j); err != nil {
		return nil, err
	}
	shares := make([]kyber.Point, len(j.Shares))
	for i, b := range j.Shares {
		p := sch.TargetGroup.Point()
		if err := p.UnmarshalBinary(b); err != nil {
			return nil, fmt.Errorf("decoding share %d: %w", i, err)
		}
		shares[i] = p
	}
	return &DecryptionShareSimple{ValidatorIndex: j.ValidatorIndex, Shares: shares}, nil
}
