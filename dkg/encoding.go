package dkg

import (
	"fmt"

	json "github.com/nikkolasg/hexjson"

	"github.com/drand/kyber"

	"github.com/drand/stakedkg/crypto"
)

// TranscriptJSON is the JSON form of a transcript. Group elements are
// encoded as hex strings.
type TranscriptJSON struct {
	Coeffs [][]byte   `json:"coeffs"`
	Shares [][][]byte `json:"shares"`
	Sigma  []byte     `json:"sigma"`
}

// AggregateJSON is the JSON form of an aggregate.
type AggregateJSON struct {
	TranscriptJSON
	Dealers []uint32 `json:"dealers"`
}

func marshalPoints(ps []kyber.Point) ([][]byte, error) {
	out := make([][]byte, len(ps))
	for i, p := range ps {
		buff, err := p.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out[i] = buff
	}
	return out, nil
}

func unmarshalPoints(g kyber.Group, bs [][]byte) ([]kyber.Point, error) {
	out := make([]kyber.Point, len(bs))
	for i, b := range bs {
		p := g.Point()
		if err := p.UnmarshalBinary(b); err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func (t *Transcript) toJSON() (*TranscriptJSON, error) {
	coeffs, err := marshalPoints(t.Coeffs)
	if err != nil {
		return nil, err
	}
	shares := make([][][]byte, len(t.Shares))
	for i := range t.Shares {
		if shares[i], err = marshalPoints(t.Shares[i]); err != nil {
			return nil, err
		}
	}
	sigma, err := t.Sigma.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &TranscriptJSON{Coeffs: coeffs, Shares: shares, Sigma: sigma}, nil
}

func (j *TranscriptJSON) toTranscript(sch *crypto.Scheme) (*Transcript, error) {
	coeffs, err := unmarshalPoints(sch.CommitGroup, j.Coeffs)
	if err != nil {
		return nil, fmt.Errorf("decoding commitments: %w", err)
	}
	shares := make([][]kyber.Point, len(j.Shares))
	for i := range j.Shares {
		if shares[i], err = unmarshalPoints(sch.ShareGroup, j.Shares[i]); err != nil {
			return nil, fmt.Errorf("decoding shares of participant %d: %w", i, err)
		}
	}
	sigma := sch.ShareGroup.Point()
	if err := sigma.UnmarshalBinary(j.Sigma); err != nil {
		return nil, fmt.Errorf("decoding sigma: %w", err)
	}
	return &Transcript{Coeffs: coeffs, Shares: shares, Sigma: sigma}, nil
}

// EncodeTranscript returns the JSON encoding of t.
func EncodeTranscript(t *Transcript) ([]byte, error) {
	j, err := t.toJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

// DecodeTranscript decodes a transcript encoded with EncodeTranscript.
func DecodeTranscript(sch *crypto.Scheme, data []byte) (*Transcript, error) {
	j := new(TranscriptJSON)
	if err := json.Unmarshal(data, j); err != nil {
		return nil, err
	}
	return j.toTranscript(sch)
}

// EncodeAggregate returns the JSON encoding of a.
func EncodeAggregate(a *Aggregate) ([]byte, error) {
	j, err := a.Transcript.toJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(&AggregateJSON{TranscriptJSON: *j, Dealers: a.Dealers})
}

// DecodeAggregate decodes an aggregate encoded with EncodeAggregate.
func DecodeAggregate(sch *crypto.Scheme, data []byte) (*Aggregate, error) {
	j := new(AggregateJSON)
	if err := json.Unmarshal(data, j); err != nil {
		return nil, err
	}
	t, err := j.TranscriptJSON.toTranscript(sch)
	if err != nil {
		return nil, err
	}
	return &Aggregate{Transcript: *t, Dealers: j.Dealers}, nil
}
