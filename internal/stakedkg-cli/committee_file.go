package stakedkg

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/drand/stakedkg/common/log"
	"github.com/drand/stakedkg/crypto"
	"github.com/drand/stakedkg/dkg"
	"github.com/drand/stakedkg/key"
)

// CommitteeFileFormat is the TOML layout of a committee file: the session
// parameters followed by one entry per validator.
type CommitteeFileFormat struct {
	SessionID         string
	SchemeName        string
	Tau               uint64
	SecurityThreshold uint32
	TotalWeight       uint32
	MinDealers        uint32
	Validators        []*TomlValidator
}

// TomlValidator is the public identity of a validator along with its stake.
type TomlValidator struct {
	Address    string
	Key        string
	Signature  string
	SchemeName string
	Stake      uint64
}

// Committee is a decoded committee file.
type Committee struct {
	ID            uuid.UUID
	Scheme        *crypto.Scheme
	Params        dkg.Params
	Announcements []dkg.ValidatorAnnouncement
}

func (t *TomlValidator) Into() (dkg.ValidatorAnnouncement, error) {
	id := new(key.Identity)
	err := id.FromTOML(&key.PublicTOML{
		Address:    t.Address,
		Key:        t.Key,
		Signature:  t.Signature,
		SchemeName: t.SchemeName,
	})
	if err != nil {
		return dkg.ValidatorAnnouncement{}, fmt.Errorf("validator %s: %w", t.Address, err)
	}
	return dkg.ValidatorAnnouncement{Validator: id, Amount: t.Stake}, nil
}

func tomlValidator(a dkg.ValidatorAnnouncement) *TomlValidator {
	pub := a.Validator.TOML().(*key.PublicTOML)
	return &TomlValidator{
		Address:    pub.Address,
		Key:        pub.Key,
		Signature:  pub.Signature,
		SchemeName: pub.SchemeName,
		Stake:      a.Amount,
	}
}

// ParseCommitteeFile reads and decodes the committee file at filepath.
func ParseCommitteeFile(filepath string) (*Committee, error) {
	f := CommitteeFileFormat{}
	if _, err := toml.DecodeFile(filepath, &f); err != nil {
		return nil, err
	}
	if len(f.Validators) == 0 {
		return nil, errors.New("committee file lists no validators")
	}

	id, err := uuid.Parse(f.SessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	sch, err := crypto.GetSchemeByIDWithDefault(f.SchemeName)
	if err != nil {
		return nil, err
	}

	c := &Committee{
		ID:     id,
		Scheme: sch,
		Params: dkg.Params{
			Tau:               f.Tau,
			SecurityThreshold: f.SecurityThreshold,
			TotalWeight:       f.TotalWeight,
			MinDealers:        f.MinDealers,
		},
	}
	for _, v := range f.Validators {
		a, err := v.Into()
		if err != nil {
			return nil, err
		}
		c.Announcements = append(c.Announcements, a)
	}
	return c, nil
}

// Save writes the committee as TOML to filepath.
func (c *Committee) Save(filepath string) error {
	f := CommitteeFileFormat{
		SessionID:         c.ID.String(),
		SchemeName:        c.Scheme.Name,
		Tau:               c.Params.Tau,
		SecurityThreshold: c.Params.SecurityThreshold,
		TotalWeight:       c.Params.TotalWeight,
		MinDealers:        c.Params.MinDealers,
	}
	for _, a := range c.Announcements {
		f.Validators = append(f.Validators, tomlValidator(a))
	}

	fd, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("can't save committee to %s: %w", filepath, err)
	}
	defer fd.Close()
	return toml.NewEncoder(fd).Encode(&f)
}

// Session builds the DKG session the committee describes.
func (c *Committee) Session(l log.Logger) (*dkg.Session, error) {
	return dkg.NewSession(dkg.Config{
		ID:            c.ID,
		Params:        c.Params,
		Scheme:        c.Scheme,
		Announcements: c.Announcements,
		Logger:        l,
	})
}
