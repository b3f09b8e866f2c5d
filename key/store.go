package key

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/drand/stakedkg/internal/fs"
)

// Store abstracts the loading and saving of a validator's long-term key
// material.
type Store interface {
	SaveKeyPair(p *Pair) error
	LoadKeyPair() (*Pair, error)
}

// ErrAbsent is returned when the requested key material is not in the store.
var ErrAbsent = errors.New("store can't find requested object")

const (
	// KeyFolderName is the folder, relative to the base folder, holding the key files.
	KeyFolderName    = "key"
	keyFileName      = "validator_id"
	privateExtension = ".private"
	publicExtension  = ".public"
)

// Tomler represents any struct that can be (un)marshaled into/from toml format
type Tomler interface {
	TOML() interface{}
	FromTOML(i interface{}) error
	TOMLValue() interface{}
}

// FileStore keeps the private key and the public identity of a validator in
// two TOML files. The private file is only readable by its owner.
type FileStore struct {
	baseFolder  string
	privateFile string
	publicFile  string
}

// NewFileStore returns a store rooted at baseFolder. The key folder is
// created with restricted permissions if it does not exist yet.
func NewFileStore(baseFolder string) (*FileStore, error) {
	keyFolder, err := fs.CreateSecureFolder(filepath.Join(baseFolder, KeyFolderName))
	if err != nil {
		return nil, fmt.Errorf("creating key folder: %w", err)
	}
	return &FileStore{
		baseFolder:  baseFolder,
		privateFile: filepath.Join(keyFolder, keyFileName+privateExtension),
		publicFile:  filepath.Join(keyFolder, keyFileName+publicExtension),
	}, nil
}

// SaveKeyPair first saves the private key in a file with tight permissions
// and then saves the public part in another file.
func (f *FileStore) SaveKeyPair(p *Pair) error {
	if err := Save(f.privateFile, p, true); err != nil {
		return err
	}
	return Save(f.publicFile, p.Public, false)
}

// LoadKeyPair decodes the private key first then the public identity, and
// checks that both halves belong together.
func (f *FileStore) LoadKeyPair() (*Pair, error) {
	p := new(Pair)
	if err := Load(f.privateFile, p); err != nil {
		return nil, err
	}
	scheme := p.Public.Scheme
	if err := Load(f.publicFile, p.Public); err != nil {
		return nil, err
	}
	if p.Public.Scheme.Name != scheme.Name {
		return nil, fmt.Errorf("private key scheme %s does not match public key scheme %s", scheme, p.Public.Scheme)
	}
	if !scheme.ShareGroup.Point().Mul(p.Key, nil).Equal(p.Public.Key) {
		return nil, errors.New("public key does not match private key")
	}
	return p, nil
}

// Save encodes t as TOML into path. A secure file is created with owner-only
// permissions.
func Save(path string, t Tomler, secure bool) error {
	var fd *os.File
	var err error
	if secure {
		fd, err = fs.CreateSecureFile(path)
	} else {
		fd, err = os.Create(path)
	}
	if err != nil {
		return fmt.Errorf("config: can't save %T to %s: %w", t, path, err)
	}
	defer fd.Close()
	return toml.NewEncoder(fd).Encode(t.TOML())
}

// Load decodes the TOML file at path into t.
func Load(path string, t Tomler) error {
	if exists, err := fs.Exists(path); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%w: %s", ErrAbsent, path)
	}
	tomlValue := t.TOMLValue()
	if _, err := toml.DecodeFile(path, tomlValue); err != nil {
		return err
	}
	return t.FromTOML(tomlValue)
}
