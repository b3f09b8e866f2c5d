package stakedkg

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/drand/kyber/util/random"

	"github.com/drand/stakedkg/common/log"
	"github.com/drand/stakedkg/crypto"
	"github.com/drand/stakedkg/crypto/vault"
	"github.com/drand/stakedkg/dkg"
	"github.com/drand/stakedkg/internal/boltdb"
	"github.com/drand/stakedkg/internal/fs"
	"github.com/drand/stakedkg/internal/util"
	"github.com/drand/stakedkg/key"
	"github.com/drand/stakedkg/tpke"
)

const boltTimeout = 5 * time.Second

func keygenCmd(c *cli.Context, l log.Logger) error {
	args := c.Args()
	if !args.Present() {
		return errors.New("missing validator address in argument. Abort")
	}
	if args.Len() > 1 {
		return fmt.Errorf("expecting only one argument, the address, but got:"+
			"\n\t%v\nAborting. Note that the flags need to go before the argument", args.Slice())
	}
	addr := args.First()
	var validID = regexp.MustCompile(`:\d+$`)
	if !validID.MatchString(addr) {
		return fmt.Errorf("address %q has no port", addr)
	}

	sch, err := crypto.SchemeFromName(c.String(schemeFlag.Name))
	if err != nil {
		return err
	}

	fileStore, err := key.NewFileStore(c.String(folderFlag.Name))
	if err != nil {
		return err
	}
	keyDirectory := filepath.Join(c.String(folderFlag.Name), key.KeyFolderName)
	if _, err := fileStore.LoadKeyPair(); err == nil {
		fmt.Fprintf(c.App.Writer, "Keypair already present in `%s`.\nRemove them before generating new one\n", keyDirectory)
		return nil
	}

	priv, err := key.NewKeyPair(addr, sch)
	if err != nil {
		return err
	}
	if err := fileStore.SaveKeyPair(priv); err != nil {
		return fmt.Errorf("could not save key: %w", err)
	}
	absPath, err := filepath.Abs(keyDirectory)
	if err != nil {
		return fmt.Errorf("err getting full path: %w", err)
	}
	l.Infow("generated key pair", "address", addr, "scheme", sch.Name)

	banner(c.App.Writer)
	fmt.Fprintln(c.App.Writer, "Generated keys at", absPath)
	var buff bytes.Buffer
	if err := toml.NewEncoder(&buff).Encode(priv.Public.TOML()); err != nil {
		return err
	}
	buff.WriteString("\n")
	fmt.Fprint(c.App.Writer, buff.String())
	return nil
}

// parseStakedKey splits an argument of the form <path>:<stake>.
func parseStakedKey(arg string) (string, uint64, error) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 {
		return "", 0, fmt.Errorf("expected <public key file>:<stake>, got %q", arg)
	}
	stake, err := strconv.ParseUint(arg[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid stake in %q: %w", arg, err)
	}
	return arg[:i], stake, nil
}

func newCommitteeCmd(c *cli.Context, l log.Logger) error {
	if !c.Args().Present() {
		return errors.New("no validator given")
	}

	committee := &Committee{ID: uuid.New()}
	if c.IsSet(sessionIDFlag.Name) {
		id, err := uuid.Parse(c.String(sessionIDFlag.Name))
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}
		committee.ID = id
	}
	for _, arg := range c.Args().Slice() {
		keyPath, stake, err := parseStakedKey(arg)
		if err != nil {
			return err
		}
		id := new(key.Identity)
		if err := key.Load(keyPath, id); err != nil {
			return fmt.Errorf("can't load key %s: %w", keyPath, err)
		}
		if committee.Scheme == nil {
			committee.Scheme = id.Scheme
		} else if committee.Scheme.Name != id.Scheme.Name {
			return fmt.Errorf("key %s uses scheme %s instead of %s", keyPath, id.Scheme.Name, committee.Scheme.Name)
		}
		committee.Announcements = append(committee.Announcements, dkg.ValidatorAnnouncement{Validator: id, Amount: stake})
	}

	threshold, err := uint32Flag(c, thresholdFlag.Name)
	if err != nil {
		return err
	}
	minDealers := uint32(len(committee.Announcements))
	if c.IsSet(minDealersFlag.Name) {
		if minDealers, err = uint32Flag(c, minDealersFlag.Name); err != nil {
			return err
		}
	}
	totalWeight, err := uint32Flag(c, totalWeightFlag.Name)
	if err != nil {
		return err
	}
	committee.Params = dkg.Params{
		Tau:               c.Uint64(tauFlag.Name),
		SecurityThreshold: threshold,
		TotalWeight:       totalWeight,
		MinDealers:        minDealers,
	}

	// opening the session checks the parameters and the signatures
	s, err := committee.Session(l)
	if err != nil {
		return err
	}
	if err := committee.Save(c.String(requiredOutFlag.Name)); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Committee of session %s written to %s\n", s.ID(), c.String(requiredOutFlag.Name))
	printParticipants(c, s)
	return nil
}

func uint32Flag(c *cli.Context, name string) (uint32, error) {
	v := c.Uint(name)
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("--%s %d is above %d", name, v, uint32(math.MaxUint32))
	}
	return uint32(v), nil
}

func printParticipants(c *cli.Context, s *dkg.Session) {
	for i, p := range s.Participants() {
		fmt.Fprintf(c.App.Writer, "%d\t%s\tstake %d\tweight %d\tshares %s\n",
			i, p.Validator.Address(), p.Stake, p.Weight, p.Shares)
	}
}

func openStore(ctx context.Context, c *cli.Context, l log.Logger) (*boltdb.Store, error) {
	folder := c.String(dbFlag.Name)
	if _, err := fs.CreateSecureFolder(folder); err != nil {
		l.Warnw("", "db", "folder", "err", err)
		if ok, _ := fs.Exists(folder); !ok {
			return nil, err
		}
	}
	return boltdb.NewStore(ctx, l, folder, &bolt.Options{Timeout: boltTimeout})
}

// loadSession rebuilds the session of the committee out of the transcripts
// and the aggregate recorded in the database.
func loadSession(c *cli.Context, l log.Logger) (*dkg.Session, *boltdb.Store, error) {
	committee, err := ParseCommitteeFile(c.String(committeeFlag.Name))
	if err != nil {
		return nil, nil, err
	}
	s, err := committee.Session(l)
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(c.Context, c, l)
	if err != nil {
		return nil, nil, err
	}

	transcripts, err := store.Transcripts(c.Context, s.ID(), s.Scheme())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	for _, dealer := range util.SortedKeys(transcripts) {
		if err := s.RecordTranscript(dealer, transcripts[dealer]); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("replaying transcript of dealer %d: %w", dealer, err)
		}
	}

	agg, err := store.Aggregate(c.Context, s.ID(), s.Scheme())
	switch {
	case errors.Is(err, boltdb.ErrNotFound):
	case err != nil:
		store.Close()
		return nil, nil, err
	default:
		if err := s.Finalize(agg); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("stored aggregate: %w", err)
		}
	}
	return s, store, nil
}

func statusCmd(c *cli.Context, l log.Logger) error {
	s, store, err := loadSession(c, l)
	if err != nil {
		return err
	}
	defer store.Close()

	p := s.Params()
	fmt.Fprintf(c.App.Writer, "session %s, epoch %d: %s\n", s.ID(), p.Tau, s.State())
	fmt.Fprintf(c.App.Writer, "threshold %d of %d share indices, %d transcripts of %d needed\n",
		p.SecurityThreshold, p.TotalWeight, len(s.Transcripts()), p.MinDealers)
	printParticipants(c, s)
	if pub, err := s.FinalKey(); err == nil {
		fmt.Fprintf(c.App.Writer, "public key: %s\n", key.PointToString(pub))
	}
	return nil
}

func dealCmd(c *cli.Context, l log.Logger) error {
	fileStore, err := key.NewFileStore(c.String(folderFlag.Name))
	if err != nil {
		return err
	}
	pair, err := fileStore.LoadKeyPair()
	if err != nil {
		return err
	}
	s, store, err := loadSession(c, l)
	if err != nil {
		return err
	}
	defer store.Close()

	dealer, err := s.ParticipantIndex(pair.Public)
	if err != nil {
		return err
	}
	t, err := s.DealAndRecord(pair, random.New())
	if err != nil {
		return err
	}
	if err := store.PutTranscript(c.Context, s.ID(), dealer, t); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "dealer %d recorded its transcript (%d/%d): %s\n",
		dealer, len(s.Transcripts()), s.Params().MinDealers, s.State())
	return nil
}

func aggregateCmd(c *cli.Context, l log.Logger) error {
	s, store, err := loadSession(c, l)
	if err != nil {
		return err
	}
	defer store.Close()

	if s.State() != dkg.Success {
		agg, err := s.Aggregate()
		if err != nil {
			return err
		}
		if err := s.Finalize(agg); err != nil {
			return err
		}
		if err := store.PutAggregate(c.Context, s.ID(), agg); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "aggregated %d transcripts\n", len(agg.Dealers))
	}
	pub, err := s.FinalKey()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "public key: %s\n", key.PointToString(pub))
	return nil
}

func writeOutput(c *cli.Context, data []byte) error {
	if c.IsSet(outFlag.Name) {
		return os.WriteFile(c.String(outFlag.Name), data, 0o600)
	}
	_, err := c.App.Writer.Write(append(data, '\n'))
	return err
}

func encryptCmd(c *cli.Context, l log.Logger) error {
	var msg []byte
	switch {
	case c.IsSet(inFlag.Name):
		var err error
		if msg, err = os.ReadFile(c.String(inFlag.Name)); err != nil {
			return err
		}
	case c.Args().Present():
		msg = []byte(c.Args().First())
	default:
		return errors.New("nothing to encrypt")
	}

	s, store, err := loadSession(c, l)
	if err != nil {
		return err
	}
	defer store.Close()
	pub, err := s.FinalKey()
	if err != nil {
		return err
	}

	var aad []byte
	if c.IsSet(aadFlag.Name) {
		aad = []byte(c.String(aadFlag.Name))
	}
	ct, err := tpke.Encrypt(s.Scheme(), msg, aad, pub, random.New())
	if err != nil {
		return err
	}
	buff, err := tpke.EncodeCiphertext(ct)
	if err != nil {
		return err
	}
	l.Infow("encrypted message", "ciphertext", hex.EncodeToString(ct.ID()), "size", len(msg))
	return writeOutput(c, buff)
}

func readCiphertext(c *cli.Context, sch *crypto.Scheme) (*tpke.Ciphertext, error) {
	buff, err := os.ReadFile(c.String(ciphertextFlag.Name))
	if err != nil {
		return nil, err
	}
	return tpke.DecodeCiphertext(sch, buff)
}

func shareCmd(c *cli.Context, l log.Logger) error {
	fileStore, err := key.NewFileStore(c.String(folderFlag.Name))
	if err != nil {
		return err
	}
	pair, err := fileStore.LoadKeyPair()
	if err != nil {
		return err
	}
	s, store, err := loadSession(c, l)
	if err != nil {
		return err
	}
	defer store.Close()

	agg, err := s.FinalAggregate()
	if err != nil {
		return err
	}
	v, err := vault.NewVault(s, pair)
	if err != nil {
		return err
	}
	if err := v.SetAggregate(agg); err != nil {
		return err
	}
	ct, err := readCiphertext(c, s.Scheme())
	if err != nil {
		return err
	}
	ds, err := v.DecryptionShare(ct)
	if err != nil {
		return err
	}
	if err := store.PutDecryptionShare(c.Context, s.ID(), ct.ID(), ds); err != nil {
		return err
	}
	buff, err := tpke.EncodeDecryptionShare(ds)
	if err != nil {
		return err
	}
	l.Infow("created decryption share", "validator", v.Index(), "weight", v.Weight())
	return writeOutput(c, buff)
}

func combineCmd(c *cli.Context, l log.Logger) error {
	s, store, err := loadSession(c, l)
	if err != nil {
		return err
	}
	defer store.Close()

	ct, err := readCiphertext(c, s.Scheme())
	if err != nil {
		return err
	}
	shares, err := store.DecryptionShares(c.Context, s.ID(), s.Scheme(), ct.ID())
	if err != nil {
		return err
	}
	if len(shares) == 0 {
		return fmt.Errorf("no decryption share recorded for ciphertext %x", ct.ID())
	}
	secret, err := s.CombineDecryptionShares(shares)
	if err != nil {
		return err
	}
	plain, err := tpke.DecryptWithSharedSecret(s.Scheme(), ct, secret)
	if err != nil {
		return fmt.Errorf("combining %d decryption shares: %w", len(shares), err)
	}
	return writeOutput(c, plain)
}
