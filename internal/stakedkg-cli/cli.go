// Package stakedkg is the command line tool driving a stake-weighted DKG and
// threshold decryption among validators sharing a local database.
package stakedkg

import (
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/drand/stakedkg/common"
	"github.com/drand/stakedkg/common/log"
	"github.com/drand/stakedkg/crypto"
	"github.com/drand/stakedkg/internal/fs"
	"github.com/drand/stakedkg/internal/metrics"
	"github.com/drand/stakedkg/internal/metrics/pprof"
)

// Automatically set through -ldflags
// Example: go install -ldflags "-X main.buildDate=$(date -u +%d/%m/%Y@%H:%M:%S) -X main.gitCommit=$(git rev-parse HEAD)"
var (
	gitCommit = "none"
	buildDate = "unknown"
)

var SetVersionPrinter sync.Once

// DefaultDBFolder is the folder, relative to the config folder, of the
// shared session database.
const DefaultDBFolder = "db"

func banner(w io.Writer) {
	version := common.GetAppVersion()
	_, _ = fmt.Fprintf(w, "stakedkg %s (date %v, commit %v)\n", version.String(), buildDate, gitCommit)
}

var folderFlag = &cli.StringFlag{
	Name:    "folder",
	Value:   fs.DefaultConfigFolder(),
	Usage:   "Folder to keep the validator key pair, with absolute path.",
	EnvVars: []string{"STAKEDKG_FOLDER"},
}

var verboseFlag = &cli.BoolFlag{
	Name:    "verbose",
	Usage:   "If set, verbosity is at the debug level",
	EnvVars: []string{"STAKEDKG_VERBOSE"},
}

var jsonFlag = &cli.BoolFlag{
	Name:    "json-logs",
	Usage:   "Write the logs as JSON instead of plain text",
	EnvVars: []string{"STAKEDKG_JSON_LOGS"},
}

var metricsFlag = &cli.StringFlag{
	Name:    "metrics",
	Usage:   "Launch a metrics server at the specified (host:)port while the command runs.",
	EnvVars: []string{"STAKEDKG_METRICS"},
}

var schemeFlag = &cli.StringFlag{
	Name:    "scheme",
	Usage:   "Indicates a set of values the key pair and the session will use.",
	Value:   crypto.DefaultSchemeID,
	EnvVars: []string{"STAKEDKG_SCHEME"},
}

var committeeFlag = &cli.StringFlag{
	Name:     "committee",
	Usage:    "Path of the committee file describing the session and its validators.",
	Required: true,
	EnvVars:  []string{"STAKEDKG_COMMITTEE"},
}

var dbFlag = &cli.StringFlag{
	Name:    "db",
	Usage:   "Folder of the database shared by the validators of the session.",
	Value:   path.Join(fs.DefaultConfigFolder(), DefaultDBFolder),
	EnvVars: []string{"STAKEDKG_DB"},
}

var outFlag = &cli.StringFlag{
	Name:  "out",
	Usage: "Save the output into a file instead of stdout.",
}

var requiredOutFlag = &cli.StringFlag{
	Name:     "out",
	Usage:    "Path of the file to create.",
	Required: true,
}

var inFlag = &cli.StringFlag{
	Name:  "in",
	Usage: "Read the message from this file instead of the first argument.",
}

var aadFlag = &cli.StringFlag{
	Name:  "aad",
	Usage: "Additional data authenticated along with the message, sent in the clear.",
}

var ciphertextFlag = &cli.StringFlag{
	Name:     "ciphertext",
	Usage:    "Path of a ciphertext created by the encrypt command.",
	Required: true,
}

var sessionIDFlag = &cli.StringFlag{
	Name:  "session-id",
	Usage: "Identifier of the session. A random one is used when unset.",
}

var tauFlag = &cli.Uint64Flag{
	Name:  "tau",
	Usage: "Epoch of the session.",
}

var thresholdFlag = &cli.UintFlag{
	Name:     "threshold",
	Required: true,
	Usage:    "Number of share indices needed to decrypt.",
}

var totalWeightFlag = &cli.UintFlag{
	Name:     "total-weight",
	Required: true,
	Usage:    "Number of share indices split among the validators in proportion to their stake.",
}

var minDealersFlag = &cli.UintFlag{
	Name:  "min-dealers",
	Usage: "Number of valid transcripts needed before aggregating. Defaults to every validator.",
}

var appCommands = []*cli.Command{
	{
		Name:      "keygen",
		Usage:     "Generate the long-term key pair of this validator.\n",
		ArgsUsage: "<address> identifies the validator to the others",
		Flags:     toArray(folderFlag, schemeFlag),
		Action:    withLogger(keygenCmd),
	},
	{
		Name: "new-committee",
		Usage: "Create a committee file from the public keys of the validators " +
			"and their stake.\n",
		ArgsUsage: "<validator.public>:<stake> for each validator",
		Flags: toArray(requiredOutFlag, sessionIDFlag, tauFlag, thresholdFlag,
			totalWeightFlag, minDealersFlag),
		Action: withLogger(newCommitteeCmd),
	},
	{
		Name:   "status",
		Usage:  "Show the participants of the session and its state.\n",
		Flags:  toArray(committeeFlag, dbFlag),
		Action: withLogger(statusCmd),
	},
	{
		Name:   "deal",
		Usage:  "Deal a transcript as this validator and record it in the database.\n",
		Flags:  toArray(folderFlag, committeeFlag, dbFlag),
		Action: withLogger(dealCmd),
	},
	{
		Name: "aggregate",
		Usage: "Aggregate the valid transcripts, finalize the session and print " +
			"the DKG public key.\n",
		Flags:  toArray(committeeFlag, dbFlag),
		Action: withLogger(aggregateCmd),
	},
	{
		Name:      "encrypt",
		Usage:     "Encrypt a message to the DKG public key.\n",
		ArgsUsage: "<message> unless --in is given",
		Flags:     toArray(committeeFlag, dbFlag, inFlag, aadFlag, outFlag),
		Action:    withLogger(encryptCmd),
	},
	{
		Name:   "share",
		Usage:  "Create the decryption share of this validator for a ciphertext.\n",
		Flags:  toArray(folderFlag, committeeFlag, dbFlag, ciphertextFlag, outFlag),
		Action: withLogger(shareCmd),
	},
	{
		Name: "combine",
		Usage: "Combine the decryption shares recorded for a ciphertext and " +
			"decrypt it.\n",
		Flags:  toArray(committeeFlag, dbFlag, ciphertextFlag, outFlag),
		Action: withLogger(combineCmd),
	},
}

// CLI runs the stakedkg app
func CLI() *cli.App {
	version := common.GetAppVersion()

	app := cli.NewApp()
	app.Name = "stakedkg"

	SetVersionPrinter.Do(func() {
		cli.VersionPrinter = func(c *cli.Context) {
			fmt.Fprintf(c.App.Writer, "stakedkg %s (date %v, commit %v)\n", version, buildDate, gitCommit)
		}
	})

	app.ExitErrHandler = func(context *cli.Context, err error) {
		// override to prevent default behavior of calling OS.exit(1),
		// when tests expect to be able to run multiple commands.
	}
	app.Version = version.String()
	app.Usage = "stake-weighted distributed key generation and threshold decryption"
	// we need to copy the underlying commands to avoid races, cli sadly doesn't support concurrent executions well
	appComm := make([]*cli.Command, len(appCommands))
	for i, p := range appCommands {
		v := *p
		appComm[i] = &v
	}
	app.Commands = appComm
	verbFlag := *verboseFlag
	jFlag := *jsonFlag
	metFlag := *metricsFlag
	app.Flags = toArray(&verbFlag, &jFlag, &metFlag)
	return app
}

// withLogger builds the logger out of the global flags and runs the metrics
// server for the duration of the command when asked to.
func withLogger(cmd func(*cli.Context, log.Logger) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		l := log.New(os.Stderr, logLevel(c), logJSON(c))
		if c.IsSet(metricsFlag.Name) {
			if lis := metrics.Start(l, c.String(metricsFlag.Name), pprof.WithProfile()); lis != nil {
				defer closeListener(l, lis)
			}
		}
		return cmd(c, l)
	}
}

func closeListener(l log.Logger, lis net.Listener) {
	if err := lis.Close(); err != nil {
		l.Warnw("", "metrics", "close failed", "err", err)
	}
}

func isVerbose(c *cli.Context) bool {
	return c.Bool(verboseFlag.Name)
}

func logLevel(c *cli.Context) int {
	if isVerbose(c) {
		return log.DebugLevel
	}

	return log.ErrorLevel
}

func logJSON(c *cli.Context) bool {
	return c.Bool(jsonFlag.Name)
}

func toArray(flags ...cli.Flag) []cli.Flag {
	return flags
}
