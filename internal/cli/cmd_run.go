package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/txcache/internal/config"
	"github.com/calvinalkan/txcache/internal/script"
	"github.com/calvinalkan/txcache/pkg/bundle"
	"github.com/calvinalkan/txcache/pkg/txcache"
	"github.com/calvinalkan/txcache/pkg/witness"
	"github.com/calvinalkan/txcache/pkg/workset"
)

// ErrScriptRequired is returned when run or verify get no script argument.
var ErrScriptRequired = errors.New("script path is required (use - for stdin)")

// RunCmd returns the run command.
func RunCmd(cfg config.Config, logger hclog.Logger, stdin io.Reader) *Command {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	bundleOut := flags.String("bundle-out", "", "write a replay bundle to `file`")
	commit := flags.Bool("commit", false, "commit the writes to the backend")

	return &Command{
		Flags:   flags,
		Usage:   "run [flags] <script>",
		Summary: "Execute a script and print its reads and writes",
		Details: "Execute a script against the configured backend in a fresh root scope,\n" +
			"then print the ordered reads and the sorted writes of the batch.\n" +
			"With --bundle-out, also save the reads, writes and collected witness\n" +
			"for `txc verify`. With --commit, apply the writes as a new version.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execRun(ctx, o, cfg, logger, stdin, args, *bundleOut, *commit)
		},
	}
}

func execRun(
	ctx context.Context,
	o *IO,
	cfg config.Config,
	logger hclog.Logger,
	stdin io.Reader,
	args []string,
	bundleOut string,
	commit bool,
) error {
	src, closeSrc, err := openScript(cfg, stdin, args)
	if err != nil {
		return err
	}

	defer closeSrc()

	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	defer func() { _ = store.Close() }()

	opts := []workset.Option{workset.WithLogger(logger)}

	if cfg.IsVersioned() {
		latest, latestErr := store.Latest(ctx)
		if latestErr != nil {
			return latestErr
		}

		opts = append(opts, workset.WithVersion(latest))
	}

	w := witness.New()
	root := workset.NewRoot(store.Reader(ctx), w, opts...)
	interp := script.New(root)

	err = interp.Run(src, o.Out())
	if err != nil {
		return err
	}

	orw, err := interp.Finish()
	if err != nil {
		return err
	}

	printFrozen(o, orw)

	if bundleOut != "" {
		path := bundleOut
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.EffectiveCwd, path)
		}

		err = bundle.Save(path, bundle.FromFrozen(root.Version(), orw, w))
		if err != nil {
			return err
		}

		o.Println("bundle:", path)
	}

	if commit {
		version, commitErr := store.Commit(ctx, orw)
		if commitErr != nil {
			return commitErr
		}

		o.Println("committed version", version)

		if cfg.Backend == config.BackendMemory {
			o.Warn("committed to the memory backend", "the writes are lost on exit; use --backend sqlite to keep them")
		}
	}

	return nil
}

// openScript opens the script named by args[0], "-" meaning stdin.
func openScript(cfg config.Config, stdin io.Reader, args []string) (io.Reader, func(), error) {
	if len(args) != 1 {
		return nil, nil, ErrScriptRequired
	}

	if args[0] == "-" {
		if stdin == nil {
			return nil, nil, errors.New("no stdin available")
		}

		return stdin, func() {}, nil
	}

	path := args[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.EffectiveCwd, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open script: %w", err)
	}

	return f, func() { _ = f.Close() }, nil
}

func printFrozen(o *IO, orw txcache.OrderedReadsAndWrites) {
	o.Printf("reads (%d):\n", len(orw.Reads))

	for _, e := range orw.Reads {
		o.Println(" ", script.FormatEntry(e))
	}

	o.Printf("writes (%d):\n", len(orw.Writes))

	for _, e := range orw.Writes {
		o.Println(" ", script.FormatEntry(e))
	}
}
