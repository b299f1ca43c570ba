package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/txcache/internal/config"
	"github.com/calvinalkan/txcache/internal/script"
	"github.com/calvinalkan/txcache/pkg/bundle"
	"github.com/calvinalkan/txcache/pkg/kvstore"
	"github.com/calvinalkan/txcache/pkg/workset"
)

var (
	// ErrBundleRequired is returned when verify has no --bundle.
	ErrBundleRequired = errors.New("--bundle is required")

	// ErrUnusedHints is returned when the replayed script read less than
	// the proving run.
	ErrUnusedHints = errors.New("witness has unused hints")
)

// VerifyCmd returns the verify command.
func VerifyCmd(cfg config.Config, logger hclog.Logger, stdin io.Reader) *Command {
	flags := flag.NewFlagSet("verify", flag.ContinueOnError)
	bundlePath := flags.String("bundle", "", "bundle `file` written by run --bundle-out")

	return &Command{
		Flags:   flags,
		Usage:   "verify --bundle <file> <script>",
		Summary: "Re-execute a script from a bundle's witness",
		Details: "Re-execute a script without touching storage: every read is served\n" +
			"from the bundle's witness. Fails unless the reads and writes match the\n" +
			"bundle exactly and every hint was consumed.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			return execVerify(o, cfg, logger, stdin, args, *bundlePath)
		},
	}
}

func execVerify(o *IO, cfg config.Config, logger hclog.Logger, stdin io.Reader, args []string, bundlePath string) error {
	if bundlePath == "" {
		return ErrBundleRequired
	}

	src, closeSrc, err := openScript(cfg, stdin, args)
	if err != nil {
		return err
	}

	defer closeSrc()

	if !filepath.IsAbs(bundlePath) {
		bundlePath = filepath.Join(cfg.EffectiveCwd, bundlePath)
	}

	b, err := bundle.Load(bundlePath)
	if err != nil {
		return err
	}

	opts := []workset.Option{workset.WithLogger(logger)}
	if h, ok := b.Version.Get(); ok {
		opts = append(opts, workset.WithVersion(h))
	}

	root := workset.NewRoot(kvstore.NewReplay(kvstore.WithLogger(logger)), b.Witness, opts...)
	interp := script.New(root)

	err = interp.Run(src, io.Discard)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	orw, err := interp.Finish()
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	err = b.Check(orw)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if n := b.Witness.Remaining(); n > 0 {
		return fmt.Errorf("verification failed: %w: %d", ErrUnusedHints, n)
	}

	o.Printf("verified: %d reads, %d writes\n", len(orw.Reads), len(orw.Writes))

	return nil
}
