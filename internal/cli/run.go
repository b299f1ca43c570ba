package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/txcache/internal/config"
)

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. A signal on it cancels the context handed to the
// running command.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("txc", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	workDir := globals.StringP("cwd", "C", "", "run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "use config `file` instead of .txc.json")
	backend := globals.String("backend", "", "backend: memory or sqlite")
	dbPath := globals.String("db", "", "sqlite database `path`")
	help := globals.BoolP("help", "h", false, "show help")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, globals, nil)

		return 1
	}

	rest := globals.Args()

	if *help || len(rest) == 0 {
		printUsage(out, globals, nil)

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:    *workDir,
		ConfigPath: *configPath,
		Overrides:  config.Overrides{Backend: *backend, DBPath: *dbPath},
		Env:        env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "txc",
		Level:  cfg.Level(),
		Output: errOut,
	})

	commands := []*Command{
		RunCmd(cfg, logger, in),
		VerifyCmd(cfg, logger, in),
		ReplCmd(cfg, logger, in),
		PrintConfigCmd(cfg),
	}

	name := rest[0]

	var cmd *Command

	for _, c := range commands {
		if c.Name() == name {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		fprintln(errOut)
		printUsage(errOut, globals, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-sigCh:
			logger.Debug("interrupted")
			cancel()
		case <-ctx.Done():
		}
	}()

	code := cmd.Run(ctx, NewIO(out, errOut), rest[1:])
	if code != 0 && errors.Is(ctx.Err(), context.Canceled) {
		return 130
	}

	return code
}

func printUsage(w io.Writer, globals *flag.FlagSet, commands []*Command) {
	fprintln(w, "txc - transactional read/write cache driver")
	fprintln(w)
	fprintln(w, "Usage: txc [global flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Commands:")

	if commands == nil {
		commands = []*Command{
			RunCmd(config.Config{}, nil, nil),
			VerifyCmd(config.Config{}, nil, nil),
			ReplCmd(config.Config{}, nil, nil),
			PrintConfigCmd(config.Config{}),
		}
	}

	for _, c := range commands {
		fprintln(w, c.listing())
	}

	fprintln(w)
	fprintln(w, "Global flags:")

	var buf strings.Builder

	globals.SetOutput(&buf)
	globals.PrintDefaults()
	globals.SetOutput(&strings.Builder{})

	_, _ = io.WriteString(w, buf.String())
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
