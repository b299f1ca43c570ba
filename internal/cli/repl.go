package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/txcache/internal/config"
	"github.com/calvinalkan/txcache/internal/script"
	"github.com/calvinalkan/txcache/pkg/witness"
	"github.com/calvinalkan/txcache/pkg/workset"
)

// ReplCmd returns the repl command.
func ReplCmd(cfg config.Config, logger hclog.Logger, stdin io.Reader) *Command {
	return &Command{
		Flags:   flag.NewFlagSet("repl", flag.ContinueOnError),
		Usage:   "repl",
		Summary: "Interactive session over the configured backend",
		Details: "Start an interactive session. Accepts every script command plus\n" +
			"flush (freeze the root, commit its writes, start a new root),\n" +
			"reset (discard the root), help and exit.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			store, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}

			defer func() { _ = store.Close() }()

			r := &repl{ctx: ctx, o: o, cfg: cfg, logger: logger, store: store}

			return r.run(stdin)
		},
	}
}

// prompter reads one line of input. It returns io.EOF when input ends.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// repl is the interactive loop. With a terminal on stdin it uses liner for
// line editing and history; otherwise it reads lines plainly, which keeps
// it scriptable and testable.
type repl struct {
	ctx    context.Context
	o      *IO
	cfg    config.Config
	logger hclog.Logger
	store  backend
	interp *script.Interpreter
}

var replCommands = []string{
	"get", "set", "del", "expect", "begin", "commit", "revert", "show",
	"flush", "reset", "help", "exit", "quit",
}

func (r *repl) run(stdin io.Reader) error {
	err := r.newRoot()
	if err != nil {
		return err
	}

	p := r.prompter(stdin)
	defer func() { _ = p.Close() }()

	r.o.Println("txc repl (backend=" + r.cfg.Backend + "). Type 'help' for commands.")

	for {
		if r.ctx.Err() != nil {
			return r.ctx.Err()
		}

		line, err := p.Prompt(r.promptText())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				r.o.Println("bye")

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		p.AppendHistory(line)

		switch strings.ToLower(line) {
		case "exit", "quit", "q":
			r.o.Println("bye")

			return nil
		case "help", "?":
			r.printHelp()
		case "flush":
			r.flush()
		case "reset":
			r.reset()
		default:
			out, execErr := r.interp.Exec(line)
			if execErr != nil {
				r.o.Println("error:", execErr)

				continue
			}

			if out != "" {
				r.o.Println(out)
			}
		}
	}
}

func (r *repl) promptText() string {
	if d := r.interp.Depth(); d > 0 {
		return fmt.Sprintf("txc[%d]> ", d)
	}

	return "txc> "
}

func (r *repl) newRoot() error {
	opts := []workset.Option{workset.WithLogger(r.logger)}

	if r.cfg.IsVersioned() {
		latest, err := r.store.Latest(r.ctx)
		if err != nil {
			return err
		}

		opts = append(opts, workset.WithVersion(latest))
	}

	r.interp = script.New(workset.NewRoot(r.store.Reader(r.ctx), witness.New(), opts...))

	return nil
}

func (r *repl) flush() {
	orw, err := r.interp.Finish()
	if err != nil {
		r.o.Println("error:", err)

		if errors.Is(err, workset.ErrAborted) {
			r.o.Println("the batch was aborted; use reset to start over")
		}

		return
	}

	printFrozen(r.o, orw)

	version, err := r.store.Commit(r.ctx, orw)
	if err != nil {
		r.o.Println("error:", err)
	} else {
		r.o.Println("committed version", version)
	}

	err = r.newRoot()
	if err != nil {
		r.o.Println("error:", err)
	}
}

func (r *repl) reset() {
	err := r.newRoot()
	if err != nil {
		r.o.Println("error:", err)

		return
	}

	r.o.Println("discarded; new root scope")
}

func (r *repl) printHelp() {
	r.o.Println("Commands:")
	r.o.Println("  get <key>                 Read a key")
	r.o.Println("  set <key> <value>         Write a key")
	r.o.Println("  del <key>                 Delete a key")
	r.o.Println("  expect <key> <value>      Read a key and check it (<nil> = absent)")
	r.o.Println("  begin                     Open a child scope")
	r.o.Println("  commit                    Merge the current scope into its parent")
	r.o.Println("  revert                    Discard the current scope")
	r.o.Println("  show                      Show the current scope's accesses")
	r.o.Println("  flush                     Freeze the root, commit, start a new root")
	r.o.Println("  reset                     Discard the root and start a new one")
	r.o.Println("  help                      Show this help")
	r.o.Println("  exit / quit / q           Exit")
	r.o.Println()
	r.o.Println("Keys and values: plain text, 0x-prefixed hex, or \"\" for empty.")
}

func (r *repl) prompter(stdin io.Reader) prompter {
	if f, ok := stdin.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		return newLinerPrompter(r.cfg.HistoryFile, r.logger)
	}

	if stdin == nil {
		stdin = strings.NewReader("")
	}

	return &plainPrompter{scanner: bufio.NewScanner(stdin)}
}

type linerPrompter struct {
	state       *liner.State
	historyFile string
	logger      hclog.Logger
}

func newLinerPrompter(historyFile string, logger hclog.Logger) *linerPrompter {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(func(line string) []string {
		var out []string

		lower := strings.ToLower(line)
		for _, c := range replCommands {
			if strings.HasPrefix(c, lower) {
				out = append(out, c)
			}
		}

		return out
	})

	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return &linerPrompter{state: state, historyFile: historyFile, logger: logger}
}

func (p *linerPrompter) Prompt(prompt string) (string, error) {
	return p.state.Prompt(prompt)
}

func (p *linerPrompter) AppendHistory(line string) {
	p.state.AppendHistory(line)
}

func (p *linerPrompter) Close() error {
	if p.historyFile != "" {
		f, err := os.Create(p.historyFile)
		if err == nil {
			_, _ = p.state.WriteHistory(f)
			_ = f.Close()
		} else {
			p.logger.Debug("cannot save history", "path", p.historyFile, "error", err)
		}
	}

	return p.state.Close()
}

type plainPrompter struct {
	scanner *bufio.Scanner
}

func (p *plainPrompter) Prompt(string) (string, error) {
	if !p.scanner.Scan() {
		err := p.scanner.Err()
		if err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return p.scanner.Text(), nil
}

func (*plainPrompter) AppendHistory(string) {}

func (*plainPrompter) Close() error { return nil }
