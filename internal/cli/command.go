package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one txc subcommand.
type Command struct {
	Flags *flag.FlagSet

	// Usage follows "txc" in help output. Its first word names the command.
	Usage string

	Summary string

	// Details is the body of "txc <cmd> --help". Summary is used when empty.
	Details string

	Exec func(ctx context.Context, o *IO, args []string) error
}

func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

func (c *Command) listing() string {
	return fmt.Sprintf("  %-32s %s", c.Usage, c.Summary)
}

func (c *Command) writeHelp(w io.Writer) {
	body := c.Details
	if body == "" {
		body = c.Summary
	}

	_, _ = fmt.Fprintf(w, "Usage: txc %s\n\n%s\n", c.Usage, body)

	if c.Flags == nil || !c.Flags.HasFlags() {
		return
	}

	_, _ = fmt.Fprintf(w, "\nFlags:\n%s", c.Flags.FlagUsages())
}

// Run parses args into the command's flags and executes it, returning the
// process exit code. A flag error prints the command's help to stderr.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard)

	err := c.Flags.Parse(args)

	switch {
	case errors.Is(err, flag.ErrHelp):
		c.writeHelp(o.out)

		return 0
	case err != nil:
		_, _ = fmt.Fprintf(o.errOut, "error: %v\n\n", err)
		c.writeHelp(o.errOut)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		_, _ = fmt.Fprintln(o.errOut, "error:", err)

		return 1
	}

	return o.Finish()
}
