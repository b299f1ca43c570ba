package cli

import (
	"fmt"
	"io"
)

// IO is a command's stdout plus the warnings it raises along the way.
// Warnings go to stderr once the command is done and turn exit code 0 into 1.
type IO struct {
	out      io.Writer
	errOut   io.Writer
	warnings []string
}

func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn records a problem that did not stop the command, with a hint on what
// to do about it.
func (o *IO) Warn(problem, hint string) {
	o.warnings = append(o.warnings, problem+": "+hint)
}

func (o *IO) Out() io.Writer { return o.out }

func (o *IO) Println(a ...any) { _, _ = fmt.Fprintln(o.out, a...) }

func (o *IO) Printf(format string, a ...any) { _, _ = fmt.Fprintf(o.out, format, a...) }

// Finish reports the collected warnings and returns the exit code.
func (o *IO) Finish() int {
	if len(o.warnings) == 0 {
		return 0
	}

	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	return 1
}
