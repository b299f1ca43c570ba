// Package script interprets a small line-oriented language that drives a
// tree of workset scopes. It backs the txc run, verify and repl commands.
//
//	# comment
//	get <key>            print the value of key
//	set <key> <value>    write value
//	del <key>            delete key
//	expect <key> <value> read key and fail unless it equals value (<nil> = absent)
//	begin                open a child scope
//	commit               merge the current scope into its parent
//	revert               discard the current scope
//	show                 print the current scope's access log
//
// Keys and values are literal tokens, 0x-prefixed hex, or "" for empty.
package script

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/calvinalkan/txcache/pkg/txcache"
	"github.com/calvinalkan/txcache/pkg/workset"
)

var (
	// ErrUnknownCommand is returned for an unrecognized command word.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrUsage is returned when a command has the wrong number of arguments.
	ErrUsage = errors.New("usage")

	// ErrExpectation is returned when an expect line does not hold.
	ErrExpectation = errors.New("expectation failed")

	// ErrOpenScope is returned by [Interpreter.Finish] while child scopes
	// are still open.
	ErrOpenScope = errors.New("unterminated scope")

	// ErrAtRoot is returned by commit and revert when no child is open.
	ErrAtRoot = errors.New("no open scope")
)

// LineError locates a failure in a script.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Interpreter executes script lines against a stack of scopes whose bottom
// is a root scope.
type Interpreter struct {
	stack []*workset.Scope
}

// New returns an interpreter operating on root.
func New(root *workset.Scope) *Interpreter {
	return &Interpreter{stack: []*workset.Scope{root}}
}

// Depth returns the number of open child scopes.
func (in *Interpreter) Depth() int {
	return len(in.stack) - 1
}

// Root returns the root scope.
func (in *Interpreter) Root() *workset.Scope {
	return in.stack[0]
}

func (in *Interpreter) current() *workset.Scope {
	return in.stack[len(in.stack)-1]
}

// Exec runs one line and returns its output, empty for silent commands.
// Blank lines and comments do nothing.
func (in *Interpreter) Exec(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return "", nil
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "get":
		return in.get(args)
	case "set":
		return "", in.set(args)
	case "del", "delete":
		return "", in.del(args)
	case "expect":
		return "", in.expect(args)
	case "begin":
		return in.begin(args)
	case "commit":
		return in.end(args, (*workset.Scope).Commit)
	case "revert":
		return in.end(args, (*workset.Scope).Revert)
	case "show":
		return in.show(args)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

// Run executes every line of r, writing non-empty output to out. It stops
// at the first failing line and returns a *LineError.
func (in *Interpreter) Run(r io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		text := scanner.Text()

		res, err := in.Exec(text)
		if err != nil {
			return &LineError{Line: lineNo, Text: strings.TrimSpace(text), Err: err}
		}

		if res != "" {
			_, err = fmt.Fprintln(out, res)
			if err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
		}
	}

	err := scanner.Err()
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	return nil
}

// Finish freezes the root and returns its ordered reads and writes. Every
// child must have been committed or reverted.
func (in *Interpreter) Finish() (txcache.OrderedReadsAndWrites, error) {
	if d := in.Depth(); d > 0 {
		return txcache.OrderedReadsAndWrites{}, fmt.Errorf("%w: %d scope(s) still open", ErrOpenScope, d)
	}

	return in.Root().Freeze()
}

func (in *Interpreter) get(args []string) (string, error) {
	k, err := oneKey("get <key>", args)
	if err != nil {
		return "", err
	}

	v, err := in.current().Get(k)
	if err != nil {
		return "", err
	}

	return FormatBytes(k.Bytes()) + " " + FormatValue(v), nil
}

func (in *Interpreter) set(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: set <key> <value>", ErrUsage)
	}

	kb, err := ParseBytes(args[0])
	if err != nil {
		return err
	}

	if args[1] == absentToken {
		return fmt.Errorf("%w: use del to delete", ErrUsage)
	}

	vb, err := ParseBytes(args[1])
	if err != nil {
		return err
	}

	return in.current().Set(txcache.NewKey(kb), txcache.SomeValue(vb))
}

func (in *Interpreter) del(args []string) error {
	k, err := oneKey("del <key>", args)
	if err != nil {
		return err
	}

	return in.current().Delete(k)
}

func (in *Interpreter) expect(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: expect <key> <value>", ErrUsage)
	}

	kb, err := ParseBytes(args[0])
	if err != nil {
		return err
	}

	want, err := ParseValue(args[1])
	if err != nil {
		return err
	}

	got, err := in.current().Get(txcache.NewKey(kb))
	if err != nil {
		return err
	}

	if got != want {
		return fmt.Errorf("%w: %s is %s, want %s", ErrExpectation, FormatBytes(kb), FormatValue(got), FormatValue(want))
	}

	return nil
}

func (in *Interpreter) begin(args []string) (string, error) {
	if len(args) != 0 {
		return "", fmt.Errorf("%w: begin", ErrUsage)
	}

	child, err := in.current().Begin()
	if err != nil {
		return "", err
	}

	in.stack = append(in.stack, child)

	return fmt.Sprintf("begin (depth %d)", in.Depth()), nil
}

func (in *Interpreter) end(args []string, fn func(*workset.Scope) error) (string, error) {
	if len(args) != 0 {
		return "", fmt.Errorf("%w: takes no arguments", ErrUsage)
	}

	if in.Depth() == 0 {
		return "", ErrAtRoot
	}

	// Pop even on failure: a failed commit has already closed the scope.
	err := fn(in.current())
	in.stack = in.stack[:len(in.stack)-1]

	if err != nil {
		return "", err
	}

	return "", nil
}

func (in *Interpreter) show(args []string) (string, error) {
	if len(args) != 0 {
		return "", fmt.Errorf("%w: show", ErrUsage)
	}

	records, err := in.current().Records()
	if err != nil {
		return "", err
	}

	var b strings.Builder

	fmt.Fprintf(&b, "scope depth %d, %d key(s)", in.Depth(), len(records))

	for _, r := range records {
		fmt.Fprintf(&b, "\n  %s %s", FormatKey(r.Key), r.Access)
	}

	return b.String(), nil
}

func oneKey(usage string, args []string) (txcache.Key, error) {
	if len(args) != 1 {
		return txcache.Key{}, fmt.Errorf("%w: %s", ErrUsage, usage)
	}

	b, err := ParseBytes(args[0])
	if err != nil {
		return txcache.Key{}, err
	}

	return txcache.NewKey(b), nil
}
