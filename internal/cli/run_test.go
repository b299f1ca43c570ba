package cli_test

import (
	"bytes"
	"testing"

	"github.com/calvinalkan/txcache/internal/cli"
)

func Test_Invalid_Global_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--invalid-flag", "run")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")
	cli.AssertContains(t, stderr, "Global flags:")
	cli.AssertContains(t, stderr, "--cwd")
	cli.AssertContains(t, stderr, "--config")
	cli.AssertContains(t, stderr, "--backend")
}

func Test_Bare_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := cli.Run(nil, &stdout, &stderr, []string{"txc"}, nil, nil)

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stderr.String(), ""; got != want {
		t.Errorf("stderr=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stdout.String(), "txc - transactional read/write cache driver")
	cli.AssertContains(t, stdout.String(), "run [flags] <script>")
	cli.AssertContains(t, stdout.String(), "verify --bundle <file> <script>")
	cli.AssertContains(t, stdout.String(), "repl")
	cli.AssertContains(t, stdout.String(), "print-config")
}

func Test_Unknown_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("frobnicate")

	cli.AssertContains(t, stderr, "unknown command: frobnicate")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Command_Help_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("run", "--help")

	cli.AssertContains(t, stdout, "Usage: txc run [flags] <script>")
	cli.AssertContains(t, stdout, "--bundle-out")
	cli.AssertContains(t, stdout, "--commit")
}

func Test_Command_Help_Omits_Flags_When_Command_Has_None(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config", "--help")

	cli.AssertContains(t, stdout, "Usage: txc print-config\n\nDisplay the effective configuration")
	cli.AssertNotContains(t, stdout, "Flags:")
}

func Test_Invalid_Config_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".txc.json", `{"backend": "redis"}`)

	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "unknown backend")
}

func Test_Command_Flag_Error_Prints_Help_To_Stderr(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, code := c.Run("run", "--nope")

	if code != 1 {
		t.Errorf("exitCode=%d, want=1", code)
	}

	if stdout != "" {
		t.Errorf("stdout=%q, want empty", stdout)
	}

	cli.AssertContains(t, stderr, "unknown flag: --nope")
	cli.AssertContains(t, stderr, "Usage: txc run")
}
