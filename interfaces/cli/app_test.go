package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/hitl-go/interfaces/cli"
)

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	app := cli.New().WithOutput(&stdout, &stderr)

	if err := app.ExecuteWithArgs(context.Background(), []string{"version"}); err != nil {
		t.Fatalf("ExecuteWithArgs() error = %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "hitl version") {
		t.Errorf("version output = %q", out)
	}
	if !strings.Contains(out, "Git commit:") || !strings.Contains(out, "Build date:") {
		t.Errorf("version output missing build info: %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "server:\n  addr: \":8086\"\nstore:\n  backend: memory\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		var stdout, stderr bytes.Buffer
		app := cli.New().WithOutput(&stdout, &stderr)

		if err := app.ExecuteWithArgs(context.Background(), []string{"validate", "-c", path}); err != nil {
			t.Fatalf("ExecuteWithArgs() error = %v", err)
		}
		if !strings.Contains(stdout.String(), "is valid") {
			t.Errorf("validate output = %q", stdout.String())
		}
	})

	t.Run("invalid backend fails", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("store:\n  backend: redis\n"), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		var stdout, stderr bytes.Buffer
		app := cli.New().WithOutput(&stdout, &stderr)

		if err := app.ExecuteWithArgs(context.Background(), []string{"validate", "-c", path}); err == nil {
			t.Error("ExecuteWithArgs() should fail for an unknown backend")
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		app := cli.New().WithOutput(&stdout, &stderr)

		path := filepath.Join(t.TempDir(), "absent.yaml")
		if err := app.ExecuteWithArgs(context.Background(), []string{"validate", "-c", path}); err == nil {
			t.Error("ExecuteWithArgs() should fail for a missing file")
		}
	})

	t.Run("config flag is required", func(t *testing.T) {
		t.Parallel()

		var stdout, stderr bytes.Buffer
		app := cli.New().WithOutput(&stdout, &stderr)

		if err := app.ExecuteWithArgs(context.Background(), []string{"validate"}); err == nil {
			t.Error("ExecuteWithArgs() should fail without --config")
		}
	})
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	app := cli.New().WithOutput(&stdout, &stderr)

	if err := app.ExecuteWithArgs(context.Background(), []string{"bogus"}); err == nil {
		t.Error("ExecuteWithArgs() should fail for an unknown command")
	}
}
