package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetup_WritesConsoleAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	path, err := Setup(Options{Verbose: true, Dir: dir, Console: &console})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if path != filepath.Join(dir, FileName) {
		t.Errorf("unexpected log file %s", path)
	}

	log.Debug().Str("project", "Fabrikam").Msg("Investigation started")

	if !strings.Contains(console.String(), "Investigation started") {
		t.Errorf("console sink missed the entry: %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"project":"Fabrikam"`) {
		t.Errorf("file sink should hold JSON entries, got %q", string(data))
	}
	if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
		t.Error("write probe should be removed")
	}
}

func TestSetup_LevelFollowsVerbose(t *testing.T) {
	var console bytes.Buffer
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	if _, err := Setup(Options{Dir: t.TempDir(), Console: &console}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Debug().Msg("hidden")
	if strings.Contains(console.String(), "hidden") {
		t.Error("debug entries must be dropped when not verbose")
	}
}

func TestSetup_UnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Setup(Options{Dir: filepath.Join(blocker, "logs")}); err == nil {
		t.Fatal("expected error when the log directory cannot be created")
	}
}

func TestDir_PrefersLogsFolder(t *testing.T) {
	t.Setenv("LOGS_FOLDER", "/var/log/ado-mcp")
	if got := Dir(); got != "/var/log/ado-mcp" {
		t.Errorf("expected LOGS_FOLDER, got %s", got)
	}
}
