package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the rotating log file inside the log directory.
const FileName = "ado-mcp.log"

// Options configure Setup. Zero values select the defaults used by Init.
type Options struct {
	Verbose bool
	// Dir overrides LOGS_FOLDER and the executable-relative logs directory.
	Dir string
	// Console replaces os.Stderr. Stdout is never used; it carries the MCP transport.
	Console io.Writer
}

// Init initializes the global logger with dual sinks: os.Stderr and a rotating file.
// It exits the process when the log directory cannot be used.
func Init(verbose bool) {
	// 0. Load .env from binary directory to ensure LOGS_FOLDER is available.
	// We do this here because Init is called before config.Load.
	if exePath, err := os.Executable(); err == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}

	if _, err := Setup(Options{Verbose: verbose}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Setup installs the global logger and returns the log file path.
func Setup(opts Options) (string, error) {
	// 1. Determine log level
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	// 2. Setup console writer
	console := opts.Console
	noColor := true
	if console == nil {
		console = os.Stderr
		noColor = !(isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
	}
	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}

	// 3. Setup File Writer (Rotating)
	logDir := opts.Dir
	if logDir == "" {
		logDir = Dir()
	}
	if err := ensureWritable(logDir); err != nil {
		return "", err
	}

	logFile := filepath.Join(logDir, FileName)
	fileWriter := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    16, // megabytes
		MaxBackups: 32,
		MaxAge:     365, // days
		Compress:   true,
	}

	// 4. Combine writers and set the global logger
	multi := zerolog.MultiLevelWriter(io.Writer(consoleWriter), fileWriter)
	log.Logger = zerolog.New(multi).
		With().
		Timestamp().
		Logger()
	return logFile, nil
}

// Dir resolves the log directory from LOGS_FOLDER, falling back to logs/
// next to the executable.
func Dir() string {
	if dir := os.Getenv("LOGS_FOLDER"); dir != "" {
		return dir
	}
	if exePath, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exePath), "logs")
	}
	return "logs"
}

func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q: %w", dir, err)
	}
	// MkdirAll success is a good indicator, but a read-only mount still passes it.
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return fmt.Errorf("log directory %q is not writable: %w", dir, err)
	}
	_ = os.Remove(testFile)
	return nil
}
