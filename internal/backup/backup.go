// Package backup snapshots configuration files before they are overwritten.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	suffix     = ".backup_"
	timeLayout = "20060102_150405"

	// maxCollisions bounds the counter search for backups taken in the same second.
	maxCollisions = 1000
)

// Record describes one backup attempt.
type Record struct {
	OriginalPath string    `json:"originalPath"`
	BackupPath   string    `json:"backupPath,omitempty"`
	TakenAt      time.Time `json:"takenAt,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
}

// RestoreResult describes a restore attempt.
type RestoreResult struct {
	OriginalPath string `json:"originalPath"`
	RestoredFrom string `json:"restoredFrom,omitempty"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// Entry is an existing backup file.
type Entry struct {
	Path    string    `json:"path"`
	TakenAt time.Time `json:"takenAt"`
	Counter int       `json:"counter,omitempty"`
	Size    int64     `json:"size"`
}

// Messages surfaced in records.
const (
	MsgSourceMissing = "source file does not exist"
	MsgNoBackups     = "no backups available"
)

// Manager creates, lists and restores backups. It never returns errors;
// failures are reported in the result values.
type Manager struct {
	now func() time.Time
}

// NewManager returns a Manager using the local clock.
func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// NewManagerWithClock returns a Manager with an injected clock.
func NewManagerWithClock(now func() time.Time) *Manager {
	return &Manager{now: now}
}

// Backup copies path to <path>.backup_<yyyyMMdd_HHmmss>. When that name is
// taken a _<n> counter is appended; existing backups are never overwritten.
func (m *Manager) Backup(path string) Record {
	rec := Record{OriginalPath: path}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		rec.Error = MsgSourceMissing
		return rec
	}
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	if info.IsDir() {
		rec.Error = fmt.Sprintf("%s is a directory", path)
		return rec
	}

	src, err := os.Open(path)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	defer src.Close()

	takenAt := m.now()
	dst, dstPath, err := createExclusive(path + suffix + takenAt.Format(timeLayout))
	if err != nil {
		rec.Error = err.Error()
		return rec
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dstPath)
		rec.Error = fmt.Sprintf("failed to copy %s: %v", path, err)
		return rec
	}
	if err := dst.Close(); err != nil {
		os.Remove(dstPath)
		rec.Error = fmt.Sprintf("failed to close %s: %v", dstPath, err)
		return rec
	}

	rec.BackupPath = dstPath
	rec.TakenAt = takenAt
	rec.Success = true
	log.Info().Str("source", path).Str("backup", dstPath).Msg("Configuration backed up")
	return rec
}

func createExclusive(base string) (*os.File, string, error) {
	for n := 0; n < maxCollisions; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s_%d", base, n)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("too many backups of %s within one second", base)
}

// BackupAll backs up each path in order.
func (m *Manager) BackupAll(paths ...string) []Record {
	records := make([]Record, 0, len(paths))
	for _, p := range paths {
		records = append(records, m.Backup(p))
	}
	return records
}

// ListBackups returns the backups of path, newest first. Unreadable
// directories yield an empty list.
func (m *Manager) ListBackups(path string) []Entry {
	dir := filepath.Dir(path)
	prefix := filepath.Base(path) + suffix

	files, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to list backups")
		}
		return nil
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), prefix) {
			continue
		}
		takenAt, counter, ok := parseSuffix(strings.TrimPrefix(f.Name(), prefix))
		if !ok {
			continue
		}
		entry := Entry{Path: filepath.Join(dir, f.Name()), TakenAt: takenAt, Counter: counter}
		if info, err := f.Info(); err == nil {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].TakenAt.Equal(entries[j].TakenAt) {
			return entries[i].TakenAt.After(entries[j].TakenAt)
		}
		return entries[i].Counter > entries[j].Counter
	})
	return entries
}

// parseSuffix reads "yyyyMMdd_HHmmss" with an optional "_n" counter.
func parseSuffix(s string) (time.Time, int, bool) {
	if len(s) < len(timeLayout) {
		return time.Time{}, 0, false
	}
	ts, err := time.ParseInLocation(timeLayout, s[:len(timeLayout)], time.Local)
	if err != nil {
		return time.Time{}, 0, false
	}
	rest := s[len(timeLayout):]
	if rest == "" {
		return ts, 0, true
	}
	if !strings.HasPrefix(rest, "_") {
		return time.Time{}, 0, false
	}
	n, err := strconv.Atoi(rest[1:])
	if err != nil || n < 1 {
		return time.Time{}, 0, false
	}
	return ts, n, true
}

// Restore copies the most recent backup back over path.
func (m *Manager) Restore(path string) RestoreResult {
	res := RestoreResult{OriginalPath: path}

	backups := m.ListBackups(path)
	if len(backups) == 0 {
		res.Error = MsgNoBackups
		return res
	}
	latest := backups[0].Path

	if err := copyOver(latest, path); err != nil {
		res.Error = err.Error()
		return res
	}

	res.RestoredFrom = latest
	res.Success = true
	log.Info().Str("target", path).Str("backup", latest).Msg("Configuration restored from backup")
	return res
}

func copyOver(from, to string) error {
	data, err := os.ReadFile(from)
	if err != nil {
		return fmt.Errorf("failed to read backup %s: %w", from, err)
	}
	tmp := to + ".restore.tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, to); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", to, err)
	}
	return nil
}
