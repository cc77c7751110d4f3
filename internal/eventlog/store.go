package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultJournalFile is relative to the data path.
const DefaultJournalFile = "cache/investigations.jsonl"

// Journal provides thread-safe, chronological storage for InvestigationEvents
// backed by a JSONL file.
type Journal struct {
	mu     sync.RWMutex
	path   string
	events []InvestigationEvent
}

// NewJournal creates an empty journal bound to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

func (j *Journal) Path() string { return j.path }

// Append adds events, ensuring chronological order and deduplication.
func (j *Journal) Append(events ...InvestigationEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()

	// 1. Index existing identities
	existing := make(map[string]bool, len(j.events))
	for _, e := range j.events {
		existing[e.identity()] = true
	}

	// 2. Filter new events
	newCount := 0
	for _, e := range events {
		if !existing[e.identity()] {
			j.events = append(j.events, e)
			existing[e.identity()] = true
			newCount++
		}
	}
	if newCount == 0 {
		return
	}

	// 3. Sort by Timestamp, then run and sequence for deterministic ordering
	sort.SliceStable(j.events, func(a, b int) bool {
		ea, eb := j.events[a], j.events[b]
		if ea.Timestamp != eb.Timestamp {
			return ea.Timestamp < eb.Timestamp
		}
		if ea.RunID != eb.RunID {
			return ea.RunID < eb.RunID
		}
		return ea.Seq < eb.Seq
	})
}

// Load reads events from the journal file. A missing file is not an error.
func (j *Journal) Load() error {
	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No journal yet, not an error
		}
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	var events []InvestigationEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e InvestigationEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Warn().Err(err).Str("path", j.path).Msg("Skipping invalid JSON line in journal")
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading journal: %w", err)
	}

	log.Debug().Str("path", j.path).Int("count", len(events)).Msg("Loaded investigation journal")
	j.Append(events...)
	return nil
}

// Save persists all events to the journal file atomically.
func (j *Journal) Save() error {
	j.mu.RLock()
	events := append([]InvestigationEvent(nil), j.events...)
	j.mu.RUnlock()

	if len(events) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	tmpPath := j.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp journal file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, e := range events {
		if err := encoder.Encode(e); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, j.path); err != nil {
		return fmt.Errorf("failed to rename journal file: %w", err)
	}

	log.Debug().Str("path", j.path).Int("count", len(events)).Msg("Investigation journal saved")
	return nil
}

// Count returns the number of stored events.
func (j *Journal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}

// EventsForRun returns the events of one run in sequence order.
func (j *Journal) EventsForRun(runID string) []InvestigationEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []InvestigationEvent
	for _, e := range j.events {
		if e.RunID == runID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(a, b int) bool { return result[a].Seq < result[b].Seq })
	return result
}

// Runs summarises the most recent runs, newest first. limit <= 0 returns all.
func (j *Journal) Runs(limit int) []RunSummary {
	j.mu.RLock()
	defer j.mu.RUnlock()

	byRun := make(map[string]*RunSummary)
	for _, e := range j.events {
		s, ok := byRun[e.RunID]
		if !ok {
			s = &RunSummary{RunID: e.RunID, StartedAt: e.Timestamp, Outcome: "incomplete"}
			byRun[e.RunID] = s
		}
		if e.Kind != "" {
			s.Kind = e.Kind
		}
		if e.Project != "" {
			s.Project = e.Project
		}
		if e.Timestamp < s.StartedAt {
			s.StartedAt = e.Timestamp
		}
		switch e.EventType {
		case FieldTransitioned:
			s.Transitions++
		case StepWarning:
			s.Warnings++
		case BackupTaken:
			s.Backups++
		case RunCompleted:
			s.Outcome = "completed"
			s.FinishedAt = e.Timestamp
		case RunFailed:
			s.Outcome = "failed"
			s.FinishedAt = e.Timestamp
		}
	}

	runs := make([]RunSummary, 0, len(byRun))
	for _, s := range byRun {
		runs = append(runs, *s)
	}
	sort.Slice(runs, func(a, b int) bool {
		if runs[a].StartedAt != runs[b].StartedAt {
			return runs[a].StartedAt > runs[b].StartedAt
		}
		return runs[a].RunID < runs[b].RunID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}

// identity computes a unique string identifier for an event to aid deduplication.
func (e InvestigationEvent) identity() string {
	return fmt.Sprintf("%s|%d|%s", e.RunID, e.Seq, e.EventType)
}

// Recorder stamps events for a single run. It is not safe for concurrent use.
type Recorder struct {
	RunID   string
	kind    string
	project string
	now     func() time.Time
	seq     int
	events  []InvestigationEvent
}

// NewRecorder starts a run with a fresh UUID.
func NewRecorder(kind, project string, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{RunID: uuid.NewString(), kind: kind, project: project, now: now}
}

// Record appends an event to the run.
func (r *Recorder) Record(t EventType, subject, from, to, message string) InvestigationEvent {
	r.seq++
	e := InvestigationEvent{
		RunID:     r.RunID,
		Seq:       r.seq,
		EventType: t,
		Timestamp: r.now().UnixMicro(),
		Kind:      r.kind,
		Project:   r.project,
		Subject:   subject,
		From:      from,
		To:        to,
		Message:   message,
	}
	r.events = append(r.events, e)
	return e
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []InvestigationEvent {
	return append([]InvestigationEvent(nil), r.events...)
}
