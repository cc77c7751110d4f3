package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestJournal_AppendDeduplicatesAndSorts(t *testing.T) {
	j := NewJournal(filepath.Join(t.TempDir(), "j.jsonl"))
	e1 := InvestigationEvent{RunID: "a", Seq: 1, EventType: RunStarted, Timestamp: 200}
	e2 := InvestigationEvent{RunID: "b", Seq: 1, EventType: RunStarted, Timestamp: 100}

	j.Append(e1, e2)
	j.Append(e1)

	if j.Count() != 2 {
		t.Fatalf("count = %d, want 2", j.Count())
	}
	runs := j.Runs(0)
	if runs[0].RunID != "a" || runs[1].RunID != "b" {
		t.Errorf("runs not newest first: %+v", runs)
	}
}

func TestJournal_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "investigations.jsonl")
	j := NewJournal(path)

	rec := NewRecorder("custom-fields", "P", clock(time.Unix(1700000000, 0)))
	rec.Record(RunStarted, "", "", "", "")
	rec.Record(FieldTransitioned, "Custom.Squad", "needs investigation", "functional", "organization-list")
	rec.Record(StepWarning, "Custom.Other", "", "", "no values")
	rec.Record(RunCompleted, "", "", "", "")
	j.Append(rec.Events()...)

	if err := j.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	loaded := NewJournal(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	events := loaded.EventsForRun(rec.RunID)
	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}
	if events[1].Subject != "Custom.Squad" || events[1].To != "functional" {
		t.Errorf("event 2 = %+v", events[1])
	}

	runs := loaded.Runs(10)
	if len(runs) != 1 {
		t.Fatalf("runs = %+v", runs)
	}
	r := runs[0]
	if r.Outcome != "completed" || r.Transitions != 1 || r.Warnings != 1 || r.Kind != "custom-fields" {
		t.Errorf("summary = %+v", r)
	}
}

func TestJournal_LoadSkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.jsonl")
	content := `{"runId":"a","seq":1,"eventType":"RunStarted","ts":1}
not json
{"runId":"a","seq":2,"eventType":"RunFailed","ts":2}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	j := NewJournal(path)
	if err := j.Load(); err != nil {
		t.Fatal(err)
	}
	if j.Count() != 2 {
		t.Errorf("count = %d, want 2", j.Count())
	}
	if runs := j.Runs(1); runs[0].Outcome != "failed" {
		t.Errorf("outcome = %s", runs[0].Outcome)
	}
}

func TestJournal_LoadMissingFile(t *testing.T) {
	j := NewJournal(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err := j.Load(); err != nil {
		t.Errorf("missing journal should not be an error: %v", err)
	}
	if err := j.Save(); err != nil {
		t.Errorf("saving an empty journal should be a no-op: %v", err)
	}
}
