package retention

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carelog/factstore/pkg/fact"
	"carelog/factstore/pkg/fact/storage"
)

func seedAged(t *testing.T, store *storage.MemoryStore, registry *fact.Registry, recordType string, created time.Time) {
	t.Helper()
	schema, err := registry.Lookup(recordType)
	if err != nil {
		t.Fatalf("schema %s missing: %v", recordType, err)
	}
	f := &fact.Fact{
		RecordID: "record-1",
		Type:     recordType,
		Created:  created,
		Fields: map[string]any{
			"name":          "glucose",
			"value":         92.0,
			"unit":          "mg/dL",
			"date_measured": created,
		},
	}
	if recordType == "audit" {
		f.Fields = map[string]any{"actor": "system", "action": "read", "resource": "record-1"}
	}
	if err := store.Store(context.Background(), schema, f); err != nil {
		t.Fatalf("Store: %v", err)
	}
}

func TestPrunerDeletesExpiredFacts(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := fact.NewRegistry()
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -400)
	seedAged(t, store, registry, "measurement", old)
	seedAged(t, store, registry, "audit", old)
	seedAged(t, store, registry, "measurement", time.Now().UTC())

	pruner := NewPruner(store, store, registry, &Config{
		RetentionDays: 365,
		PruneSchedule: "0 3 * * *",
	})

	deleted, err := pruner.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if store.Size("measurements") != 1 {
		t.Errorf("measurements remaining = %d, want 1", store.Size("measurements"))
	}
	if store.Size("audit_entries") != 0 {
		t.Errorf("audit entries remaining = %d, want 0", store.Size("audit_entries"))
	}
}

func TestPrunerDisabledIsNoop(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := fact.NewRegistry()

	seedAged(t, store, registry, "measurement", time.Now().UTC().AddDate(-2, 0, 0))

	pruner := NewPruner(store, store, registry, &Config{RetentionDays: 0})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0 with retention disabled", deleted)
	}
	if store.Size("measurements") != 1 {
		t.Error("disabled pruner removed facts")
	}
}

func TestPrunerArchivesBeforeDelete(t *testing.T) {
	store := storage.NewMemoryStore()
	registry := fact.NewRegistry()
	archiveDir := t.TempDir()

	seedAged(t, store, registry, "measurement", time.Now().UTC().AddDate(0, 0, -400))

	pruner := NewPruner(store, store, registry, &Config{
		RetentionDays:       365,
		PruneSchedule:       "0 3 * * *",
		ArchiveBeforeDelete: true,
		ArchivePath:         archiveDir,
	})

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	var archived []string
	for _, e := range entries {
		archived = append(archived, e.Name())
	}
	if len(archived) != 1 {
		t.Fatalf("archive files = %v, want exactly one", archived)
	}
	if !strings.HasPrefix(archived[0], "measurement-") || !strings.HasSuffix(archived[0], ".json") {
		t.Errorf("archive name = %q, want measurement-{timestamp}.json", archived[0])
	}

	data, err := os.ReadFile(filepath.Join(archiveDir, archived[0]))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if !strings.Contains(string(data), "glucose") {
		t.Errorf("archive does not contain the pruned fact: %s", data)
	}
}

func TestPrunerDefaultConfig(t *testing.T) {
	pruner := NewPruner(storage.NewMemoryStore(), nil, fact.NewRegistry(), nil)
	if pruner.config.PruneSchedule != "0 3 * * *" {
		t.Errorf("PruneSchedule = %q", pruner.config.PruneSchedule)
	}
	if pruner.config.RetentionDays != 0 {
		t.Errorf("RetentionDays = %d, want disabled", pruner.config.RetentionDays)
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	store := storage.NewMemoryStore()
	pruner := NewPruner(store, store, fact.NewRegistry(), &Config{
		RetentionDays: 30,
		PruneSchedule: "0 3 * * *",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !pruner.Scheduler().IsRunning() {
		t.Error("scheduler should be running after Start")
	}
	next := pruner.NextPruning()
	if next == nil || !next.After(time.Now()) {
		t.Errorf("NextPruning = %v, want a future time", next)
	}

	pruner.Stop()
	if pruner.Scheduler().IsRunning() {
		t.Error("scheduler should be stopped after Stop")
	}
}

func TestSchedulerRejectsBadExpression(t *testing.T) {
	store := storage.NewMemoryStore()
	pruner := NewPruner(store, store, fact.NewRegistry(), &Config{
		RetentionDays: 30,
		PruneSchedule: "every day at three",
	})

	if err := pruner.Start(context.Background()); err == nil {
		pruner.Stop()
		t.Fatal("expected error for a malformed cron expression")
	}
}
