package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"carelog/factstore/pkg/fact"
	"carelog/factstore/pkg/fact/render"
	"carelog/factstore/pkg/fact/storage"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain facts.
	// 0 means keep facts forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string

	// ArchiveBeforeDelete enables archiving facts before deletion.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory to store archived facts.
	ArchivePath string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays:       0,
		PruneSchedule:       "0 3 * * *",
		ArchiveBeforeDelete: false,
		ArchivePath:         "data/archives/",
	}
}

// AgeStore deletes facts created before a cutoff. Both bundled backends
// implement it.
type AgeStore interface {
	DeleteOlderThan(ctx context.Context, table string, cutoff time.Time) (int64, error)
}

// Pruner enforces age-based retention on every registered record type.
type Pruner struct {
	store     AgeStore
	backend   storage.Backend
	registry  *fact.Registry
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a new retention pruner. backend is only consulted for
// archiving and may equal store.
func NewPruner(store AgeStore, backend storage.Backend, registry *fact.Registry, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	pruner := &Pruner{
		store:    store,
		backend:  backend,
		registry: registry,
		config:   config,
		logger:   slog.Default().With("component", "fact.retention"),
	}
	pruner.scheduler = NewScheduler(pruner)
	return pruner
}

// Scheduler returns the pruner's cron scheduler.
func (p *Pruner) Scheduler() *Scheduler {
	return p.scheduler
}

// Start begins scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the next scheduled pruning time, or nil when the
// scheduler is not running.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}

// Prune deletes facts older than the retention period across all
// registered record types, archiving them first when configured. Returns
// the total number of facts deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -p.config.RetentionDays)

	var totalDeleted int64
	for _, schema := range p.registry.Schemas() {
		if p.config.ArchiveBeforeDelete {
			if err := p.archive(ctx, schema, cutoff); err != nil {
				return totalDeleted, fmt.Errorf("archive %s failed: %w", schema.Type, err)
			}
		}

		deleted, err := p.store.DeleteOlderThan(ctx, schema.Table, cutoff)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune %s failed: %w", schema.Type, err)
		}
		totalDeleted += deleted

		if deleted > 0 {
			p.logger.Info("pruned facts",
				"record_type", schema.Type,
				"deleted", deleted,
				"cutoff", cutoff,
			)
		}
	}
	return totalDeleted, nil
}

// archive writes the facts about to be deleted to a timestamped JSON file
// under the archive path.
func (p *Pruner) archive(ctx context.Context, schema *fact.Schema, cutoff time.Time) error {
	rel := storage.NewRelation(schema.Table).
		Where(storage.LTE(storage.CreatedColumn, cutoff))
	facts, err := p.backend.FetchFacts(ctx, schema, rel)
	if err != nil {
		return err
	}
	if len(facts) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return err
	}

	name := fmt.Sprintf("%s-%s.json", schema.Type, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(p.config.ArchivePath, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	report := &render.Report{
		Schema:     schema,
		Set:        &fact.ResultSet{Shape: fact.ShapeFacts, Facts: facts},
		TotalCount: len(facts),
		Options:    &fact.QueryOptions{},
	}
	if err := render.NewJSONRenderer(false).Render(ctx, report, f); err != nil {
		return err
	}

	p.logger.Info("archived facts before deletion",
		"record_type", schema.Type,
		"count", len(facts),
		"path", path,
	)
	return nil
}
