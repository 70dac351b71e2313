package missionset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
)

// Root resolution.
const (
	// RootEnv names the environment variable consulted when no root is given.
	RootEnv = "MISSIONSET_ROOT"

	// DefaultRoot is the conventional dataset location relative to the
	// working directory.
	DefaultRoot = "dataset"
)

// ResolveRoot returns explicit when non-empty, then the value of RootEnv,
// then DefaultRoot.
func ResolveRoot(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(RootEnv); env != "" {
		return env
	}
	return DefaultRoot
}

// -----------------------------------------------------------------------------
// Dataset Configuration
// -----------------------------------------------------------------------------

// config holds the resolved configuration for a dataset.
type config struct {
	logger        *slog.Logger
	decompressors []Decompressor
}

// Option configures Open and New.
type Option interface {
	apply(*config) error
}

type loggerOption struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for load and discovery diagnostics.
// Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return &loggerOption{logger: l}
}

func (o *loggerOption) apply(cfg *config) error {
	if o.logger == nil {
		return errors.New("WithLogger: logger must not be nil")
	}
	cfg.logger = o.logger
	return nil
}

type decompressorsOption struct {
	decompressors []Decompressor
}

// WithDecompressors replaces the decompressors tried, in order, when a
// document is absent in plain form. Pass none to disable compressed lookups.
// Default: DefaultDecompressors().
func WithDecompressors(ds ...Decompressor) Option {
	return &decompressorsOption{decompressors: ds}
}

func (o *decompressorsOption) apply(cfg *config) error {
	for i, d := range o.decompressors {
		if d == nil {
			return fmt.Errorf("WithDecompressors: decompressor %d is nil", i)
		}
	}
	cfg.decompressors = append([]Decompressor(nil), o.decompressors...)
	return nil
}

// -----------------------------------------------------------------------------
// Dataset
// -----------------------------------------------------------------------------

// Dataset is the entry point to one dataset root. Construction does no
// dataset I/O; each repository loads on first access and serves cached
// records afterwards. Records returned by a Dataset are shared and must not
// be modified. A Dataset is safe for concurrent use.
type Dataset struct {
	store  Store
	layout Layout
	logger *slog.Logger

	types     *typeIndex
	goals     *goalRepository
	scenarios *scenarioRepository
	tasks     *taskRepository
	metadata  *metadataLoader
}

// Open returns a Dataset reading the directory tree at root. An empty root
// is resolved with ResolveRoot.
func Open(root string, opts ...Option) (*Dataset, error) {
	return New(NewFSFactory(ResolveRoot(root)), opts...)
}

// New returns a Dataset over the store built by factory.
func New(factory StoreFactory, opts ...Option) (*Dataset, error) {
	if factory == nil {
		return nil, errors.New("missionset: store factory is required")
	}

	store, err := factory()
	if err != nil {
		return nil, fmt.Errorf("missionset: store factory failed: %w", err)
	}
	if store == nil {
		return nil, errors.New("missionset: store factory returned nil store")
	}

	cfg := &config{
		logger:        slog.New(slog.DiscardHandler),
		decompressors: DefaultDecompressors(),
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, fmt.Errorf("missionset: %w", err)
		}
	}

	var layout Layout
	docs := &documentReader{store: store, decompressors: cfg.decompressors}
	types := newTypeIndex(store, layout, cfg.logger)

	return &Dataset{
		store:     store,
		layout:    layout,
		logger:    cfg.logger,
		types:     types,
		goals:     newGoalRepository(store, layout, docs, cfg.logger),
		scenarios: newScenarioRepository(store, layout, docs, cfg.logger),
		tasks:     newTaskRepository(store, layout, docs, types, cfg.logger),
		metadata:  newMetadataLoader(layout, docs, cfg.logger),
	}, nil
}

// Root returns where the dataset lives as reported by its store: a
// directory for filesystem datasets, an s3:// URI for S3, or "" otherwise.
func (d *Dataset) Root() string {
	if l, ok := d.store.(Locator); ok {
		return l.Locate("")
	}
	return ""
}

// ListTypes returns the sorted union of type directory names across the
// goals, scenarios, and tasks partitions. A missing partition contributes
// nothing; an unreadable type directory is skipped and reported by Warnings.
func (d *Dataset) ListTypes(ctx context.Context) ([]string, error) {
	return d.types.list(ctx)
}

// Warnings returns what type discovery skipped. It triggers discovery if
// ListTypes has not run yet.
func (d *Dataset) Warnings(ctx context.Context) ([]Warning, error) {
	return d.types.skipped(ctx)
}

// Goals returns the goals of typ in file order.
func (d *Dataset) Goals(ctx context.Context, typ string) ([]*Goal, error) {
	return d.goals.goals(ctx, typ)
}

// Goal returns one goal of typ by id.
func (d *Dataset) Goal(ctx context.Context, typ, id string) (*Goal, error) {
	return d.goals.goal(ctx, typ, id)
}

// Scenarios returns the sorted scenario ids of typ.
func (d *Dataset) Scenarios(ctx context.Context, typ string) ([]string, error) {
	return d.scenarios.list(ctx, typ)
}

// Scenario returns the merged scenario record for (typ, id).
func (d *Dataset) Scenario(ctx context.Context, typ, id string) (*Scenario, error) {
	return d.scenarios.get(ctx, typ, id)
}

// Tasks returns every task across all types, ordered by type and then by
// file name. The first call scans the tasks partition; scenario and goal
// references are not resolved.
func (d *Dataset) Tasks(ctx context.Context) ([]*Task, error) {
	return d.tasks.all(ctx)
}

// Task returns the first task of typ pairing scenarioID with goalID.
func (d *Dataset) Task(ctx context.Context, typ, scenarioID, goalID string) (*Task, error) {
	return d.tasks.find(ctx, typ, scenarioID, goalID)
}

// TaskByID returns the task of typ with the given id.
func (d *Dataset) TaskByID(ctx context.Context, typ, id string) (*Task, error) {
	return d.tasks.byID(ctx, typ, id)
}

// SampleTasks returns n distinct tasks chosen uniformly at random. A nil rng
// uses the global source. It fails with ErrInsufficientTasks when n exceeds
// the number of tasks.
func (d *Dataset) SampleTasks(ctx context.Context, n int, rng *rand.Rand) ([]*Task, error) {
	return d.tasks.sample(ctx, n, rng)
}

// ResolveScenario dereferences the task's scenario.
func (d *Dataset) ResolveScenario(ctx context.Context, t *Task) (*Scenario, error) {
	return d.scenarios.get(ctx, t.Scenario.Type, t.Scenario.ID)
}

// ResolveGoals dereferences the task's goals in reference order. It fails on
// the first goal that does not resolve.
func (d *Dataset) ResolveGoals(ctx context.Context, t *Task) ([]*Goal, error) {
	goals := make([]*Goal, 0, len(t.Goals))
	for _, ref := range t.Goals {
		g, err := d.goals.goal(ctx, ref.Type, ref.ID)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

// Metadata returns the dataset metadata, loaded once.
func (d *Dataset) Metadata(ctx context.Context) (*Metadata, error) {
	return d.metadata.get(ctx)
}
