package missionset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
)

// Scenario is one concrete environment configuration within a type: entity
// counts, an opaque map/server configuration, and a reference to the
// rendered dashboard image.
type Scenario struct {
	Type string `json:"type" yaml:"type"`
	ID   string `json:"scenario_id" yaml:"scenario_id"`

	// EnvironmentCounts maps entity type name to count.
	EnvironmentCounts map[string]int `json:"environment_counts" yaml:"environment_counts"`

	// CountsByCategory keeps the grouping of documents written in the nested
	// {"<category>": {"<type>": n}} form. Nil for flat documents.
	CountsByCategory map[string]map[string]int `json:"counts_by_category,omitempty" yaml:"counts_by_category,omitempty"`

	// MapServerConfig is passed through uninterpreted.
	MapServerConfig map[string]any `json:"map_server_config" yaml:"map_server_config"`

	// DashboardImage is the store key of the dashboard image and
	// DashboardImagePath its location as reported by the store. Both are set
	// whether or not the image exists; the loader never reads it.
	DashboardImage     string `json:"dashboard_image" yaml:"dashboard_image"`
	DashboardImagePath string `json:"dashboard_image_path" yaml:"dashboard_image_path"`
	HasDashboardImage  bool   `json:"has_dashboard_image" yaml:"has_dashboard_image"`
}

type scenarioKey struct {
	typ string
	id  string
}

// scenarioRepository lists scenario directories and merges their documents
// into Scenario records, caching both per type and per (type, id).
type scenarioRepository struct {
	store  Store
	layout Layout
	docs   *documentReader
	logger *slog.Logger

	mu      sync.Mutex
	ids     map[string][]string
	records map[scenarioKey]*Scenario
}

func newScenarioRepository(store Store, layout Layout, docs *documentReader, logger *slog.Logger) *scenarioRepository {
	return &scenarioRepository{
		store:   store,
		layout:  layout,
		docs:    docs,
		logger:  logger,
		ids:     make(map[string][]string),
		records: make(map[scenarioKey]*Scenario),
	}
}

// list returns the sorted scenario ids of typ.
func (r *scenarioRepository) list(ctx context.Context, typ string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ids, ok := r.ids[typ]; ok {
		return append([]string(nil), ids...), nil
	}

	dir, err := r.layout.TypeDir(CategoryScenarios, typ)
	if err != nil {
		return nil, err
	}
	entries, err := r.store.ReadDir(ctx, dir)
	if err != nil {
		return nil, &PathError{Path: dir, Err: err}
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir {
			ids = append(ids, e.Name)
		}
	}
	sort.Strings(ids)

	r.ids[typ] = ids
	r.logger.Debug("listed scenarios", "type", typ, "count", len(ids))
	return append([]string(nil), ids...), nil
}

// get loads and merges one scenario.
func (r *scenarioRepository) get(ctx context.Context, typ, id string) (*Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := scenarioKey{typ: typ, id: id}
	if s, ok := r.records[k]; ok {
		return s, nil
	}

	dir, err := r.layout.ScenarioDir(typ, id)
	if err != nil {
		return nil, err
	}
	if err := r.layout.RequireDir(ctx, r.store, dir); err != nil {
		return nil, err
	}

	countsKey, _ := r.layout.ScenarioFileKey(typ, id, EnvironmentCountsFile)
	configKey, _ := r.layout.ScenarioFileKey(typ, id, MapServerConfigFile)
	imageKey, _ := r.layout.ScenarioFileKey(typ, id, DashboardImageFile)

	countsDoc, countsSource, err := r.docs.read(ctx, countsKey)
	if err != nil {
		return nil, err
	}
	configDoc, configSource, err := r.docs.read(ctx, configKey)
	if err != nil {
		return nil, err
	}

	counts, byCategory, err := parseCounts(countsSource, countsDoc)
	if err != nil {
		return nil, err
	}
	config, ok := configDoc.(map[string]any)
	if !ok {
		return nil, &SchemaError{Path: configSource, Index: -1, Message: "must be an object, got " + jsonKind(configDoc)}
	}

	hasImage, err := r.store.Exists(ctx, imageKey)
	if err != nil {
		return nil, &PathError{Path: imageKey, Err: err}
	}

	s := &Scenario{
		Type:               typ,
		ID:                 id,
		EnvironmentCounts:  counts,
		CountsByCategory:   byCategory,
		MapServerConfig:    config,
		DashboardImage:     imageKey,
		DashboardImagePath: locate(r.store, imageKey),
		HasDashboardImage:  hasImage,
	}
	r.records[k] = s
	r.logger.Debug("loaded scenario", "type", typ, "scenario", id, "entity_types", len(counts), "dashboard", hasImage)
	return s, nil
}

// parseCounts accepts either a flat {"<type>": n} document or one grouped by
// category, {"<category>": {"<type>": n}}. Both flatten into a single map
// keyed by entity type; a type appearing twice is a schema violation.
func parseCounts(path string, doc any) (map[string]int, map[string]map[string]int, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, nil, &SchemaError{Path: path, Index: -1, Message: "must be an object, got " + jsonKind(doc)}
	}

	counts := make(map[string]int, len(m))
	var byCategory map[string]map[string]int

	add := func(field, typ string, raw any) error {
		n, fe := countFrom(field, raw)
		if fe != nil {
			return fe.at(path, -1)
		}
		if _, dup := counts[typ]; dup {
			return &SchemaError{Path: path, Index: -1, Field: field, Message: fmt.Sprintf("duplicate entity type %q", typ)}
		}
		counts[typ] = n
		return nil
	}

	for _, name := range sortedKeys(m) {
		group, nested := m[name].(map[string]any)
		if !nested {
			if err := add(name, name, m[name]); err != nil {
				return nil, nil, err
			}
			continue
		}
		if byCategory == nil {
			byCategory = make(map[string]map[string]int)
		}
		inner := make(map[string]int, len(group))
		for _, typ := range sortedKeys(group) {
			if err := add(name+"."+typ, typ, group[typ]); err != nil {
				return nil, nil, err
			}
			inner[typ] = counts[typ]
		}
		byCategory[name] = inner
	}
	return counts, byCategory, nil
}

func countFrom(field string, raw any) (int, *fieldError) {
	f, ok := raw.(float64)
	if !ok {
		return 0, wrongType(field, "an integer count", raw)
	}
	if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, &fieldError{field: field, message: fmt.Sprintf("must be a non-negative integer, got %v", f)}
	}
	return int(f), nil
}

// isNotFound reports whether err is a missing-path condition.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
