package missionset

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"path"
	"sort"
	"strconv"
	"sync"
)

// ScenarioRef is a lazy handle on a scenario.
type ScenarioRef struct {
	Type string `json:"type" yaml:"type"`
	ID   string `json:"scenario_id" yaml:"scenario_id"`
}

// GoalRef is a lazy handle on a goal.
type GoalRef struct {
	Type string `json:"type" yaml:"type"`
	ID   string `json:"goal_id" yaml:"goal_id"`
}

// Task pairs one scenario with one or more goals. References are resolved
// on demand through Dataset.ResolveScenario and Dataset.ResolveGoals, so a
// task with a dangling reference still enumerates.
type Task struct {
	ID       string      `json:"task_id" yaml:"task_id"`
	Type     string      `json:"type" yaml:"type"`
	Scenario ScenarioRef `json:"scenario" yaml:"scenario"`
	Goals    []GoalRef   `json:"goals" yaml:"goals"`

	// Source is the store key the task was read from.
	Source string `json:"source" yaml:"source"`

	// Attributes holds the remaining top-level fields (robots, environment
	// overrides, ...) uninterpreted.
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// HasGoal reports whether t references goal id.
func (t *Task) HasGoal(id string) bool {
	for _, g := range t.Goals {
		if g.ID == id {
			return true
		}
	}
	return false
}

// taskFields are the top-level keys interpreted by parseTask.
var taskFields = map[string]bool{
	"task_id": true, "id": true, "type": true,
	"scenario": true, "scenario_id": true,
	"goal": true, "goals": true,
}

// -----------------------------------------------------------------------------
// Repository
// -----------------------------------------------------------------------------

// taskRepository performs the single full scan of tasks/<type>/ for every
// discovered type and caches the aggregate.
type taskRepository struct {
	store  Store
	layout Layout
	docs   *documentReader
	types  *typeIndex
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	tasks  []*Task
}

func newTaskRepository(store Store, layout Layout, docs *documentReader, types *typeIndex, logger *slog.Logger) *taskRepository {
	return &taskRepository{store: store, layout: layout, docs: docs, types: types, logger: logger}
}

// all returns every task ordered by type then file name. The slice is a
// fresh copy over shared records.
func (r *taskRepository) all(ctx context.Context) ([]*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		tasks, err := r.scan(ctx)
		if err != nil {
			return nil, err
		}
		r.tasks = tasks
		r.loaded = true
	}
	return append([]*Task(nil), r.tasks...), nil
}

func (r *taskRepository) scan(ctx context.Context) ([]*Task, error) {
	types, err := r.types.list(ctx)
	if err != nil {
		return nil, err
	}

	var tasks []*Task
	for _, typ := range types {
		dir, err := r.layout.TypeDir(CategoryTasks, typ)
		if err != nil {
			return nil, err
		}
		entries, err := r.store.ReadDir(ctx, dir)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, &PathError{Path: dir, Err: err}
		}

		sources := make(map[string]string)
		for _, f := range r.taskFiles(entries) {
			key := path.Join(dir, f.name)
			doc, source, err := r.docs.read(ctx, key)
			if err != nil {
				return nil, err
			}
			t, err := parseTask(source, typ, f.id, doc)
			if err != nil {
				return nil, err
			}
			if first, dup := sources[t.ID]; dup {
				return nil, &SchemaError{
					Path:    source,
					Index:   -1,
					Field:   "task_id",
					Message: fmt.Sprintf("duplicate task id %q (first defined in %s)", t.ID, first),
				}
			}
			sources[t.ID] = source
			tasks = append(tasks, t)
		}
	}

	r.logger.Debug("scanned tasks", "types", len(types), "count", len(tasks))
	return tasks, nil
}

type taskFile struct {
	name string
	id   string
}

// taskFiles selects task documents from a directory listing in file-name
// order. When a task is stored both plain and compressed, the plain file
// wins.
func (r *taskRepository) taskFiles(entries []Entry) []taskFile {
	chosen := make(map[string]taskFile)
	plain := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		id, compressed, ok := taskIDFromName(e.Name, r.docs.decompressors)
		if !ok {
			continue
		}
		if prev, dup := chosen[id]; dup {
			if plain[id] || (compressed && prev.name < e.Name) {
				continue
			}
		}
		chosen[id] = taskFile{name: e.Name, id: id}
		plain[id] = !compressed
	}

	files := make([]taskFile, 0, len(chosen))
	for _, f := range chosen {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files
}

// find returns the first task of typ pairing scenarioID with goalID.
func (r *taskRepository) find(ctx context.Context, typ, scenarioID, goalID string) (*Task, error) {
	tasks, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Type == typ && t.Scenario.ID == scenarioID && t.HasGoal(goalID) {
			return t, nil
		}
	}
	dir, _ := r.layout.TypeDir(CategoryTasks, typ)
	return nil, &PathError{
		Path: fmt.Sprintf("%s[scenario=%s,goal=%s]", dir, scenarioID, goalID),
		Err:  ErrNotFound,
	}
}

// byID returns the task of typ with the given id.
func (r *taskRepository) byID(ctx context.Context, typ, id string) (*Task, error) {
	tasks, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Type == typ && t.ID == id {
			return t, nil
		}
	}
	key, err := r.layout.TaskKey(typ, id)
	if err != nil {
		return nil, err
	}
	return nil, &PathError{Path: key, Err: ErrNotFound}
}

// sample returns n distinct tasks chosen uniformly with rng, or with the
// global source when rng is nil.
func (r *taskRepository) sample(ctx context.Context, n int, rng *rand.Rand) ([]*Task, error) {
	tasks, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []*Task{}, nil
	}
	if n > len(tasks) {
		return nil, fmt.Errorf("missionset: sample of %d from %d tasks: %w", n, len(tasks), ErrInsufficientTasks)
	}

	var perm []int
	if rng != nil {
		perm = rng.Perm(len(tasks))
	} else {
		perm = rand.Perm(len(tasks))
	}
	out := make([]*Task, n)
	for i := range out {
		out[i] = tasks[perm[i]]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

// parseTask validates a decoded task document found under tasks/<typ>/.
// fileID is the file name without extensions and serves as the default id.
func parseTask(path, typ, fileID string, doc any) (*Task, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &SchemaError{Path: path, Index: -1, Message: "must be an object, got " + jsonKind(doc)}
	}

	t := &Task{ID: fileID, Type: typ, Source: path}

	for _, field := range []string{"task_id", "id"} {
		raw, ok := m[field]
		if !ok {
			continue
		}
		id, fe := idFrom(field, raw)
		if fe != nil {
			return nil, fe.at(path, -1)
		}
		t.ID = id
		break
	}

	if raw, ok := m["type"]; ok {
		declared, isString := raw.(string)
		if !isString {
			return nil, wrongType("type", "a string", raw).at(path, -1)
		}
		if declared != typ {
			return nil, &SchemaError{Path: path, Index: -1, Field: "type", Message: fmt.Sprintf("%q does not match directory type %q", declared, typ)}
		}
	}

	scenarioField := "scenario"
	raw, ok := m[scenarioField]
	if !ok {
		scenarioField = "scenario_id"
		raw, ok = m[scenarioField]
	}
	if !ok {
		return nil, missingField("scenario").at(path, -1)
	}
	scenarioID, fe := idFrom(scenarioField, raw)
	if fe != nil {
		return nil, fe.at(path, -1)
	}
	t.Scenario = ScenarioRef{Type: typ, ID: scenarioID}

	seen := make(map[string]bool)
	addGoal := func(field string, raw any) *fieldError {
		id, fe := goalIDFrom(field, raw)
		if fe != nil {
			return fe
		}
		if !seen[id] {
			seen[id] = true
			t.Goals = append(t.Goals, GoalRef{Type: typ, ID: id})
		}
		return nil
	}
	if raw, ok := m["goal"]; ok {
		if fe := addGoal("goal", raw); fe != nil {
			return nil, fe.at(path, -1)
		}
	}
	if raw, ok := m["goals"]; ok {
		items, isArray := raw.([]any)
		if !isArray {
			return nil, wrongType("goals", "an array", raw).at(path, -1)
		}
		for i, item := range items {
			if fe := addGoal(fmt.Sprintf("goals[%d]", i), item); fe != nil {
				return nil, fe.at(path, -1)
			}
		}
	}
	if len(t.Goals) == 0 {
		return nil, &SchemaError{Path: path, Index: -1, Field: "goals", Message: "at least one goal reference is required"}
	}

	for _, key := range sortedKeys(m) {
		if taskFields[key] {
			continue
		}
		if t.Attributes == nil {
			t.Attributes = make(map[string]any)
		}
		t.Attributes[key] = m[key]
	}
	return t, nil
}

// goalIDFrom accepts a bare goal id or an embedded goal object carrying one.
func goalIDFrom(field string, raw any) (string, *fieldError) {
	if obj, ok := raw.(map[string]any); ok {
		idRaw, ok := obj["id"]
		if !ok {
			return "", missingField(field + ".id")
		}
		return idFrom(field+".id", idRaw)
	}
	return idFrom(field, raw)
}

// maxExactInt is the largest integer a JSON number decodes to exactly.
const maxExactInt = 1 << 53

// idFrom accepts non-empty strings and integral numbers as identifiers.
func idFrom(field string, raw any) (string, *fieldError) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", &fieldError{field: field, message: "must not be empty"}
		}
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return "", &fieldError{field: field, message: fmt.Sprintf("must be a string or integer, got %v", v)}
		}
		if math.Abs(v) > maxExactInt {
			return "", &fieldError{field: field, message: fmt.Sprintf("integer %v is too large to be exact; quote it as a string", v)}
		}
		return strconv.FormatInt(int64(v), 10), nil
	default:
		return "", wrongType(field, "a string or integer", raw)
	}
}
