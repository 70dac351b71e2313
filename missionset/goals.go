package missionset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Quantifier says how many matching entities must satisfy a goal's success
// condition.
type Quantifier string

// Quantifier values.
const (
	// Exists requires at least one matching entity to satisfy the condition.
	Exists Quantifier = "EXISTS"
	// ForAll requires every matching entity to satisfy the condition.
	ForAll Quantifier = "FORALL"
)

// Valid reports whether q is a known quantifier.
func (q Quantifier) Valid() bool { return q == Exists || q == ForAll }

// Goal is a declarative success predicate over entity state.
type Goal struct {
	ID               string     `json:"id" yaml:"id"`
	Description      string     `json:"description" yaml:"description"`
	Target           Selector   `json:"target" yaml:"target"`
	SuccessCondition Condition  `json:"success_condition" yaml:"success_condition"`
	Quantifier       Quantifier `json:"quantifier" yaml:"quantifier"`
}

// Condition compares one entity field against a value, which may be a
// literal or a nested entity reference.
type Condition struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    Value  `json:"value" yaml:"value"`
}

// -----------------------------------------------------------------------------
// Repository
// -----------------------------------------------------------------------------

// goalSet is the cached, validated goal list for one type.
type goalSet struct {
	key   string
	goals []*Goal
	byID  map[string]*Goal
}

// goalRepository loads goals/<type>/goals.json on first request per type.
type goalRepository struct {
	store  Store
	layout Layout
	docs   *documentReader
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*goalSet
}

func newGoalRepository(store Store, layout Layout, docs *documentReader, logger *slog.Logger) *goalRepository {
	return &goalRepository{
		store:  store,
		layout: layout,
		docs:   docs,
		logger: logger,
		cache:  make(map[string]*goalSet),
	}
}

// goals returns the ordered goals of typ. The slice is a fresh copy; the
// goals it points to are shared with the cache.
func (r *goalRepository) goals(ctx context.Context, typ string) ([]*Goal, error) {
	set, err := r.load(ctx, typ)
	if err != nil {
		return nil, err
	}
	out := make([]*Goal, len(set.goals))
	copy(out, set.goals)
	return out, nil
}

// goal returns a single goal of typ by id.
func (r *goalRepository) goal(ctx context.Context, typ, id string) (*Goal, error) {
	set, err := r.load(ctx, typ)
	if err != nil {
		return nil, err
	}
	g, ok := set.byID[id]
	if !ok {
		return nil, &PathError{Path: set.key + "#" + id, Err: ErrNotFound}
	}
	return g, nil
}

func (r *goalRepository) load(ctx context.Context, typ string) (*goalSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.cache[typ]; ok {
		return set, nil
	}

	key, err := r.layout.GoalsKey(typ)
	if err != nil {
		return nil, err
	}
	doc, source, err := r.docs.read(ctx, key)
	if err != nil {
		return nil, err
	}
	goals, err := parseGoals(source, doc)
	if err != nil {
		return nil, err
	}

	set := &goalSet{key: key, goals: goals, byID: make(map[string]*Goal, len(goals))}
	for _, g := range goals {
		set.byID[g.ID] = g
	}
	r.cache[typ] = set
	r.logger.Debug("loaded goals", "type", typ, "path", source, "count", len(goals))
	return set, nil
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

// parseGoals validates a decoded goals document. Elements keep file order and
// ids must be unique.
func parseGoals(path string, doc any) ([]*Goal, error) {
	items, ok := doc.([]any)
	if !ok {
		return nil, &SchemaError{Path: path, Index: -1, Message: "must be an array of goals, got " + jsonKind(doc)}
	}

	goals := make([]*Goal, 0, len(items))
	firstSeen := make(map[string]int, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, wrongType("", "an object", item).at(path, i)
		}
		g, fe := goalFrom(m)
		if fe != nil {
			return nil, fe.at(path, i)
		}
		if j, dup := firstSeen[g.ID]; dup {
			return nil, &SchemaError{
				Path:    path,
				Index:   i,
				Field:   "id",
				Message: fmt.Sprintf("duplicate id %q (first used by element %d)", g.ID, j),
			}
		}
		firstSeen[g.ID] = i
		goals = append(goals, g)
	}
	return goals, nil
}

func goalFrom(m map[string]any) (*Goal, *fieldError) {
	for _, field := range []string{"id", "target", "success_condition", "quantifier"} {
		if _, ok := m[field]; !ok {
			return nil, missingField(field)
		}
	}

	g := &Goal{}

	id, ok := m["id"].(string)
	if !ok {
		return nil, wrongType("id", "a string", m["id"])
	}
	if id == "" {
		return nil, &fieldError{field: "id", message: "must not be empty"}
	}
	g.ID = id

	if raw, ok := m["description"]; ok && raw != nil {
		desc, ok := raw.(string)
		if !ok {
			return nil, wrongType("description", "a string", raw)
		}
		g.Description = desc
	}

	target, ok := m["target"].(map[string]any)
	if !ok {
		return nil, wrongType("target", "an object", m["target"])
	}
	sel, fe := selectorFrom("target", target, true)
	if fe != nil {
		return nil, fe
	}
	g.Target = *sel

	cond, ok := m["success_condition"].(map[string]any)
	if !ok {
		return nil, wrongType("success_condition", "an object", m["success_condition"])
	}
	c, fe := conditionFrom(cond)
	if fe != nil {
		return nil, fe
	}
	g.SuccessCondition = c

	q, ok := m["quantifier"].(string)
	if !ok {
		return nil, wrongType("quantifier", "a string", m["quantifier"])
	}
	g.Quantifier = Quantifier(q)
	if !g.Quantifier.Valid() {
		return nil, &fieldError{field: "quantifier", message: fmt.Sprintf("must be %s or %s, got %q", Exists, ForAll, q)}
	}

	return g, nil
}

func conditionFrom(m map[string]any) (Condition, *fieldError) {
	var c Condition
	for _, field := range []string{"field", "operator"} {
		raw, ok := m[field]
		if !ok {
			return c, missingField("success_condition." + field)
		}
		str, ok := raw.(string)
		if !ok {
			return c, wrongType("success_condition."+field, "a string", raw)
		}
		if str == "" {
			return c, &fieldError{field: "success_condition." + field, message: "must not be empty"}
		}
		if field == "field" {
			c.Field = str
		} else {
			c.Operator = str
		}
	}
	if raw, ok := m["value"]; ok {
		v, fe := valueFrom("success_condition.value", raw)
		if fe != nil {
			return c, fe
		}
		c.Value = v
	}
	return c, nil
}
