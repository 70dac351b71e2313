package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justapithecus/missionset/missionset"
)

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List mission types",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := a.dataset(cmd.Context())
			if err != nil {
				return err
			}
			types, err := ds.ListTypes(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(types, func(w io.Writer) error { return lines(w, types) })
		},
	}
}

func newMetadataCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Show dataset metadata",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := a.dataset(cmd.Context())
			if err != nil {
				return err
			}
			meta, err := ds.Metadata(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(meta, func(w io.Writer) error {
				rows := [][]string{
					{"name", meta.Name},
					{"version", meta.Version},
					{"author", meta.Author},
					{"license", meta.License},
					{"created", meta.CreatedDate},
					{"description", meta.Description},
				}
				keys := make([]string, 0, len(meta.Extra))
				for k := range meta.Extra {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					rows = append(rows, []string{k, fmt.Sprint(meta.Extra[k])})
				}
				return table(w, []string{"field", "value"}, rows)
			})
		},
	}
}

func newGoalsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "goals TYPE",
		Short: "List the goals of a mission type",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.dataset(cmd.Context())
			if err != nil {
				return err
			}
			goals, err := ds.Goals(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(goals, func(w io.Writer) error {
				rows := make([][]string, 0, len(goals))
				for _, g := range goals {
					rows = append(rows, []string{g.ID, string(g.Quantifier), describeSelector(&g.Target), describeCondition(g.SuccessCondition)})
				}
				return table(w, []string{"id", "quantifier", "target", "condition"}, rows)
			})
		},
	}
}

func newScenariosCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios TYPE",
		Short: "List the scenario ids of a mission type",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.dataset(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := ds.Scenarios(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(ids, func(w io.Writer) error { return lines(w, ids) })
		},
	}
}

func newScenarioCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario TYPE ID",
		Short: "Show one scenario",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.dataset(cmd.Context())
			if err != nil {
				return err
			}
			s, err := ds.Scenario(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.emit(s, func(w io.Writer) error { return writeScenario(w, s) })
		},
	}
}

func newTasksCmd(a *app) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List every task, optionally of one type",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := a.dataset(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := ds.Tasks(cmd.Context())
			if err != nil {
				return err
			}
			if typ != "" {
				filtered := tasks[:0]
				for _, t := range tasks {
					if t.Type == typ {
						filtered = append(filtered, t)
					}
				}
				tasks = filtered
			}
			return a.emit(tasks, func(w io.Writer) error { return taskTable(w, tasks) })
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only list tasks of this mission type")
	return cmd
}

func newTaskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "task TYPE SCENARIO GOAL",
		Short: "Find the first task of a type using a scenario and goal",
		Args:  usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.dataset(cmd.Context())
			if err != nil {
				return err
			}
			t, err := ds.Task(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return a.emit(t, func(w io.Writer) error { return taskTable(w, []*missionset.Task{t}) })
		},
	}
}

// resolved is a task with its references loaded.
type resolved struct {
	Task     *missionset.Task     `json:"task" yaml:"task"`
	Scenario *missionset.Scenario `json:"scenario" yaml:"scenario"`
	Goals    []*missionset.Goal   `json:"goals" yaml:"goals"`
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve TYPE TASK_ID",
		Short: "Show a task with its scenario and goals resolved",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ds, err := a.dataset(ctx)
			if err != nil {
				return err
			}
			t, err := ds.TaskByID(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			s, err := ds.ResolveScenario(ctx, t)
			if err != nil {
				return err
			}
			goals, err := ds.ResolveGoals(ctx, t)
			if err != nil {
				return err
			}
			out := resolved{Task: t, Scenario: s, Goals: goals}
			return a.emit(out, func(w io.Writer) error {
				if err := taskTable(w, []*missionset.Task{t}); err != nil {
					return err
				}
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
				if err := writeScenario(w, s); err != nil {
					return err
				}
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
				rows := make([][]string, 0, len(goals))
				for _, g := range goals {
					rows = append(rows, []string{g.ID, string(g.Quantifier), describeSelector(&g.Target), describeCondition(g.SuccessCondition)})
				}
				return table(w, []string{"goal", "quantifier", "target", "condition"}, rows)
			})
		},
	}
}

func newSampleCmd(a *app) *cobra.Command {
	var seed uint64
	cmd := &cobra.Command{
		Use:   "sample N",
		Short: "Draw N distinct tasks at random",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return usagef("sample size must be a non-negative integer, got %q", args[0])
			}
			var rng *rand.Rand
			if cmd.Flags().Changed("seed") {
				rng = rand.New(rand.NewPCG(seed, seed))
			}
			ds, err := a.dataset(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := ds.SampleTasks(cmd.Context(), n, rng)
			if err != nil {
				return err
			}
			return a.emit(tasks, func(w io.Writer) error { return taskTable(w, tasks) })
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for a reproducible sample")
	return cmd
}

// -----------------------------------------------------------------------------
// Text rendering
// -----------------------------------------------------------------------------

func taskTable(w io.Writer, tasks []*missionset.Task) error {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		goals := make([]string, 0, len(t.Goals))
		for _, g := range t.Goals {
			goals = append(goals, g.ID)
		}
		rows = append(rows, []string{t.Type, t.ID, t.Scenario.ID, strings.Join(goals, ","), t.Source})
	}
	return table(w, []string{"type", "task", "scenario", "goals", "source"}, rows)
}

func writeScenario(w io.Writer, s *missionset.Scenario) error {
	if _, err := fmt.Fprintf(w, "scenario %s/%s\n", s.Type, s.ID); err != nil {
		return err
	}
	image := s.DashboardImagePath
	if !s.HasDashboardImage {
		image += " (missing)"
	}
	if _, err := fmt.Fprintf(w, "dashboard: %s\n", image); err != nil {
		return err
	}
	names := make([]string, 0, len(s.EnvironmentCounts))
	for name := range s.EnvironmentCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(s.EnvironmentCounts[name])})
	}
	return table(w, []string{"entity", "count"}, rows)
}

// describeSelector renders a selector as category/type[attr=value ...].
func describeSelector(s *missionset.Selector) string {
	var b strings.Builder
	b.WriteString(s.Category)
	b.WriteByte('/')
	b.WriteString(s.Type)
	names := s.AttributeNames()
	if len(names) == 0 {
		return b.String()
	}
	b.WriteByte('[')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(' ')
		}
		v, _ := s.Attribute(name)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(describeValue(v))
	}
	b.WriteByte(']')
	return b.String()
}

func describeValue(v missionset.Value) string {
	if v.IsSelector() {
		return describeSelector(v.Selector())
	}
	s, err := json.MarshalToString(v.Literal())
	if err != nil {
		return fmt.Sprint(v.Literal())
	}
	return s
}

func describeCondition(c missionset.Condition) string {
	return c.Field + " " + c.Operator + " " + describeValue(c.Value)
}
