package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/justapithecus/missionset/missionset"
)

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(newApp(stdout, stderr))
	cmd.SetArgs(args)
	return exitCode(stderr, cmd.ExecuteContext(ctx))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "missionset",
		Short: "Inspect and export mission datasets",
		Long: `missionset reads a mission dataset of goals, scenarios, and tasks
partitioned by mission type.

The dataset root is taken from --root, then $` + missionset.RootEnv + `, then "` + missionset.DefaultRoot + `".
Roots of the form s3://bucket/prefix are read from S3.`,
		Args:              usageArgs(cobra.NoArgs),
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(flagError)

	pf := root.PersistentFlags()
	pf.StringVar(&a.root, "root", "", "dataset root directory or s3://bucket/prefix")
	pf.StringVar(&a.logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format (text, json)")
	pf.StringVarP(&a.output, "output", "o", "text", "output format (text, json, yaml)")
	pf.StringVar(&a.s3Region, "s3-region", "", "S3 region (default $"+envRegion+")")
	pf.StringVar(&a.s3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL (default $"+envS3Endpoint+")")

	root.AddCommand(
		newTypesCmd(a),
		newMetadataCmd(a),
		newGoalsCmd(a),
		newScenariosCmd(a),
		newScenarioCmd(a),
		newTasksCmd(a),
		newTaskCmd(a),
		newResolveCmd(a),
		newSampleCmd(a),
		newExportCmd(a),
	)
	for _, c := range root.Commands() {
		c.SetFlagErrorFunc(flagError)
	}
	return root
}
