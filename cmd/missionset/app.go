package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justapithecus/missionset/missionset"
	"github.com/justapithecus/missionset/missionset/s3"
)

// Environment variables read by the CLI in addition to missionset.RootEnv.
const (
	envS3Endpoint   = "MISSIONSET_S3_ENDPOINT"
	envRegion       = "AWS_REGION"
	envAccessKey    = "AWS_ACCESS_KEY_ID"
	envSecretKey    = "AWS_SECRET_ACCESS_KEY"
	s3URIScheme     = "s3://"
	defaultLogLevel = "warn"
)

// app carries the global flags and the lazily opened dataset shared by all
// subcommands.
type app struct {
	root       string
	logLevel   string
	logFormat  string
	output     string
	s3Region   string
	s3Endpoint string

	stdout io.Writer
	stderr io.Writer

	// newS3Client is replaced in tests.
	newS3Client func(ctx context.Context, cfg s3.ClientConfig) (s3.API, error)

	logger *slog.Logger
	ds     *missionset.Dataset
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		newS3Client: func(ctx context.Context, cfg s3.ClientConfig) (s3.API, error) {
			return s3.NewClient(ctx, cfg)
		},
	}
}

// setup validates global flags and builds the logger. It runs before every
// subcommand.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(a.logLevel, a.logFormat, a.stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	if _, err := newPrinter(a.output, a.stdout); err != nil {
		return err
	}
	if !cmd.Flags().Changed("s3-endpoint") && a.s3Endpoint == "" {
		a.s3Endpoint = os.Getenv(envS3Endpoint)
	}
	if !cmd.Flags().Changed("s3-region") && a.s3Region == "" {
		a.s3Region = os.Getenv(envRegion)
	}
	return nil
}

// dataset opens the dataset on first use. Roots of the form
// s3://bucket/prefix are read through the S3 store.
func (a *app) dataset(ctx context.Context) (*missionset.Dataset, error) {
	if a.ds != nil {
		return a.ds, nil
	}
	root := missionset.ResolveRoot(a.root)
	opts := []missionset.Option{missionset.WithLogger(a.logger)}

	var (
		ds  *missionset.Dataset
		err error
	)
	if strings.HasPrefix(root, s3URIScheme) {
		cfg, ok := s3.ParseURI(root)
		if !ok {
			return nil, usagef("invalid S3 root %q (want s3://bucket/prefix)", root)
		}
		client, cerr := a.newS3Client(ctx, s3.ClientConfig{
			Region:       a.s3Region,
			Endpoint:     a.s3Endpoint,
			UsePathStyle: a.s3Endpoint != "",
			Credentials:  s3.StaticCredentials(os.Getenv(envAccessKey), os.Getenv(envSecretKey)),
		})
		if cerr != nil {
			return nil, fmt.Errorf("s3 client: %w", cerr)
		}
		ds, err = missionset.New(s3.NewFactory(client, cfg), opts...)
	} else {
		ds, err = missionset.Open(root, opts...)
	}
	if err != nil {
		return nil, err
	}
	a.logger.Debug("opened dataset", "root", root)
	a.ds = ds
	return ds, nil
}

// emit writes v in the selected output format. text renders the human
// form and is used only for --output text.
func (a *app) emit(v any, text func(w io.Writer) error) error {
	p, err := newPrinter(a.output, a.stdout)
	if err != nil {
		return err
	}
	return p.print(v, text)
}
