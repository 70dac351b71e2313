package s3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds configuration for creating an S3 client.
type ClientConfig struct {
	// Region is the AWS region. Empty defers to the default chain
	// (AWS_REGION, shared config).
	Region string

	// Endpoint is an optional custom endpoint URL for S3-compatible
	// services (MinIO, LocalStack, R2).
	// Example: "http://localhost:9000" for MinIO.
	Endpoint string

	// UsePathStyle enables path-style addressing instead of virtual-hosted
	// style. Most self-hosted S3-compatible services need it.
	UsePathStyle bool

	// Credentials are the AWS credentials to use.
	// If nil, uses the default credential chain.
	Credentials aws.CredentialsProvider
}

// StaticCredentials returns a provider for a fixed access key pair, or nil
// when either half is empty so the default chain applies.
func StaticCredentials(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	if accessKeyID == "" || secretAccessKey == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
}

// NewClient creates a new S3 client with the given configuration.
//
// For AWS S3:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{Region: "us-east-1"})
//
// For MinIO:
//
//	client, err := s3.NewClient(ctx, s3.ClientConfig{
//	    Region:       "us-east-1",
//	    Endpoint:     "http://localhost:9000",
//	    UsePathStyle: true,
//	    Credentials:  s3.StaticCredentials("minioadmin", "minioadmin"),
//	})
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Credentials != nil {
		opts = append(opts, config.WithCredentialsProvider(cfg.Credentials))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if awsCfg.Region == "" {
		return nil, errors.New("s3: region is required")
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}
