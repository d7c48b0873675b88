package s3

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/cenkalti/backoff/v4"
	"github.com/gostratum/core/logx"

	"github.com/docshost/blobstore"
)

// Environment variables consulted by FromEnvironment.
const (
	envAccessKey = "AWS_ACCESS_KEY_ID"
	envForceS3   = "FORCE_S3"
	envEndpoint  = "S3_ENDPOINT"
	envRegion    = "S3_REGION"
	envBucket    = "S3_BUCKET"
)

// FromEnvironment decides whether a remote backend is usable at all and
// constructs it. It returns (nil, false) when no object-store credentials
// are resolvable, in which case the caller is expected to fall back to the
// alternate backend, and (backend, true) otherwise.
//
// A remote backend is selected only when AWS_ACCESS_KEY_ID is set, or when
// FORCE_S3 forces remote usage without standard credentials (for
// instance-profile or self-hosted setups). S3_BUCKET, S3_REGION and
// S3_ENDPOINT override the defaults; setting S3_ENDPOINT also switches to
// path-style addressing for self-hosted compatibility. Credential or
// connectivity failures during construction are logged and treated as "no
// remote backend available", never as fatal.
func FromEnvironment(ctx context.Context, logger logx.Logger, opts ...blobstore.Option) (*Backend, bool) {
	if logger == nil {
		logger = logx.NewNoopLogger()
	}

	if os.Getenv(envAccessKey) == "" && os.Getenv(envForceS3) == "" {
		return nil, false
	}

	cfg := blobstore.DefaultConfig()
	cfg.UseSDKDefaults = true
	if v := os.Getenv(envBucket); v != "" {
		cfg.Bucket = v
	}
	if v := os.Getenv(envRegion); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv(envEndpoint); v != "" {
		cfg.Endpoint = v
		cfg.UsePathStyle = true
	}

	backend, err := NewBackend(ctx, cfg, append(opts, blobstore.WithLogger(logger))...)
	if err != nil {
		logger.Warn("remote blob storage unavailable, falling back",
			blobstore.ArgsToFields("bucket", cfg.Bucket, "error", err)...)
		return nil, false
	}

	return backend, true
}

// newS3Client builds the service client from a validated configuration.
func newS3Client(ctx context.Context, cfg *blobstore.Config, logger logx.Logger) (*s3.Client, error) {
	awsConfig, credSource, err := buildAWSConfigWithLoader(ctx, cfg, logger, func(ctx context.Context, opts ...func(*config.LoadOptions) error) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx, opts...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	logger.Info("credential source selected", blobstore.ArgsToFields("cred_source", credSource)...)

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		// Path-style addressing for MinIO and other self-hosted stores
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}

		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.GetEndpointURL())
		}

		o.HTTPClient = &http.Client{
			Timeout: cfg.RequestTimeout,
		}

		// The raw response stays available in operation metadata for the
		// read path's Last-Modified fallback: this SDK version registers
		// AddRawResponseToMetadata on every operation itself, and adding it
		// again via APIOptions fails with a duplicate-middleware error.
	})

	return client, nil
}

// awsConfigLoader is a function that loads an aws.Config given LoadOptions.
type awsConfigLoader func(ctx context.Context, opts ...func(*config.LoadOptions) error) (aws.Config, error)

// buildAWSConfigWithLoader builds an AWS config using the supplied loader
// (testable). It returns the loaded aws.Config and the detected credential
// source (one of: "static", "profile", "sdk-default", "assumed-role").
func buildAWSConfigWithLoader(ctx context.Context, cfg *blobstore.Config, logger logx.Logger, loader awsConfigLoader) (aws.Config, string, error) {
	var options []func(*config.LoadOptions) error
	credSource := "unknown"

	if cfg.Region != "" {
		options = append(options, config.WithRegion(cfg.Region))
	}

	// Credential handling based on UseSDKDefaults flag
	if !cfg.UseSDKDefaults {
		// Only explicitly provided credentials are accepted
		if cfg.AccessKey != "" && cfg.SecretKey != "" {
			credProvider := credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				cfg.SessionToken,
			)
			options = append(options, config.WithCredentialsProvider(credProvider))
			credSource = "static"
		} else if cfg.Profile != "" {
			options = append(options, config.WithSharedConfigProfile(cfg.Profile))
			credSource = "profile"
		} else {
			return aws.Config{}, credSource, fmt.Errorf("use_sdk_defaults is false but no explicit credentials provided (access_key/secret_key or profile)")
		}
	} else {
		// Prefer explicit credentials but allow the SDK default chain
		if cfg.AccessKey != "" && cfg.SecretKey != "" {
			credProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)
			options = append(options, config.WithCredentialsProvider(credProvider))
			credSource = "static"
		} else if cfg.Profile != "" {
			options = append(options, config.WithSharedConfigProfile(cfg.Profile))
			credSource = "profile"
		}
	}

	// Transport-level retries with exponential backoff
	options = append(options, config.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxBackoff = cfg.BackoffMax
			o.Backoff = createBackoffStrategy(cfg)
		})
	}))

	awsConfig, err := loader(ctx, options...)
	if err != nil {
		return aws.Config{}, credSource, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	if credSource == "unknown" {
		credSource = "sdk-default"
	}

	// If RoleARN is set, the already-loaded credentials are used as the
	// source to authenticate the STS AssumeRole call. For non-AWS endpoints
	// STS may not be available, so AssumeRole can fail at runtime.
	if cfg.RoleARN != "" {
		logger.Info("config requests STS AssumeRole", blobstore.ArgsToFields("role_arn", cfg.RoleARN)...)

		stsClient := sts.NewFromConfig(awsConfig)
		assumeProv := stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			if cfg.ExternalID != "" {
				o.ExternalID = &cfg.ExternalID
			}
			o.RoleSessionName = "blobstore-assume-role"
		})

		awsConfig.Credentials = aws.NewCredentialsCache(assumeProv)
		credSource = "assumed-role"
	}

	return awsConfig, credSource, nil
}

// createBackoffStrategy creates a custom backoff strategy for the SDK retryer
func createBackoffStrategy(cfg *blobstore.Config) retry.BackoffDelayerFunc {
	return func(attempt int, err error) (time.Duration, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = cfg.BackoffInitial
		b.MaxInterval = cfg.BackoffMax
		b.MaxElapsedTime = 0
		b.Multiplier = 2.0
		b.RandomizationFactor = 0.1
		b.Reset()

		var delay time.Duration
		for i := 0; i < attempt; i++ {
			delay = b.NextBackOff()
			if delay == backoff.Stop {
				break
			}
		}

		return delay, nil
	}
}
