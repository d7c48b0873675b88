package blobstore

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all blob storage configuration options
type Config struct {
	// Bucket is the object-store bucket holding the documentation blobs
	Bucket string `mapstructure:"bucket" yaml:"bucket" default:"docs-hosting"`

	// Region is the AWS region (e.g., "us-west-1")
	Region string `mapstructure:"region" yaml:"region" default:"us-west-1"`

	// Endpoint is a custom endpoint URL (for MinIO and other self-hosted
	// S3-compatible stores)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing (true for MinIO)
	UsePathStyle bool `mapstructure:"use_path_style" yaml:"use_path_style" default:"false"`

	// AccessKey is the access key ID
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`

	// SecretKey is the secret access key
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`

	// SessionToken is the temporary session token (optional)
	SessionToken string `mapstructure:"session_token" yaml:"session_token"`

	// UseSDKDefaults when true lets the AWS SDK default credential chain
	// (env, shared config, instance profile) be used when explicit
	// credentials are not provided. Default: false
	UseSDKDefaults bool `mapstructure:"use_sdk_defaults" yaml:"use_sdk_defaults" default:"false"`

	// RoleARN optionally specifies an ARN to assume via STS. When set, the
	// loaded credentials are used as the source to assume this role.
	RoleARN string `mapstructure:"role_arn" yaml:"role_arn"`

	// ExternalID is passed to STS AssumeRole when RoleARN is used.
	ExternalID string `mapstructure:"external_id" yaml:"external_id"`

	// Profile selects a shared credentials/profile name when loading SDK
	// defaults.
	Profile string `mapstructure:"profile" yaml:"profile"`

	// RequestTimeout is the timeout for individual requests
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" default:"30s"`

	// MaxUploadAttempts is the number of rounds a batch upload is attempted
	// before StoreBatch gives up and returns the failing subset
	MaxUploadAttempts int `mapstructure:"max_upload_attempts" yaml:"max_upload_attempts" default:"3"`

	// MaxConcurrentUploads bounds the number of in-flight uploads within one
	// attempt round. Zero means unbounded.
	MaxConcurrentUploads int `mapstructure:"max_concurrent_uploads" yaml:"max_concurrent_uploads" default:"8"`

	// BackoffInitial is the initial delay between upload attempt rounds.
	// Zero disables inter-round backoff.
	BackoffInitial time.Duration `mapstructure:"backoff_initial" yaml:"backoff_initial" default:"200ms"`

	// BackoffMax is the maximum delay between upload attempt rounds
	BackoffMax time.Duration `mapstructure:"backoff_max" yaml:"backoff_max" default:"5s"`

	// BasePrefix is an optional key prefix so one bucket can host several
	// namespaces (e.g. "staging")
	BasePrefix string `mapstructure:"base_prefix" yaml:"base_prefix"`

	// DisableSSL disables SSL for connections (development only)
	DisableSSL bool `mapstructure:"disable_ssl" yaml:"disable_ssl" default:"false"`

	// EnableLogging enables detailed operation logging
	EnableLogging bool `mapstructure:"enable_logging" yaml:"enable_logging" default:"false"`
}

// Prefix implements configx.Configurable and returns the configuration prefix
func (Config) Prefix() string { return "blobstore" }

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Bucket:               "docs-hosting",
		Region:               "us-west-1",
		UsePathStyle:         false,
		RequestTimeout:       30 * time.Second,
		MaxUploadAttempts:    3,
		MaxConcurrentUploads: 8,
		BackoffInitial:       200 * time.Millisecond,
		BackoffMax:           5 * time.Second,
		DisableSSL:           false,
		EnableLogging:        false,
	}
}

// GetEndpointURL returns the full endpoint URL
func (c *Config) GetEndpointURL() string {
	if c.Endpoint == "" {
		return ""
	}

	if strings.HasPrefix(c.Endpoint, "http://") || strings.HasPrefix(c.Endpoint, "https://") {
		return c.Endpoint
	}

	scheme := "https"
	if c.DisableSSL {
		scheme = "http"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// String returns a safe string representation (redacts secrets)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Bucket:%s, Region:%s, Endpoint:%s, UsePathStyle:%v, BasePrefix:%s}",
		c.Bucket, c.Region, c.Endpoint, c.UsePathStyle, c.BasePrefix)
}
