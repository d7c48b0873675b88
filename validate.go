package blobstore

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config field %q: %s", e.Field, e.Message)
}

// ValidateConfig performs comprehensive validation of storage configuration
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return &ValidationError{Field: "config", Message: "configuration cannot be nil"}
	}

	var errs []string

	// Validate bucket
	if cfg.Bucket == "" {
		errs = append(errs, "bucket cannot be empty")
	} else if err := validateBucketName(cfg.Bucket); err != nil {
		errs = append(errs, fmt.Sprintf("invalid bucket name: %v", err))
	}

	// Validate region (required for AWS, optional for custom endpoints)
	if cfg.Region == "" && cfg.Endpoint == "" {
		errs = append(errs, "region is required when endpoint is not specified (AWS mode)")
	}

	// Disallow partially-specified explicit credentials
	if (cfg.AccessKey == "" && cfg.SecretKey != "") || (cfg.AccessKey != "" && cfg.SecretKey == "") {
		errs = append(errs, "both access_key and secret_key must be set together; do not provide only one")
	}

	// With a custom endpoint the SDK default chain has nothing to fall back
	// on, so some credential source must be named explicitly.
	if cfg.AccessKey == "" && cfg.SecretKey == "" && cfg.Endpoint != "" {
		if cfg.RoleARN == "" && cfg.Profile == "" && !cfg.UseSDKDefaults {
			errs = append(errs, "credentials required for custom endpoint: provide access_key+secret_key or enable use_sdk_defaults")
		}
	}

	// Validate timeouts
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, "request_timeout must be positive")
	}
	if cfg.RequestTimeout > 10*time.Minute {
		errs = append(errs, "request_timeout should not exceed 10 minutes")
	}

	// Validate upload retry configuration
	if cfg.MaxUploadAttempts <= 0 {
		errs = append(errs, "max_upload_attempts must be positive")
	}
	if cfg.MaxUploadAttempts > 10 {
		errs = append(errs, "max_upload_attempts should not exceed 10")
	}
	if cfg.MaxConcurrentUploads < 0 {
		errs = append(errs, "max_concurrent_uploads cannot be negative")
	}

	if cfg.BackoffInitial < 0 {
		errs = append(errs, "backoff_initial cannot be negative")
	}
	if cfg.BackoffInitial > 0 && cfg.BackoffMax < cfg.BackoffInitial {
		errs = append(errs, "backoff_max must be at least backoff_initial")
	}

	// Validate endpoint format if provided
	if cfg.Endpoint != "" {
		if err := validateEndpoint(cfg.Endpoint); err != nil {
			errs = append(errs, fmt.Sprintf("invalid endpoint: %v", err))
		}
	}

	// Validate base prefix format
	if cfg.BasePrefix != "" {
		if err := validateBasePrefix(cfg.BasePrefix); err != nil {
			errs = append(errs, fmt.Sprintf("invalid base_prefix: %v", err))
		}
	}

	// Validate RoleARN basic format if provided
	if cfg.RoleARN != "" && !isPlausibleRoleARN(cfg.RoleARN) {
		errs = append(errs, "role_arn looks invalid: must be a valid IAM role ARN (e.g., arn:aws:iam::123456789012:role/RoleName)")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "config",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// isPlausibleRoleARN performs a light-weight validation of an IAM role ARN
func isPlausibleRoleARN(arn string) bool {
	// Expected form: arn:partition:service:region:account-id:resource
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 {
		return false
	}
	if parts[0] != "arn" {
		return false
	}
	if parts[2] != "iam" {
		return false
	}
	acct := parts[4]
	if acct == "" {
		return false
	}
	for _, r := range acct {
		if r < '0' || r > '9' {
			return false
		}
	}
	return strings.HasPrefix(parts[5], "role/")
}

// validateBucketName validates S3 bucket naming rules
func validateBucketName(bucket string) error {
	if len(bucket) < 3 || len(bucket) > 63 {
		return fmt.Errorf("bucket name must be between 3 and 63 characters")
	}

	if strings.HasPrefix(bucket, "-") || strings.HasSuffix(bucket, "-") {
		return fmt.Errorf("bucket name cannot start or end with a hyphen")
	}

	if strings.HasPrefix(bucket, ".") || strings.HasSuffix(bucket, ".") {
		return fmt.Errorf("bucket name cannot start or end with a period")
	}

	if strings.Contains(bucket, "..") || strings.Contains(bucket, "--") {
		return fmt.Errorf("bucket name cannot contain consecutive periods or hyphens")
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return fmt.Errorf("bucket name contains invalid character: %c", char)
		}
	}

	// Reject names formatted as an IP address
	parts := strings.Split(bucket, ".")
	if len(parts) == 4 {
		allNumeric := true
		for _, part := range parts {
			if !isNumeric(part) {
				allNumeric = false
				break
			}
		}
		if allNumeric {
			return fmt.Errorf("bucket name cannot be formatted as an IP address")
		}
	}

	return nil
}

// isValidBucketChar checks if a character is valid in S3 bucket names
func isValidBucketChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '.'
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, char := range s {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}

// validateEndpoint validates the endpoint URL format
func validateEndpoint(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return nil
	}

	if strings.Contains(endpoint, "://") {
		return fmt.Errorf("endpoint protocol must be http or https")
	}

	if strings.Contains(endpoint, " ") {
		return fmt.Errorf("endpoint cannot contain spaces")
	}

	return nil
}

// validateBasePrefix validates the base prefix format
func validateBasePrefix(prefix string) error {
	if strings.HasPrefix(prefix, "/") || strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("base prefix should not start or end with '/'")
	}

	if strings.Contains(prefix, "..") {
		return fmt.Errorf("base prefix cannot contain '..' patterns")
	}

	if strings.Contains(prefix, "//") {
		return fmt.Errorf("base prefix cannot contain consecutive slashes")
	}

	return nil
}

// Sanitize applies automatic fixes to configuration where possible and
// returns a sanitized copy without mutating the receiver.
func (c *Config) Sanitize() *Config {
	if c == nil {
		return DefaultConfig()
	}

	sanitized := *c

	if sanitized.Bucket == "" {
		sanitized.Bucket = "docs-hosting"
	}

	if sanitized.Region == "" && sanitized.Endpoint == "" {
		sanitized.Region = "us-west-1"
	}

	if sanitized.RequestTimeout == 0 {
		sanitized.RequestTimeout = 30 * time.Second
	}

	if sanitized.MaxUploadAttempts == 0 {
		sanitized.MaxUploadAttempts = 3
	}

	if sanitized.MaxConcurrentUploads == 0 {
		sanitized.MaxConcurrentUploads = 8
	}

	if sanitized.BackoffInitial > 0 && sanitized.BackoffMax == 0 {
		sanitized.BackoffMax = 5 * time.Second
	}

	if sanitized.Endpoint != "" {
		sanitized.Endpoint = strings.TrimSpace(sanitized.Endpoint)
		sanitized.Endpoint = strings.TrimSuffix(sanitized.Endpoint, "/")
	}

	if sanitized.BasePrefix != "" {
		sanitized.BasePrefix = strings.Trim(sanitized.BasePrefix, "/")
	}

	return &sanitized
}
