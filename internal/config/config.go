// Package config builds the single, immutable configuration value that is
// threaded through every mdpublish component.
package config

import "time"

// SingleModule is the reserved module name for single-module sites: no
// manifest merge and no remote sync.
const SingleModule = "_simple"

// AutoModule derives the module name from the content repository.
const AutoModule = "auto"

// Backend names for remote.backend.
const (
	BackendS3 = "s3"
	BackendFS = "fs"
)

// Config is read-only after Load. Sections are returned by value.
type Config struct {
	v values
}

type values struct {
	Module     string         `yaml:"module" toml:"module"`
	ContentDir string         `yaml:"content_dir" toml:"content_dir"`
	OutputDir  string         `yaml:"output_dir" toml:"output_dir"`
	DryRun     bool           `yaml:"dry_run" toml:"dry_run"`
	Site       SiteConfig     `yaml:"site" toml:"site"`
	Remote     RemoteConfig   `yaml:"remote" toml:"remote"`
	Upload     UploadConfig   `yaml:"upload" toml:"upload"`
	Metrics    MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Notify     NotifyConfig   `yaml:"notify" toml:"notify"`
	Journal    JournalConfig  `yaml:"journal" toml:"journal"`
	Schedule   ScheduleConfig `yaml:"schedule" toml:"schedule"`
	Preview    PreviewConfig  `yaml:"preview" toml:"preview"`
}

// SiteConfig controls rendering.
type SiteConfig struct {
	Title     string `yaml:"title" toml:"title"`
	Theme     string `yaml:"theme" toml:"theme"`
	CodeStyle string `yaml:"code_style" toml:"code_style"`
}

// RemoteConfig describes the shared object store.
type RemoteConfig struct {
	Backend         string `yaml:"backend" toml:"backend"`
	Endpoint        string `yaml:"endpoint" toml:"endpoint"`
	Region          string `yaml:"region" toml:"region"`
	Bucket          string `yaml:"bucket" toml:"bucket"`
	Root            string `yaml:"root" toml:"root"`
	AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" toml:"secret_access_key"`
	UseSSL          *bool  `yaml:"use_ssl" toml:"use_ssl"`
	// Dir is the bucket directory for the fs backend.
	Dir string `yaml:"dir" toml:"dir"`
}

// SSL reports whether the S3 endpoint is reached over TLS. Defaults to true.
func (r RemoteConfig) SSL() bool {
	return r.UseSSL == nil || *r.UseSSL
}

// Configured reports whether enough is set to reach the store.
func (r RemoteConfig) Configured() bool {
	switch r.Backend {
	case BackendFS:
		return r.Dir != ""
	case BackendS3:
		return r.Endpoint != "" && r.Bucket != "" && r.AccessKeyID != "" && r.SecretAccessKey != ""
	}
	return false
}

// Backoff modes for upload.backoff.
const (
	BackoffFixed       = "fixed"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// UploadConfig tunes remote transfers. Retries apply to each object
// transfer on its own.
type UploadConfig struct {
	Concurrency   int    `yaml:"concurrency" toml:"concurrency"`
	Retries       int    `yaml:"retries" toml:"retries"`
	Backoff       string `yaml:"backoff" toml:"backoff"`
	RetryDelay    string `yaml:"retry_delay" toml:"retry_delay"`
	MaxRetryDelay string `yaml:"max_retry_delay" toml:"max_retry_delay"`
}

// InitialDelay parses RetryDelay.
func (u UploadConfig) InitialDelay() time.Duration {
	d, _ := time.ParseDuration(u.RetryDelay)
	return d
}

// MaxDelay parses MaxRetryDelay.
func (u UploadConfig) MaxDelay() time.Duration {
	d, _ := time.ParseDuration(u.MaxRetryDelay)
	return d
}

// MetricsConfig enables the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" toml:"textfile"`
}

// NotifyConfig enables publish notifications over NATS.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url" toml:"nats_url"`
	Subject string `yaml:"subject" toml:"subject"`
}

// JournalConfig enables the publish history database.
type JournalConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// ScheduleConfig drives the daemon command.
type ScheduleConfig struct {
	Interval string `yaml:"interval" toml:"interval"`
}

// Every parses Interval. Validation guarantees it parses after Load.
func (s ScheduleConfig) Every() time.Duration {
	d, _ := time.ParseDuration(s.Interval)
	return d
}

// PreviewConfig configures the preview server.
type PreviewConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

func (c Config) Module() string           { return c.v.Module }
func (c Config) ContentDir() string       { return c.v.ContentDir }
func (c Config) OutputDir() string        { return c.v.OutputDir }
func (c Config) DryRun() bool             { return c.v.DryRun }
func (c Config) Site() SiteConfig         { return c.v.Site }
func (c Config) Upload() UploadConfig     { return c.v.Upload }
func (c Config) Metrics() MetricsConfig   { return c.v.Metrics }
func (c Config) Notify() NotifyConfig     { return c.v.Notify }
func (c Config) Journal() JournalConfig   { return c.v.Journal }
func (c Config) Schedule() ScheduleConfig { return c.v.Schedule }
func (c Config) Preview() PreviewConfig   { return c.v.Preview }

// Remote returns a copy of the remote section.
func (c Config) Remote() RemoteConfig {
	r := c.v.Remote
	if r.UseSSL != nil {
		ssl := *r.UseSSL
		r.UseSSL = &ssl
	}
	return r
}

// SingleModule reports whether the reserved single-module name is in use.
func (c Config) SingleModule() bool { return c.v.Module == SingleModule }

// RemoteEnabled reports whether publishes sync this module with the remote
// store. Dry runs still read from it but never write.
func (c Config) RemoteEnabled() bool {
	return c.v.Remote.Configured() && !c.SingleModule()
}

// WithModule returns a copy of c using module as the module name.
func (c Config) WithModule(module string) Config {
	c.v.Module = module
	c.v.Remote = c.Remote()
	return c
}
