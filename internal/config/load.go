package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
)

// DefaultFiles are tried in order when Load is given no path.
var DefaultFiles = []string{"mdpublish.yaml", "mdpublish.yml", "mdpublish.toml"}

// EnvFiles are loaded into the process environment before the config file is
// read. Earlier files win; variables already set are never overridden.
var EnvFiles = []string{".env.local", ".env"}

// Overrides carries command-line values. Zero values leave the loaded
// configuration untouched.
type Overrides struct {
	Module      string
	ContentDir  string
	OutputDir   string
	Theme       string
	Title       string
	DryRun      bool
	Concurrency int
}

func (o Overrides) apply(v *values) {
	setString(&v.Module, o.Module)
	setString(&v.ContentDir, o.ContentDir)
	setString(&v.OutputDir, o.OutputDir)
	setString(&v.Site.Theme, o.Theme)
	setString(&v.Site.Title, o.Title)
	if o.DryRun {
		v.DryRun = true
	}
	if o.Concurrency > 0 {
		v.Upload.Concurrency = o.Concurrency
	}
}

// Load builds the configuration: defaults, then the config file at path (or
// the first of DefaultFiles that exists), then MDPUBLISH_* environment
// variables, then overrides. The result is validated.
func Load(path string, o Overrides) (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}

	v := defaults()
	if path == "" {
		path = discover()
	} else if _, err := os.Stat(path); err != nil {
		return Config{}, derrors.ConfigNotFound(path)
	}
	if path != "" {
		if err := readFile(path, &v); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&v)
	o.apply(&v)

	if err := validate(&v); err != nil {
		return Config{}, err
	}
	return Config{v: v}, nil
}

func discover() string {
	for _, f := range DefaultFiles {
		if info, err := os.Stat(f); err == nil && !info.IsDir() {
			return f
		}
	}
	return ""
}

func loadEnvFiles() error {
	for _, f := range EnvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, "load env file").
				WithCode(derrors.CodeConfig).
				WithContext("path", f)
		}
	}
	return nil
}

// readFile decodes a YAML or TOML file over v. ${VAR} references are
// expanded from the environment first.
func readFile(path string, v *values) error {
	// #nosec G304 -- config path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return derrors.FileSystemError("read config", path, err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(expanded, v)
	default:
		err = yaml.Unmarshal(expanded, v)
	}
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryConfig, derrors.SeverityFatal, fmt.Sprintf("parse config %s", path)).
			WithCode(derrors.CodeConfig).
			WithContext("path", path)
	}
	return nil
}

// envBindings maps environment variables onto fields the CLI has no flags for.
func envBindings(v *values) map[string]*string {
	return map[string]*string{
		"MDPUBLISH_REMOTE_BACKEND":           &v.Remote.Backend,
		"MDPUBLISH_REMOTE_ENDPOINT":          &v.Remote.Endpoint,
		"MDPUBLISH_REMOTE_REGION":            &v.Remote.Region,
		"MDPUBLISH_REMOTE_BUCKET":            &v.Remote.Bucket,
		"MDPUBLISH_REMOTE_ROOT":              &v.Remote.Root,
		"MDPUBLISH_REMOTE_ACCESS_KEY_ID":     &v.Remote.AccessKeyID,
		"MDPUBLISH_REMOTE_SECRET_ACCESS_KEY": &v.Remote.SecretAccessKey,
		"MDPUBLISH_REMOTE_DIR":               &v.Remote.Dir,
		"MDPUBLISH_NATS_URL":                 &v.Notify.NATSURL,
		"MDPUBLISH_JOURNAL_PATH":             &v.Journal.Path,
		"MDPUBLISH_METRICS_TEXTFILE":         &v.Metrics.Textfile,
	}
}

func applyEnv(v *values) {
	for name, dst := range envBindings(v) {
		setString(dst, os.Getenv(name))
	}
	// Standard AWS variables fill credentials that are still missing.
	if v.Remote.AccessKeyID == "" {
		v.Remote.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if v.Remote.SecretAccessKey == "" {
		v.Remote.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}
