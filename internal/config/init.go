package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
)

const exampleYAML = `# mdpublish configuration
#
# Values may reference environment variables as ${NAME}. Variables from
# .env.local and .env are loaded first.

# Module name. "_simple" publishes a single-module site without merging;
# "auto" derives the name from the content repository's origin remote.
module: _simple

content_dir: content
output_dir: dist
dry_run: false

site:
  title: Documentation
  theme: default
  code_style: github

remote:
  backend: s3            # s3 | fs
  endpoint: s3.amazonaws.com
  region: us-east-1
  bucket: docs.example.com
  root: ""               # empty or ending in "/"
  access_key_id: ${AWS_ACCESS_KEY_ID}
  secret_access_key: ${AWS_SECRET_ACCESS_KEY}
  use_ssl: true
  # dir: /srv/docs-bucket  # fs backend only

upload:
  concurrency: 8
  retries: 0             # per object; remote calls fail fast by default
  backoff: exponential   # fixed | linear | exponential
  retry_delay: 500ms
  max_retry_delay: 10s

metrics:
  textfile: ""

notify:
  nats_url: ""
  subject: mdpublish.published

journal:
  path: ""

schedule:
  interval: 1h

preview:
  addr: ":8080"
`

// WriteExample writes an example configuration to path, as TOML when the
// extension is .toml and YAML otherwise. An existing file is only replaced
// when force is set.
func WriteExample(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return derrors.New(derrors.CategoryConfig, derrors.SeverityFatal, "configuration file already exists (use --force to overwrite)").
			WithCode(derrors.CodeConfig).
			WithContext("path", path)
	}

	data := []byte(exampleYAML)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var err error
		if data, err = toml.Marshal(defaults()); err != nil {
			return derrors.InternalError("encode example config", err)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return derrors.FileSystemError("create directory", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return derrors.FileSystemError("write config", path, err)
	}
	return nil
}
