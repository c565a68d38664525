package config

// Defaults used when neither the config file nor flags set a value.
const (
	DefaultContentDir  = "content"
	DefaultOutputDir   = "dist"
	DefaultTitle       = "Documentation"
	DefaultTheme       = "default"
	DefaultCodeStyle   = "github"
	DefaultConcurrency = 8
	DefaultRetries     = 0
	DefaultBackoff     = BackoffExponential
	DefaultRetryDelay  = "500ms"
	DefaultMaxDelay    = "10s"
	DefaultSubject     = "mdpublish.published"
	DefaultInterval    = "1h"
	DefaultPreviewAddr = ":8080"
)

func defaults() values {
	return values{
		Module:     SingleModule,
		ContentDir: DefaultContentDir,
		OutputDir:  DefaultOutputDir,
		Site: SiteConfig{
			Title:     DefaultTitle,
			Theme:     DefaultTheme,
			CodeStyle: DefaultCodeStyle,
		},
		Remote:   RemoteConfig{Backend: BackendS3},
		Upload: UploadConfig{
			Concurrency:   DefaultConcurrency,
			Retries:       DefaultRetries,
			Backoff:       DefaultBackoff,
			RetryDelay:    DefaultRetryDelay,
			MaxRetryDelay: DefaultMaxDelay,
		},
		Notify:   NotifyConfig{Subject: DefaultSubject},
		Schedule: ScheduleConfig{Interval: DefaultInterval},
		Preview:  PreviewConfig{Addr: DefaultPreviewAddr},
	}
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{v: defaults()}
}
