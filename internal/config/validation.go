package config

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	derrors "git.home.luguber.info/inful/mdpublish/internal/errors"
)

var moduleName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

func validate(v *values) error {
	err := validation.ValidateStruct(v,
		validation.Field(&v.Module, validation.Required, validation.Match(moduleName)),
		validation.Field(&v.ContentDir, validation.Required),
		validation.Field(&v.OutputDir, validation.Required),
		validation.Field(&v.Remote),
		validation.Field(&v.Upload),
		validation.Field(&v.Schedule),
	)
	if err == nil {
		return nil
	}
	field, reason := firstFieldError(err)
	return derrors.ValidationFailed(field, reason).WithContext("errors", err.Error())
}

// Validate implements validation.Validatable.
func (r RemoteConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Backend, validation.Required, validation.In(BackendS3, BackendFS)),
		validation.Field(&r.Root, validation.By(func(value any) error {
			root, _ := value.(string)
			if root != "" && !strings.HasSuffix(root, "/") {
				return errors.New("must be empty or end with '/'")
			}
			if strings.HasPrefix(root, "/") {
				return errors.New("must not start with '/'")
			}
			return nil
		})),
	)
}

// Validate implements validation.Validatable.
func (u UploadConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Concurrency, validation.Min(1), validation.Max(64)),
		validation.Field(&u.Retries, validation.Min(0), validation.Max(10)),
		validation.Field(&u.Backoff, validation.Required, validation.In(BackoffFixed, BackoffLinear, BackoffExponential)),
		validation.Field(&u.RetryDelay, validation.Required, validation.By(positiveDuration)),
		validation.Field(&u.MaxRetryDelay, validation.Required, validation.By(positiveDuration)),
	)
}

func positiveDuration(value any) error {
	d, err := time.ParseDuration(value.(string))
	if err != nil || d <= 0 {
		return errors.New("must be a positive duration such as 500ms or 10s")
	}
	return nil
}

// Validate implements validation.Validatable.
func (s ScheduleConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Interval, validation.Required, validation.By(func(value any) error {
			d, err := time.ParseDuration(value.(string))
			if err != nil {
				return errors.New("must be a duration such as 30m or 1h")
			}
			if d < time.Minute {
				return errors.New("must be at least 1m")
			}
			return nil
		})),
	)
}

// firstFieldError flattens ozzo's nested error map to one dotted field name.
func firstFieldError(err error) (string, string) {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return "", err.Error()
	}
	for _, name := range sortedKeys(errs) {
		field, reason := firstFieldError(errs[name])
		if field == "" {
			return name, reason
		}
		return name + "." + field, reason
	}
	return "", err.Error()
}

func sortedKeys(errs validation.Errors) []string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
