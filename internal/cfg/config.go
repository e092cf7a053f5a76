// Package cfg loads the TOML configuration file.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/simplesurance/automerger/internal/automerge"
	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/retry"
)

const (
	DefGithubWebhookEndpoint     = "/listener/github"
	DefPrometheusMetricsEndpoint = "/metrics"
	DefLogFormat                 = "logfmt"
	DefLogTimeKey                = "time_iso8601"
)

type Config struct {
	HTTPListenAddr            string    `toml:"http_server_listen_addr"`
	HTTPSListenAddr           string    `toml:"https_server_listen_addr"`
	HTTPSCertFile             string    `toml:"https_ssl_cert_file"`
	HTTPSKeyFile              string    `toml:"https_ssl_key_file"`
	HTTPGithubWebhookEndpoint string    `toml:"github_webhook_endpoint"`
	GithubWebHookSecret       string    `toml:"github_webhook_secret"`
	GithubAPIToken            string    `toml:"github_api_token"`
	PrometheusMetricsEndpoint string    `toml:"prometheus_metrics_endpoint"`
	LogFormat                 string    `toml:"log_format"`
	LogTimeKey                string    `toml:"log_time_key"`
	LogLevel                  string    `toml:"log_level"`
	EventFilterQuery          string    `toml:"event_filter_query"`
	Automerge                 Automerge `toml:"automerge"`
	Audit                     Audit     `toml:"audit"`
}

type Automerge struct {
	// DryRun is a pointer to distinguish an unset value from false, it
	// defaults to true.
	DryRun         *bool    `toml:"dry_run"`
	MergeOn        string   `toml:"merge_on"`
	MergeMethod    string   `toml:"merge_method"`
	Authors        []string `toml:"authors"`
	Checks         []string `toml:"checks"`
	ConvergeLabels *bool    `toml:"converge_labels"`
	SettingsURL    string   `toml:"settings_url"`
	CommentAuthor  string   `toml:"comment_author"`
	Retry          Retry    `toml:"retry"`

	mergeOn     automerge.Policy      `toml:"-"`
	mergeMethod githubclt.MergeMethod `toml:"-"`
	retryPolicy retry.Policy          `toml:"-"`
}

type Retry struct {
	Attempts            int      `toml:"attempts"`
	InitialInterval     string   `toml:"initial_interval"`
	Multiplier          float64  `toml:"multiplier"`
	MaxInterval         string   `toml:"max_interval"`
	RandomizationFactor *float64 `toml:"randomization_factor"`
}

type Audit struct {
	WebhookURL      string `toml:"webhook_url"`
	WebhookUser     string `toml:"webhook_user"`
	WebhookPassword string `toml:"webhook_password"`
	PostgresDSN     string `toml:"postgres_dsn"`
}

// Load reads a TOML configuration, applies the default values to unset
// options and validates it.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.setDefaults()

	if err := result.validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) setDefaults() {
	if c.HTTPGithubWebhookEndpoint == "" {
		c.HTTPGithubWebhookEndpoint = DefGithubWebhookEndpoint
	}

	if c.PrometheusMetricsEndpoint == "" {
		c.PrometheusMetricsEndpoint = DefPrometheusMetricsEndpoint
	}

	if c.LogFormat == "" {
		c.LogFormat = DefLogFormat
	}

	if c.LogTimeKey == "" {
		c.LogTimeKey = DefLogTimeKey
	}

	a := &c.Automerge

	if a.DryRun == nil {
		t := true
		a.DryRun = &t
	}

	if a.ConvergeLabels == nil {
		t := true
		a.ConvergeLabels = &t
	}

	if a.MergeOn == "" {
		a.MergeOn = automerge.PolicyOnApprove.String()
	}

	if a.MergeMethod == "" {
		a.MergeMethod = string(githubclt.MergeMethodMerge)
	}

	def := retry.DefaultPolicy()

	if a.Retry.Attempts == 0 {
		a.Retry.Attempts = def.Attempts
	}

	if a.Retry.InitialInterval == "" {
		a.Retry.InitialInterval = def.InitialInterval.String()
	}

	if a.Retry.MaxInterval == "" {
		a.Retry.MaxInterval = def.MaxInterval.String()
	}

	if a.Retry.Multiplier == 0 {
		a.Retry.Multiplier = def.Multiplier
	}

	if a.Retry.RandomizationFactor == nil {
		f := def.RandomizationFactor
		a.Retry.RandomizationFactor = &f
	}
}

func (c *Config) validate() error {
	var err error

	switch c.LogFormat {
	case "logfmt", "json", "console":
	default:
		return fmt.Errorf("log_format: unsupported value: %q", c.LogFormat)
	}

	a := &c.Automerge

	a.mergeOn, err = automerge.ParsePolicy(a.MergeOn)
	if err != nil {
		return fmt.Errorf("automerge.merge_on: %w", err)
	}

	var ok bool
	a.mergeMethod, ok = githubclt.ParseMergeMethod(a.MergeMethod)
	if !ok {
		return fmt.Errorf("automerge.merge_method: unsupported value: %q", a.MergeMethod)
	}

	a.retryPolicy, err = a.Retry.policy()
	if err != nil {
		return fmt.Errorf("automerge.retry: %w", err)
	}

	return nil
}

func (r *Retry) policy() (retry.Policy, error) {
	if r.Attempts < 1 {
		return retry.Policy{}, fmt.Errorf("attempts must be >=1, is %d", r.Attempts)
	}

	initial, err := time.ParseDuration(r.InitialInterval)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("initial_interval: %w", err)
	}

	maxInterval, err := time.ParseDuration(r.MaxInterval)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("max_interval: %w", err)
	}

	if maxInterval < initial {
		return retry.Policy{}, errors.New("max_interval must be greater or equal to initial_interval")
	}

	if r.Multiplier < 1 {
		return retry.Policy{}, fmt.Errorf("multiplier must be >=1, is %f", r.Multiplier)
	}

	if *r.RandomizationFactor < 0 || *r.RandomizationFactor > 1 {
		return retry.Policy{}, fmt.Errorf("randomization_factor must be between 0 and 1, is %f", *r.RandomizationFactor)
	}

	return retry.Policy{
		Attempts:            r.Attempts,
		InitialInterval:     initial,
		MaxInterval:         maxInterval,
		Multiplier:          r.Multiplier,
		RandomizationFactor: *r.RandomizationFactor,
	}, nil
}

// RetryPolicy returns the policy for polling GitHub.
func (c *Config) RetryPolicy() retry.Policy {
	return c.Automerge.retryPolicy
}

// AutomergeConfig returns the configuration of the auto-merge engine.
func (c *Config) AutomergeConfig() *automerge.Config {
	a := &c.Automerge

	return &automerge.Config{
		DryRun:         *a.DryRun,
		MergeOn:        a.mergeOn,
		MergeMethod:    a.mergeMethod,
		Authors:        a.Authors,
		RequiredChecks: a.Checks,
		SettingsURL:    a.SettingsURL,
		CommentAuthor:  a.CommentAuthor,
		Retry:          a.retryPolicy,
	}
}

// MergeOn returns the policy that opened pull requests are labelled with.
func (c *Config) MergeOn() automerge.Policy {
	return c.Automerge.mergeOn
}

// MergeMethod returns the merge method that opened pull requests are
// labelled with.
func (c *Config) MergeMethod() githubclt.MergeMethod {
	return c.Automerge.mergeMethod
}

func (c *Config) ConvergeLabels() bool {
	return *c.Automerge.ConvergeLabels
}
