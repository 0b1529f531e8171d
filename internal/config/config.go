// Package config provides layered configuration for phasecore. Values are
// resolved from (highest to lowest priority):
//  1. Command-line flags
//  2. Environment variables (PHASECORE_*, plus the spec's bare option names)
//  3. Project config (.phasecore/config.yaml in cwd)
//  4. Home config (~/.phasecore/config.yaml)
//  5. Defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every configurable knob of the orchestration core.
type Config struct {
	// Output controls the CLI harness's default output format (table, json, yaml).
	Output string `yaml:"output" json:"output"`

	// BaseDir is the session store's data directory.
	BaseDir string `yaml:"base_dir" json:"base_dir"`

	Verbose bool `yaml:"verbose" json:"verbose"`

	Knowledge KnowledgeConfig `yaml:"knowledge" json:"knowledge"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	SSRF      SSRFConfig      `yaml:"ssrf" json:"ssrf"`
	Verify    VerifyConfig    `yaml:"verify" json:"verify"`
	Effect    EffectConfig    `yaml:"effectiveness" json:"effectiveness"`
}

// KnowledgeConfig configures the KNOWLEDGE-phase fetcher and synthesizer.
type KnowledgeConfig struct {
	// MaxConcurrency bounds the fetcher's semaphore width. Range 1-10.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`

	// TimeoutMS is the per-fetch deadline. Range 1000-30000.
	TimeoutMS int `yaml:"timeout_ms" json:"timeout_ms"`

	// ConfidenceThreshold is an informational floor for "reliable". Range 0-1.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`

	// MaxResponseSize caps the synthesized answer in bytes.
	MaxResponseSize int `yaml:"max_response_size" json:"max_response_size"`

	// MaxTruncateChars caps a single fetched body before truncation.
	MaxTruncateChars int `yaml:"max_truncate_chars" json:"max_truncate_chars"`

	// AutoConnectionEnabled turns KNOWLEDGE fetching on/off entirely.
	AutoConnectionEnabled bool `yaml:"auto_connection_enabled" json:"auto_connection_enabled"`

	// MaxRetries is the per-endpoint retry budget before falling back to alternates.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RetryBaseDelayMS is the exponential backoff base.
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms" json:"retry_base_delay_ms"`

	// TopK is how many registry entries are selected per call.
	TopK int `yaml:"top_k" json:"top_k"`

	// MaxContentLength is the HTTP client body cap in bytes.
	MaxContentLength int64 `yaml:"max_content_length" json:"max_content_length"`

	// UserAgent is the HTTP client's User-Agent header.
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// RegistryOverlayPath optionally points at a YAML file that disables
	// entries in the compiled-in static registry; it cannot add entries.
	RegistryOverlayPath string `yaml:"registry_overlay_path" json:"registry_overlay_path"`
}

// RateLimitConfig configures the per-host token bucket.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	WindowMS          int `yaml:"window_ms" json:"window_ms"`
}

// SSRFConfig configures the outbound URL guard.
type SSRFConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	AllowedHosts []string `yaml:"allowed_hosts" json:"allowed_hosts"`
}

// VerifyConfig configures the verification gate's pass thresholds.
type VerifyConfig struct {
	CompletionThreshold  int     `yaml:"completion_threshold" json:"completion_threshold"`
	ExecutionSuccessRate float64 `yaml:"execution_success_rate_threshold" json:"execution_success_rate_threshold"`
}

// EffectConfig configures the reasoning-effectiveness clamp bounds.
type EffectConfig struct {
	Initial float64 `yaml:"initial" json:"initial"`
	Min     float64 `yaml:"min" json:"min"`
	Max     float64 `yaml:"max" json:"max"`
}

const (
	defaultOutput  = "table"
	defaultBaseDir = ".phasecore/sessions"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:  defaultOutput,
		BaseDir: defaultBaseDir,
		Verbose: false,
		Knowledge: KnowledgeConfig{
			MaxConcurrency:        2,
			TimeoutMS:             4000,
			ConfidenceThreshold:   0.4,
			MaxResponseSize:       5000,
			MaxTruncateChars:      10000,
			AutoConnectionEnabled: true,
			MaxRetries:            2,
			RetryBaseDelayMS:      500,
			TopK:                  5,
			MaxContentLength:      2 * 1024 * 1024,
			UserAgent:             "phasecore/1.0",
			RegistryOverlayPath:   "",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 5,
			WindowMS:          60000,
		},
		SSRF: SSRFConfig{
			Enabled:      true,
			AllowedHosts: nil,
		},
		Verify: VerifyConfig{
			CompletionThreshold:  95,
			ExecutionSuccessRate: 0.7,
		},
		Effect: EffectConfig{
			Initial: 0.8,
			Min:     0.3,
			Max:     1.0,
		},
	}
}

// Validate rejects configuration outside the documented ranges; an invalid
// configuration is a startup error.
func (c *Config) Validate() error {
	if c.Knowledge.MaxConcurrency < 1 || c.Knowledge.MaxConcurrency > 10 {
		return fmt.Errorf("knowledge.max_concurrency must be in [1,10], got %d", c.Knowledge.MaxConcurrency)
	}
	if c.Knowledge.TimeoutMS < 1000 || c.Knowledge.TimeoutMS > 30000 {
		return fmt.Errorf("knowledge.timeout_ms must be in [1000,30000], got %d", c.Knowledge.TimeoutMS)
	}
	if c.Knowledge.ConfidenceThreshold < 0 || c.Knowledge.ConfidenceThreshold > 1 {
		return fmt.Errorf("knowledge.confidence_threshold must be in [0,1], got %f", c.Knowledge.ConfidenceThreshold)
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be > 0, got %d", c.RateLimit.RequestsPerMinute)
	}
	if c.RateLimit.WindowMS <= 0 {
		return fmt.Errorf("rate_limit.window_ms must be > 0, got %d", c.RateLimit.WindowMS)
	}
	if c.Verify.CompletionThreshold < 50 || c.Verify.CompletionThreshold > 100 {
		return fmt.Errorf("verify.completion_threshold must be in [50,100], got %d", c.Verify.CompletionThreshold)
	}
	if c.Verify.ExecutionSuccessRate < 0 || c.Verify.ExecutionSuccessRate > 1 {
		return fmt.Errorf("verify.execution_success_rate_threshold must be in [0,1], got %f", c.Verify.ExecutionSuccessRate)
	}
	if c.Effect.Min < 0 || c.Effect.Max > 1 || c.Effect.Min > c.Effect.Max {
		return fmt.Errorf("effectiveness min/max out of range: min=%f max=%f", c.Effect.Min, c.Effect.Max)
	}
	if c.Effect.Initial < c.Effect.Min || c.Effect.Initial > c.Effect.Max {
		return fmt.Errorf("effectiveness.initial %f outside [min,max]=[%f,%f]", c.Effect.Initial, c.Effect.Min, c.Effect.Max)
	}
	return nil
}

// Load resolves configuration with full precedence: flags > env > project >
// home > defaults.
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeCfg, _ := loadFromPath(homeConfigPath()); homeCfg != nil {
		cfg = merge(cfg, homeCfg)
	}
	if projCfg, _ := loadFromPath(projectConfigPath()); projCfg != nil {
		cfg = merge(cfg, projCfg)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".phasecore", "config.yaml")
}

func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("PHASECORE_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".phasecore", "config.yaml")
}

func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge overlays non-zero fields of src onto dst, returning dst.
func merge(dst, src *Config) *Config {
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.Knowledge.MaxConcurrency != 0 {
		dst.Knowledge.MaxConcurrency = src.Knowledge.MaxConcurrency
	}
	if src.Knowledge.TimeoutMS != 0 {
		dst.Knowledge.TimeoutMS = src.Knowledge.TimeoutMS
	}
	if src.Knowledge.ConfidenceThreshold != 0 {
		dst.Knowledge.ConfidenceThreshold = src.Knowledge.ConfidenceThreshold
	}
	if src.Knowledge.MaxResponseSize != 0 {
		dst.Knowledge.MaxResponseSize = src.Knowledge.MaxResponseSize
	}
	if src.Knowledge.MaxTruncateChars != 0 {
		dst.Knowledge.MaxTruncateChars = src.Knowledge.MaxTruncateChars
	}
	if src.Knowledge.MaxRetries != 0 {
		dst.Knowledge.MaxRetries = src.Knowledge.MaxRetries
	}
	if src.Knowledge.RetryBaseDelayMS != 0 {
		dst.Knowledge.RetryBaseDelayMS = src.Knowledge.RetryBaseDelayMS
	}
	if src.Knowledge.TopK != 0 {
		dst.Knowledge.TopK = src.Knowledge.TopK
	}
	if src.Knowledge.MaxContentLength != 0 {
		dst.Knowledge.MaxContentLength = src.Knowledge.MaxContentLength
	}
	if src.Knowledge.UserAgent != "" {
		dst.Knowledge.UserAgent = src.Knowledge.UserAgent
	}
	if src.Knowledge.RegistryOverlayPath != "" {
		dst.Knowledge.RegistryOverlayPath = src.Knowledge.RegistryOverlayPath
	}
	if src.RateLimit.RequestsPerMinute != 0 {
		dst.RateLimit.RequestsPerMinute = src.RateLimit.RequestsPerMinute
	}
	if src.RateLimit.WindowMS != 0 {
		dst.RateLimit.WindowMS = src.RateLimit.WindowMS
	}
	if src.SSRF.AllowedHosts != nil {
		dst.SSRF.AllowedHosts = src.SSRF.AllowedHosts
	}
	if src.Verify.CompletionThreshold != 0 {
		dst.Verify.CompletionThreshold = src.Verify.CompletionThreshold
	}
	if src.Verify.ExecutionSuccessRate != 0 {
		dst.Verify.ExecutionSuccessRate = src.Verify.ExecutionSuccessRate
	}
	if src.Effect.Initial != 0 {
		dst.Effect.Initial = src.Effect.Initial
	}
	if src.Effect.Min != 0 {
		dst.Effect.Min = src.Effect.Min
	}
	if src.Effect.Max != 0 {
		dst.Effect.Max = src.Effect.Max
	}
	return dst
}

// applyEnv overlays PHASECORE_* and the spec's bare env-var names onto cfg.
func applyEnv(cfg *Config) *Config {
	if v, ok := getEnvString("PHASECORE_OUTPUT"); ok {
		cfg.Output = v
	}
	if v, ok := getEnvString("PHASECORE_BASE_DIR"); ok {
		cfg.BaseDir = v
	}
	if b, ok := getEnvBool("PHASECORE_VERBOSE"); ok {
		cfg.Verbose = b
	}
	if n, ok := envInt("KNOWLEDGE_MAX_CONCURRENCY"); ok {
		cfg.Knowledge.MaxConcurrency = n
	}
	if n, ok := envInt("KNOWLEDGE_TIMEOUT_MS"); ok {
		cfg.Knowledge.TimeoutMS = n
	}
	if f, ok := envFloat("KNOWLEDGE_CONFIDENCE_THRESHOLD"); ok {
		cfg.Knowledge.ConfidenceThreshold = f
	}
	if n, ok := envInt("KNOWLEDGE_MAX_RESPONSE_SIZE"); ok {
		cfg.Knowledge.MaxResponseSize = n
	}
	if b, ok := getEnvBool("AUTO_CONNECTION_ENABLED"); ok {
		cfg.Knowledge.AutoConnectionEnabled = b
	}
	if n, ok := envInt("RATE_LIMIT_REQUESTS_PER_MINUTE"); ok {
		cfg.RateLimit.RequestsPerMinute = n
	}
	if n, ok := envInt("RATE_LIMIT_WINDOW_MS"); ok {
		cfg.RateLimit.WindowMS = n
	}
	if n, ok := envInt("MAX_CONTENT_LENGTH"); ok {
		cfg.Knowledge.MaxContentLength = int64(n)
	}
	if n, ok := envInt("VERIFICATION_COMPLETION_THRESHOLD"); ok {
		cfg.Verify.CompletionThreshold = n
	}
	if f, ok := envFloat("EXECUTION_SUCCESS_RATE_THRESHOLD"); ok {
		cfg.Verify.ExecutionSuccessRate = f
	}
	if f, ok := envFloat("INITIAL_REASONING_EFFECTIVENESS"); ok {
		cfg.Effect.Initial = f
	}
	if f, ok := envFloat("MIN_REASONING_EFFECTIVENESS"); ok {
		cfg.Effect.Min = f
	}
	if f, ok := envFloat("MAX_REASONING_EFFECTIVENESS"); ok {
		cfg.Effect.Max = f
	}
	if v, ok := getEnvString("ALLOWED_HOSTS"); ok {
		cfg.SSRF.AllowedHosts = splitCSV(v)
	}
	if b, ok := getEnvBool("ENABLE_SSRF_PROTECTION"); ok {
		cfg.SSRF.Enabled = b
	}
	if v, ok := getEnvString("USER_AGENT"); ok {
		cfg.Knowledge.UserAgent = v
	}
	return cfg
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvBool(key string) (bool, bool) {
	v, ok := getEnvString(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func getEnvString(key string) (string, bool) {
	v := os.Getenv(key)
	if v == "" {
		return "", false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	v, ok := getEnvString(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v, ok := getEnvString(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Source identifies which layer of the precedence chain produced a resolved
// field's value.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "home"
	SourceProject Source = "project"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Field pairs a resolved value with the layer that produced it.
type Field struct {
	Value  string `json:"value"`
	Source Source `json:"source"`
}

// ResolvedConfig is the output of Resolve: the subset of Config fields that
// the `config show` diagnostic command renders, each tagged with its source.
type ResolvedConfig struct {
	Output  Field
	BaseDir Field
	Verbose FieldBool
}

// FieldBool is Field specialized for boolean options.
type FieldBool struct {
	Value  bool   `json:"value"`
	Source Source `json:"source"`
}

// resolveStringField walks the precedence chain for one string option and
// reports which layer won.
func resolveStringField(home, project, env, flag, def string) Field {
	if flag != "" {
		return Field{Value: flag, Source: SourceFlag}
	}
	if env != "" {
		return Field{Value: env, Source: SourceEnv}
	}
	if project != "" {
		return Field{Value: project, Source: SourceProject}
	}
	if home != "" {
		return Field{Value: home, Source: SourceHome}
	}
	return Field{Value: def, Source: SourceDefault}
}

// Resolve reports, per option, which configuration layer supplied the
// effective value. It is used by `phasecore config show` and intentionally
// re-walks the layers independently of Load so it can attribute sources.
func Resolve(flagOutput, flagBaseDir string, flagVerbose bool) ResolvedConfig {
	def := Default()

	var home, proj *Config
	home, _ = loadFromPath(homeConfigPath())
	proj, _ = loadFromPath(projectConfigPath())

	homeOutput, homeBaseDir, homeVerbose := "", "", false
	if home != nil {
		homeOutput, homeBaseDir, homeVerbose = home.Output, home.BaseDir, home.Verbose
	}
	projOutput, projBaseDir, projVerbose := "", "", false
	if proj != nil {
		projOutput, projBaseDir, projVerbose = proj.Output, proj.BaseDir, proj.Verbose
	}

	envOutput, _ := getEnvString("PHASECORE_OUTPUT")
	envBaseDir, _ := getEnvString("PHASECORE_BASE_DIR")
	envVerboseRaw, envVerboseSet := getEnvBool("PHASECORE_VERBOSE")

	rc := ResolvedConfig{
		Output:  resolveStringField(homeOutput, projOutput, envOutput, flagOutput, def.Output),
		BaseDir: resolveStringField(homeBaseDir, projBaseDir, envBaseDir, flagBaseDir, def.BaseDir),
	}

	switch {
	case flagVerbose:
		rc.Verbose = FieldBool{Value: true, Source: SourceFlag}
	case envVerboseSet:
		rc.Verbose = FieldBool{Value: envVerboseRaw, Source: SourceEnv}
	case projVerbose:
		rc.Verbose = FieldBool{Value: true, Source: SourceProject}
	case homeVerbose:
		rc.Verbose = FieldBool{Value: true, Source: SourceHome}
	default:
		rc.Verbose = FieldBool{Value: def.Verbose, Source: SourceDefault}
	}
	return rc
}
