package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// Provider kinds understood by the invoker.
const (
	ProviderOpenAI    = "openai"
	ProviderGenAI     = "genai"
	ProviderDiffusion = "diffusion"
)

// DefaultTimeoutKey is the timeouts entry used for steps without their own entry.
const DefaultTimeoutKey = "default"

// ProviderConfig describes one upstream backend.
type ProviderConfig struct {
	// Kind selects the client: openai, genai or diffusion
	Kind string `yaml:"kind"`

	// BaseURL overrides the provider endpoint
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key
	APIKeyEnv string `yaml:"api_key_env"`

	// ReleasePath is an optional diffusion worker endpoint that frees accelerator memory
	ReleasePath string `yaml:"release_path"`

	// APIKey is resolved from APIKeyEnv at startup, never read from YAML
	APIKey string `yaml:"-"`
}

// DeviceThresholds drives device-aware image parameter selection
type DeviceThresholds struct {
	// LowMemoryGB is the free accelerator memory below which parameters are reduced
	LowMemoryGB float64 `yaml:"low_memory_gb"`

	// CPUMaxSteps caps inference steps when running on CPU
	CPUMaxSteps int `yaml:"cpu_max_steps"`

	// ForceCPU skips accelerator detection entirely
	ForceCPU bool `yaml:"force_cpu"`

	// NvidiaSMI is the path to the nvidia-smi binary
	NvidiaSMI string `yaml:"nvidia_smi"`
}

// ResearchMode is one research tier: an ordered step list and a wall-clock budget
type ResearchMode struct {
	Steps  []string
	Budget time.Duration
}

// ResearchConfig holds research step composition
type ResearchConfig struct {
	// Modes maps "fast" and "comprehensive" to their step lists
	Modes map[string]ResearchMode

	// Templates overrides built-in prompt templates per step
	Templates map[string]string
}

// ImageConfig holds image generation defaults
type ImageConfig struct {
	Seed     int64
	Budget   time.Duration
	Width    int
	Height   int
	Steps    int
	Guidance float64
}

// ValidationConfig controls response validation in the invoker
type ValidationConfig struct {
	MinChars     int      `yaml:"min_chars"`
	ErrorPhrases []string `yaml:"error_phrases"`
}

// CacheConfig controls the optional response cache
type CacheConfig struct {
	Enabled  bool
	Dir      string
	InMemory bool
	TTL      time.Duration
}

// HistoryConfig controls run history persistence
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // sqlite3 or pgx
	DSN     string `yaml:"dsn"`
}

// S3Config describes an S3-compatible artifact bucket
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	Prefix       string `yaml:"prefix"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`

	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// ArtifactsConfig controls where generated images and reports are stored
type ArtifactsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Kind    string   `yaml:"kind"` // local or s3
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// TelegramConfig controls the chat front-end
type TelegramConfig struct {
	TokenEnv        string `yaml:"token_env"`
	MaxMessageChars int    `yaml:"max_message_chars"`
}

// Config is the immutable process configuration. It is loaded once at
// startup, validated, and then shared read-only by every request.
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string

	// LogDir is the directory where run logs are written ("" disables file logging)
	LogDir string

	Providers map[string]ProviderConfig

	// Models maps a step name to its ranked candidate list
	Models map[string][]models.BackendCandidate

	// Timeouts maps a step name to its per-call timeout; "default" applies to the rest
	Timeouts map[string]time.Duration

	// TokenBudget is the maximum estimated prompt tokens for image generation
	TokenBudget int

	DeviceThresholds DeviceThresholds
	Research         ResearchConfig
	Image            ImageConfig
	Validation       ValidationConfig
	Cache            CacheConfig
	History          HistoryConfig
	Artifacts        ArtifactsConfig
	Server           ServerConfig
	Telegram         TelegramConfig
}

func textCandidates(temperature float64, maxTokens int) []models.BackendCandidate {
	return []models.BackendCandidate{
		{
			ID:          "mistral-7b",
			Provider:    "together",
			Model:       "mistralai/Mistral-7B-Instruct-v0.2",
			Rank:        0,
			Temperature: temperature,
			MaxTokens:   maxTokens,
			TopP:        0.9,
		},
		{
			ID:          "redpajama-3b",
			Provider:    "together",
			Model:       "togethercomputer/RedPajama-INCITE-Chat-3B-v1",
			Rank:        1,
			Temperature: temperature,
			MaxTokens:   maxTokens,
			TopP:        0.9,
		},
	}
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		LogDir:   "logs",
		Providers: map[string]ProviderConfig{
			"together": {
				Kind:      ProviderOpenAI,
				BaseURL:   "https://api.together.xyz/v1",
				APIKeyEnv: "TOGETHER_API_KEY",
			},
			"sd-worker": {
				Kind:    ProviderDiffusion,
				BaseURL: "http://127.0.0.1:7860",
			},
		},
		Models: map[string][]models.BackendCandidate{
			models.StepMainResearch:    textCandidates(0.7, 1500),
			models.StepInitialResearch: textCandidates(0.7, 1500),
			models.StepFactCheck:       textCandidates(0.3, 800),
			models.StepAnalysis:        textCandidates(0.6, 1000),
			models.StepInsights:        textCandidates(0.6, 1000),
			models.StepSummarize:       textCandidates(0.5, 600),
			models.StepCompile:         textCandidates(0.7, 1500),
			models.StepFollowUp:        textCandidates(0.7, 1500),
			models.StepFollowUpQs:      textCandidates(0.6, 400),
			models.StepRefinePrompt:    textCandidates(0.7, 200),
			models.StepGenerate: {
				{
					ID:       "sd15",
					Provider: "sd-worker",
					Model:    "runwayml/stable-diffusion-v1-5",
					Device:   models.DeviceAccelerated,
				},
			},
		},
		Timeouts: map[string]time.Duration{
			DefaultTimeoutKey:   30 * time.Second,
			models.StepCompile:  45 * time.Second,
			models.StepGenerate: 120 * time.Second,
		},
		TokenBudget: 75,
		DeviceThresholds: DeviceThresholds{
			LowMemoryGB: 2,
			CPUMaxSteps: 15,
			NvidiaSMI:   "nvidia-smi",
		},
		Research: ResearchConfig{
			Modes: map[string]ResearchMode{
				models.ModeFast: {
					Steps:  []string{models.StepMainResearch, models.StepSummarize},
					Budget: 60 * time.Second,
				},
				models.ModeComprehensive: {
					Steps: []string{
						models.StepInitialResearch,
						models.StepFactCheck,
						models.StepAnalysis,
						models.StepInsights,
						models.StepSummarize,
						models.StepCompile,
					},
					Budget: 120 * time.Second,
				},
			},
			Templates: map[string]string{},
		},
		Image: ImageConfig{
			Seed:     1024,
			Budget:   180 * time.Second,
			Width:    models.DefaultImageWidth,
			Height:   models.DefaultImageHeight,
			Steps:    models.DefaultImageSteps,
			Guidance: models.DefaultImageGuidance,
		},
		Validation: ValidationConfig{
			MinChars: 20,
			ErrorPhrases: []string{
				"an error occurred",
				"internal server error",
				"is currently unavailable",
				"error:",
			},
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     "cache",
			TTL:     24 * time.Hour,
		},
		History: HistoryConfig{
			Enabled: true,
			Driver:  "sqlite3",
			DSN:     "history.db",
		},
		Artifacts: ArtifactsConfig{
			Enabled: false,
			Kind:    "local",
			Dir:     "artifacts",
		},
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   5 * time.Minute,
		},
		Telegram: TelegramConfig{
			TokenEnv:        "TELEGRAM_BOT_TOKEN",
			MaxMessageChars: 4000,
		},
	}
}

// yamlMode mirrors ResearchMode with a string budget
type yamlMode struct {
	Steps  []string `yaml:"steps"`
	Budget string   `yaml:"budget"`
}

// yamlConfig mirrors Config with durations as strings
type yamlConfig struct {
	LogLevel         string                               `yaml:"log_level"`
	LogDir           *string                              `yaml:"log_dir"`
	Providers        map[string]ProviderConfig            `yaml:"providers"`
	Models           map[string][]models.BackendCandidate `yaml:"models"`
	Timeouts         map[string]string                    `yaml:"timeouts"`
	TokenBudget      int                                  `yaml:"token_budget"`
	DeviceThresholds *DeviceThresholds                    `yaml:"device_thresholds"`
	Research         struct {
		Modes     map[string]yamlMode `yaml:"modes"`
		Templates map[string]string   `yaml:"templates"`
	} `yaml:"research"`
	Image struct {
		Seed     int64   `yaml:"seed"`
		Budget   string  `yaml:"budget"`
		Width    int     `yaml:"width"`
		Height   int     `yaml:"height"`
		Steps    int     `yaml:"steps"`
		Guidance float64 `yaml:"guidance"`
	} `yaml:"image"`
	Validation *ValidationConfig `yaml:"validation"`
	Cache      *struct {
		Enabled  bool   `yaml:"enabled"`
		Dir      string `yaml:"dir"`
		InMemory bool   `yaml:"in_memory"`
		TTL      string `yaml:"ttl"`
	} `yaml:"cache"`
	History   *HistoryConfig   `yaml:"history"`
	Artifacts *ArtifactsConfig `yaml:"artifacts"`
	Server    struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		ReadTimeout    string   `yaml:"read_timeout"`
		WriteTimeout   string   `yaml:"write_timeout"`
	} `yaml:"server"`
	Telegram *TelegramConfig `yaml:"telegram"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.resolvePaths(filepath.Dir(path))
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.apply(&yamlCfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// resolvePaths anchors relative state paths at base, the directory holding
// the config file. An empty log_dir stays empty and only sqlite file DSNs
// are treated as paths.
func (c *Config) resolvePaths(base string) {
	anchor := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	c.LogDir = anchor(c.LogDir)
	c.Cache.Dir = anchor(c.Cache.Dir)
	if c.Artifacts.Kind == "local" {
		c.Artifacts.Dir = anchor(c.Artifacts.Dir)
	}
	if c.History.Driver == "sqlite3" && c.History.DSN != ":memory:" && !strings.HasPrefix(c.History.DSN, "file:") {
		c.History.DSN = anchor(c.History.DSN)
	}
}

// LoadConfigFromDir loads config.yaml from the specified home directory
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, "config.yaml"))
}

// apply merges non-zero values from the file over the defaults.
// Maps merge per key; a step listed under models replaces that step's candidates.
func (c *Config) apply(y *yamlConfig) error {
	if y.LogLevel != "" {
		c.LogLevel = y.LogLevel
	}
	// log_dir is honoured even when empty so file logging can be switched off
	if y.LogDir != nil {
		c.LogDir = *y.LogDir
	}

	for name, p := range y.Providers {
		c.Providers[name] = p
	}
	for step, candidates := range y.Models {
		c.Models[step] = candidates
	}
	for step, raw := range y.Timeouts {
		d, err := parseDuration("timeouts."+step, raw)
		if err != nil {
			return err
		}
		c.Timeouts[step] = d
	}
	if y.TokenBudget != 0 {
		c.TokenBudget = y.TokenBudget
	}
	if y.DeviceThresholds != nil {
		dt := *y.DeviceThresholds
		if dt.LowMemoryGB != 0 {
			c.DeviceThresholds.LowMemoryGB = dt.LowMemoryGB
		}
		if dt.CPUMaxSteps != 0 {
			c.DeviceThresholds.CPUMaxSteps = dt.CPUMaxSteps
		}
		if dt.NvidiaSMI != "" {
			c.DeviceThresholds.NvidiaSMI = dt.NvidiaSMI
		}
		c.DeviceThresholds.ForceCPU = dt.ForceCPU
	}

	for name, m := range y.Research.Modes {
		mode := c.Research.Modes[name]
		if len(m.Steps) > 0 {
			mode.Steps = m.Steps
		}
		if m.Budget != "" {
			d, err := parseDuration("research.modes."+name+".budget", m.Budget)
			if err != nil {
				return err
			}
			mode.Budget = d
		}
		c.Research.Modes[name] = mode
	}
	for step, tmpl := range y.Research.Templates {
		c.Research.Templates[step] = tmpl
	}

	if y.Image.Seed != 0 {
		c.Image.Seed = y.Image.Seed
	}
	if y.Image.Budget != "" {
		d, err := parseDuration("image.budget", y.Image.Budget)
		if err != nil {
			return err
		}
		c.Image.Budget = d
	}
	if y.Image.Width != 0 {
		c.Image.Width = y.Image.Width
	}
	if y.Image.Height != 0 {
		c.Image.Height = y.Image.Height
	}
	if y.Image.Steps != 0 {
		c.Image.Steps = y.Image.Steps
	}
	if y.Image.Guidance != 0 {
		c.Image.Guidance = y.Image.Guidance
	}

	if y.Validation != nil {
		if y.Validation.MinChars != 0 {
			c.Validation.MinChars = y.Validation.MinChars
		}
		if y.Validation.ErrorPhrases != nil {
			c.Validation.ErrorPhrases = y.Validation.ErrorPhrases
		}
	}

	if y.Cache != nil {
		c.Cache.Enabled = y.Cache.Enabled
		c.Cache.InMemory = y.Cache.InMemory
		if y.Cache.Dir != "" {
			c.Cache.Dir = y.Cache.Dir
		}
		if y.Cache.TTL != "" {
			d, err := parseDuration("cache.ttl", y.Cache.TTL)
			if err != nil {
				return err
			}
			c.Cache.TTL = d
		}
	}

	if y.History != nil {
		c.History.Enabled = y.History.Enabled
		if y.History.Driver != "" {
			c.History.Driver = y.History.Driver
		}
		if y.History.DSN != "" {
			c.History.DSN = y.History.DSN
		}
	}

	if y.Artifacts != nil {
		a := *y.Artifacts
		c.Artifacts.Enabled = a.Enabled
		if a.Kind != "" {
			c.Artifacts.Kind = a.Kind
		}
		if a.Dir != "" {
			c.Artifacts.Dir = a.Dir
		}
		c.Artifacts.S3 = a.S3
	}

	if y.Server.Addr != "" {
		c.Server.Addr = y.Server.Addr
	}
	if y.Server.AllowedOrigins != nil {
		c.Server.AllowedOrigins = y.Server.AllowedOrigins
	}
	if y.Server.ReadTimeout != "" {
		d, err := parseDuration("server.read_timeout", y.Server.ReadTimeout)
		if err != nil {
			return err
		}
		c.Server.ReadTimeout = d
	}
	if y.Server.WriteTimeout != "" {
		d, err := parseDuration("server.write_timeout", y.Server.WriteTimeout)
		if err != nil {
			return err
		}
		c.Server.WriteTimeout = d
	}

	if y.Telegram != nil {
		if y.Telegram.TokenEnv != "" {
			c.Telegram.TokenEnv = y.Telegram.TokenEnv
		}
		if y.Telegram.MaxMessageChars != 0 {
			c.Telegram.MaxMessageChars = y.Telegram.MaxMessageChars
		}
	}

	return nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format %q: %w", field, raw, err)
	}
	return d, nil
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, logDir *string, addr *string, tokenBudget *int, forceCPU *bool) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if addr != nil {
		c.Server.Addr = *addr
	}
	if tokenBudget != nil {
		c.TokenBudget = *tokenBudget
	}
	if forceCPU != nil {
		c.DeviceThresholds.ForceCPU = *forceCPU
	}
}

// Timeout returns the per-call timeout for step.
func (c *Config) Timeout(step string) time.Duration {
	if d, ok := c.Timeouts[step]; ok && d > 0 {
		return d
	}
	if d, ok := c.Timeouts[DefaultTimeoutKey]; ok && d > 0 {
		return d
	}
	return 30 * time.Second
}

// Candidates returns the rank-ordered candidates for step.
func (c *Config) Candidates(step string) []models.BackendCandidate {
	return models.SortByRank(c.Models[step])
}

// Mode returns the research mode named name.
func (c *Config) Mode(name string) (ResearchMode, bool) {
	m, ok := c.Research.Modes[name]
	return m, ok
}

// requiredSteps lists every step that must have at least one candidate.
func (c *Config) requiredSteps() []string {
	seen := map[string]bool{
		models.StepFollowUp: true,
		models.StepGenerate: true,
	}
	for _, mode := range c.Research.Modes {
		for _, s := range mode.Steps {
			seen[s] = true
		}
	}
	steps := make([]string, 0, len(seen))
	for s := range seen {
		steps = append(steps, s)
	}
	sort.Strings(steps)
	return steps
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.TokenBudget <= 3 {
		return fmt.Errorf("token_budget must be > 3, got %d", c.TokenBudget)
	}
	if c.DeviceThresholds.LowMemoryGB < 0 {
		return fmt.Errorf("device_thresholds.low_memory_gb must be >= 0, got %v", c.DeviceThresholds.LowMemoryGB)
	}
	if c.DeviceThresholds.CPUMaxSteps <= 0 {
		return fmt.Errorf("device_thresholds.cpu_max_steps must be > 0, got %d", c.DeviceThresholds.CPUMaxSteps)
	}

	for name, p := range c.Providers {
		switch p.Kind {
		case ProviderOpenAI, ProviderGenAI:
		case ProviderDiffusion:
			if p.BaseURL == "" {
				return fmt.Errorf("providers.%s: base_url is required for diffusion providers", name)
			}
		default:
			return fmt.Errorf("providers.%s: unknown kind %q, must be one of: openai, genai, diffusion", name, p.Kind)
		}
	}

	for step, candidates := range c.Models {
		for i, cand := range candidates {
			if cand.Provider == "" {
				return fmt.Errorf("models.%s[%d]: provider is required", step, i)
			}
			if _, ok := c.Providers[cand.Provider]; !ok {
				return fmt.Errorf("models.%s[%d]: unknown provider %q", step, i, cand.Provider)
			}
			if cand.Model == "" && cand.ID == "" {
				return fmt.Errorf("models.%s[%d]: model or id is required", step, i)
			}
			if cand.Device != "" && cand.Device != models.DeviceAccelerated && cand.Device != models.DeviceCPU {
				return fmt.Errorf("models.%s[%d]: device must be accelerated or cpu, got %q", step, i, cand.Device)
			}
		}
	}

	for _, name := range []string{models.ModeFast, models.ModeComprehensive} {
		mode, ok := c.Research.Modes[name]
		if !ok || len(mode.Steps) == 0 {
			return fmt.Errorf("research.modes.%s: at least one step is required", name)
		}
		if mode.Budget <= 0 {
			return fmt.Errorf("research.modes.%s.budget must be > 0, got %v", name, mode.Budget)
		}
	}

	for _, step := range c.requiredSteps() {
		if len(c.Models[step]) == 0 {
			return fmt.Errorf("models.%s: no candidates configured", step)
		}
	}

	for step, d := range c.Timeouts {
		if d < 0 {
			return fmt.Errorf("timeouts.%s must be >= 0, got %v", step, d)
		}
	}

	if c.Image.Budget <= 0 {
		return fmt.Errorf("image.budget must be > 0, got %v", c.Image.Budget)
	}
	if c.Validation.MinChars < 0 {
		return fmt.Errorf("validation.min_chars must be >= 0, got %d", c.Validation.MinChars)
	}

	if c.Cache.Enabled && !c.Cache.InMemory && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir cannot be empty when cache is enabled")
	}

	if c.History.Enabled {
		if c.History.Driver != "sqlite3" && c.History.Driver != "pgx" {
			return fmt.Errorf("history.driver must be sqlite3 or pgx, got %q", c.History.Driver)
		}
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn cannot be empty when history is enabled")
		}
	}

	if c.Artifacts.Enabled {
		switch c.Artifacts.Kind {
		case "local":
			if c.Artifacts.Dir == "" {
				return fmt.Errorf("artifacts.dir cannot be empty for local artifacts")
			}
		case "s3":
			if c.Artifacts.S3.Bucket == "" {
				return fmt.Errorf("artifacts.s3.bucket cannot be empty for s3 artifacts")
			}
		default:
			return fmt.Errorf("artifacts.kind must be local or s3, got %q", c.Artifacts.Kind)
		}
	}

	return nil
}

// ResolveCredentials reads provider API keys and storage secrets from the
// environment. A provider that is referenced by a candidate and names an
// api_key_env must resolve to a non-empty key.
func (c *Config) ResolveCredentials(getenv func(string) string) error {
	used := make(map[string]bool)
	for _, candidates := range c.Models {
		for _, cand := range candidates {
			used[cand.Provider] = true
		}
	}

	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := c.Providers[name]
		if p.APIKeyEnv == "" {
			continue
		}
		p.APIKey = getenv(p.APIKeyEnv)
		if p.APIKey == "" && used[name] {
			return fmt.Errorf("providers.%s: environment variable %s is not set", name, p.APIKeyEnv)
		}
		c.Providers[name] = p
	}

	if c.Artifacts.Enabled && c.Artifacts.Kind == "s3" {
		s3 := &c.Artifacts.S3
		if s3.AccessKeyEnv != "" {
			s3.AccessKey = getenv(s3.AccessKeyEnv)
			if s3.AccessKey == "" {
				return fmt.Errorf("artifacts.s3: environment variable %s is not set", s3.AccessKeyEnv)
			}
		}
		if s3.SecretKeyEnv != "" {
			s3.SecretKey = getenv(s3.SecretKeyEnv)
			if s3.SecretKey == "" {
				return fmt.Errorf("artifacts.s3: environment variable %s is not set", s3.SecretKeyEnv)
			}
		}
	}

	return nil
}

// TelegramToken resolves the bot token from the environment.
func (c *Config) TelegramToken(getenv func(string) string) (string, error) {
	token := getenv(c.Telegram.TokenEnv)
	if token == "" {
		return "", fmt.Errorf("telegram: environment variable %s is not set", c.Telegram.TokenEnv)
	}
	return token, nil
}
