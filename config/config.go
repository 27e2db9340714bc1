// Package config provides configuration loading for the incident-response
// pipeline agents: environment variables first, with an optional local-dev
// YAML file layered on top for values awkward to export.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agent configuration.
type Config struct {
	Policy  PolicyConfig  `yaml:"policy"`
	Quota   QuotaConfig   `yaml:"quota"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Model   ModelConfig   `yaml:"model"`
	Enrich  EnrichConfig  `yaml:"enrich"`
	Broker  BrokerConfig  `yaml:"broker"`
	Store   StoreConfig   `yaml:"store"`
	Learner LearnerConfig `yaml:"learner"`
	Observ  ObservConfig  `yaml:"observability"`
}

// PolicyConfig configures risk and confidence thresholds shared by the
// Collaborator and Actor.
type PolicyConfig struct {
	// MaxAutonomyRisk is the ceiling above which the Actor skips execution
	// entirely (env MAX_AUTONOMY_RISK, default 0.3).
	MaxAutonomyRisk float64 `yaml:"max_autonomy_risk"`
	// ConfidenceThreshold gates external web lookup during enrichment
	// (env CONFIDENCE_THRESHOLD, default 0.8).
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// AutoApproveRiskLevel is the Collaborator's medium-risk auto-approval
	// policy value (env AUTO_APPROVE_RISK_LEVEL, default "medium").
	AutoApproveRiskLevel string `yaml:"auto_approve_risk_level"`
	// CriticalServices is the Planner's enhanced-synthesis trigger list:
	// an incident against one of these services always attempts enhanced
	// synthesis regardless of severity (env CRITICAL_SERVICES, comma-separated).
	CriticalServices []string `yaml:"critical_services"`
	// ComplexIncidentErrorLogThreshold is the error-log-count above which
	// an incident is considered "complex" for enhanced-synthesis purposes
	// (env COMPLEX_INCIDENT_ERROR_LOG_THRESHOLD, default 10).
	ComplexIncidentErrorLogThreshold int `yaml:"complex_incident_error_log_threshold"`
}

// QuotaConfig configures the Planner's enhanced-synthesis rolling quotas.
type QuotaConfig struct {
	// Daily is the rolling 24h enhanced-synthesis call limit (env DAILY_QUOTA, default 50).
	Daily int `yaml:"daily"`
	// Hourly is the rolling 1h enhanced-synthesis call limit (env HOURLY_QUOTA, default 10).
	Hourly int `yaml:"hourly"`
}

// SandboxConfig configures the Actor's tool sandbox.
type SandboxConfig struct {
	// Root is the filesystem root all sandboxed paths must resolve under
	// (env SANDBOX_ROOT).
	Root string `yaml:"root"`
	// AllowedCommands is the executable allow-list for shell.run
	// (env ALLOWED_COMMANDS, comma-separated).
	AllowedCommands []string `yaml:"allowed_commands"`
	// DefaultNamespace is the Kubernetes namespace used by cluster-CLI
	// steps when an incident does not specify one (env DEFAULT_NAMESPACE).
	DefaultNamespace string `yaml:"default_namespace"`
}

// ModelConfig configures LLM endpoint defaults layered on top of the
// model.Registry capability resolution.
type ModelConfig struct {
	// Endpoint is the default LLM API base URL.
	Endpoint string `yaml:"endpoint"`
	// APIKey authenticates against Endpoint.
	APIKey string `yaml:"api_key"`
	// EmbeddingModel is a model identifier for Learner summary embedding.
	// It is loaded but not read: embedding resolves its model through the
	// registry's embedding capability.
	EmbeddingModel string `yaml:"embedding_model"`
	// Timeout is loaded but not read: the LLM client uses its own fixed
	// HTTP timeout.
	Timeout time.Duration `yaml:"timeout"`
	// RegistryPath is an optional JSON capability/endpoint registry file
	// (model.LoadFromFile). Empty uses model.NewDefaultRegistry (env
	// MODEL_REGISTRY_PATH).
	RegistryPath string `yaml:"registry_path"`
}

// EnrichConfig configures the context-enrichment sources.
type EnrichConfig struct {
	// HistoryIndexURL is the historical-incident similarity search endpoint.
	HistoryIndexURL string `yaml:"history_index_url"`
	// CodeHistoryToken authenticates recent-code-change lookups.
	CodeHistoryToken string `yaml:"code_history_token"`
	// PublicKnowledgeURL is the web-search fallback source's query endpoint
	// (env PUBLIC_KNOWLEDGE_URL).
	PublicKnowledgeURL string `yaml:"public_knowledge_url"`
	// PublicKnowledgeKey authenticates the web-search fallback source.
	PublicKnowledgeKey string `yaml:"public_knowledge_key"`
	// FanoutConcurrency is a parallel-source-call bound (default 4). It is
	// loaded but not read: the enricher does not limit its source calls.
	FanoutConcurrency int `yaml:"fanout_concurrency"`
}

// BrokerConfig configures the message bus connection.
type BrokerConfig struct {
	// URL is the broker connection string.
	URL string `yaml:"url"`
	// DLQTTL is a dead-letter retention period (env DLE_TTL_S, default 7
	// days). It is loaded but not applied: the streams set no max age.
	DLQTTL time.Duration `yaml:"dlq_ttl"`
}

// StoreConfig configures the persistent plan/incident store.
type StoreConfig struct {
	// DatabaseURL is the Postgres connection string (env DATABASE_URL).
	DatabaseURL string `yaml:"database_url"`
}

// LearnerConfig configures the Learner's optional post-mortem document
// store (§4.5 step 3). DocStoreURL empty means the step is skipped.
type LearnerConfig struct {
	// DocStoreURL is the post-mortem webhook endpoint (env DOC_STORE_URL).
	DocStoreURL string `yaml:"doc_store_url"`
	// DocStoreAPIKey authenticates DocStoreURL (env DOC_STORE_API_KEY).
	DocStoreAPIKey string `yaml:"doc_store_api_key"`
}

// ObservConfig configures ambient logging, health, and metrics surfaces.
type ObservConfig struct {
	// LogLevel is one of debug, info, warn, error (env LOG_LEVEL, default info).
	LogLevel string `yaml:"log_level"`
	// LogFormat is "json" or "text" (env LOG_FORMAT, default json).
	LogFormat string `yaml:"log_format"`
	// HealthAddr is the bind address for the liveness/readiness server.
	HealthAddr string `yaml:"health_addr"`
	// MetricsAddr is loaded but not read: /metrics is served by the
	// HealthAddr server.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns a Config with the defaults named throughout this
// system's operating envelope.
func DefaultConfig() *Config {
	return &Config{
		Policy: PolicyConfig{
			MaxAutonomyRisk:                  0.3,
			ConfidenceThreshold:              0.8,
			AutoApproveRiskLevel:             "medium",
			ComplexIncidentErrorLogThreshold: 10,
		},
		Quota: QuotaConfig{
			Daily:  50,
			Hourly: 10,
		},
		Sandbox: SandboxConfig{
			Root:             "/var/lib/sentinel/sandbox",
			AllowedCommands:  []string{"kubectl", "sh", "cmd"},
			DefaultNamespace: "sandbox",
		},
		Model: ModelConfig{
			Endpoint:       "http://localhost:11434/v1",
			EmbeddingModel: "claude-haiku",
			Timeout:        30 * time.Second,
		},
		Enrich: EnrichConfig{
			FanoutConcurrency: 4,
		},
		Broker: BrokerConfig{
			URL:    "nats://localhost:4222",
			DLQTTL: 7 * 24 * time.Hour,
		},
		Observ: ObservConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			HealthAddr:  ":8081",
			MetricsAddr: ":9090",
		},
	}
}

// Validate checks that the configuration is internally consistent. Agents
// call this once at startup; a failure here is fatal.
func (c *Config) Validate() error {
	if c.Policy.MaxAutonomyRisk < 0 || c.Policy.MaxAutonomyRisk > 1 {
		return fmt.Errorf("policy.max_autonomy_risk must be between 0 and 1")
	}
	if c.Policy.ConfidenceThreshold < 0 || c.Policy.ConfidenceThreshold > 1 {
		return fmt.Errorf("policy.confidence_threshold must be between 0 and 1")
	}
	switch c.Policy.AutoApproveRiskLevel {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("policy.auto_approve_risk_level must be one of low, medium, high")
	}
	if c.Quota.Daily <= 0 {
		return fmt.Errorf("quota.daily must be positive")
	}
	if c.Quota.Hourly <= 0 {
		return fmt.Errorf("quota.hourly must be positive")
	}
	if c.Sandbox.Root == "" {
		return fmt.Errorf("sandbox.root is required")
	}
	if len(c.Sandbox.AllowedCommands) == 0 {
		return fmt.Errorf("sandbox.allowed_commands must not be empty")
	}
	if c.Broker.URL == "" {
		return fmt.Errorf("broker.url is required")
	}
	if c.Store.DatabaseURL == "" {
		return fmt.Errorf("store.database_url (DATABASE_URL) is required")
	}
	switch c.Observ.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("observability.log_format must be json or text")
	}
	return nil
}

// FromEnv builds a Config from environment variables, starting from
// DefaultConfig and overriding only the variables that are set.
func FromEnv() (*Config, error) {
	c := DefaultConfig()

	if err := overrideFloat(&c.Policy.MaxAutonomyRisk, "MAX_AUTONOMY_RISK"); err != nil {
		return nil, err
	}
	if err := overrideFloat(&c.Policy.ConfidenceThreshold, "CONFIDENCE_THRESHOLD"); err != nil {
		return nil, err
	}
	overrideString(&c.Policy.AutoApproveRiskLevel, "AUTO_APPROVE_RISK_LEVEL")
	if v, ok := os.LookupEnv("CRITICAL_SERVICES"); ok {
		c.Policy.CriticalServices = splitAndTrim(v)
	}
	if err := overrideInt(&c.Policy.ComplexIncidentErrorLogThreshold, "COMPLEX_INCIDENT_ERROR_LOG_THRESHOLD"); err != nil {
		return nil, err
	}

	if err := overrideInt(&c.Quota.Daily, "DAILY_QUOTA"); err != nil {
		return nil, err
	}
	if err := overrideInt(&c.Quota.Hourly, "HOURLY_QUOTA"); err != nil {
		return nil, err
	}

	overrideString(&c.Sandbox.Root, "SANDBOX_ROOT")
	if v, ok := os.LookupEnv("ALLOWED_COMMANDS"); ok {
		c.Sandbox.AllowedCommands = splitAndTrim(v)
	}
	overrideString(&c.Sandbox.DefaultNamespace, "DEFAULT_NAMESPACE")

	overrideString(&c.Model.Endpoint, "LLM_ENDPOINT")
	overrideString(&c.Model.APIKey, "LLM_API_KEY")
	overrideString(&c.Model.EmbeddingModel, "EMBEDDING_MODEL")
	if err := overrideDuration(&c.Model.Timeout, "LLM_TIMEOUT"); err != nil {
		return nil, err
	}
	overrideString(&c.Model.RegistryPath, "MODEL_REGISTRY_PATH")

	overrideString(&c.Enrich.HistoryIndexURL, "HISTORY_INDEX_URL")
	overrideString(&c.Enrich.CodeHistoryToken, "CODE_HISTORY_TOKEN")
	overrideString(&c.Enrich.PublicKnowledgeURL, "PUBLIC_KNOWLEDGE_URL")
	overrideString(&c.Enrich.PublicKnowledgeKey, "PUBLIC_KNOWLEDGE_KEY")
	if err := overrideInt(&c.Enrich.FanoutConcurrency, "ENRICH_FANOUT_CONCURRENCY"); err != nil {
		return nil, err
	}

	overrideString(&c.Broker.URL, "BROKER_URL")
	if err := overrideDurationSeconds(&c.Broker.DLQTTL, "DLE_TTL_S"); err != nil {
		return nil, err
	}

	overrideString(&c.Store.DatabaseURL, "DATABASE_URL")

	overrideString(&c.Learner.DocStoreURL, "DOC_STORE_URL")
	overrideString(&c.Learner.DocStoreAPIKey, "DOC_STORE_API_KEY")

	overrideString(&c.Observ.LogLevel, "LOG_LEVEL")
	overrideString(&c.Observ.LogFormat, "LOG_FORMAT")
	overrideString(&c.Observ.HealthAddr, "HEALTH_ADDR")
	overrideString(&c.Observ.MetricsAddr, "METRICS_ADDR")

	return c, nil
}

func overrideString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func overrideFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func overrideDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func overrideDurationSeconds(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = time.Duration(secs) * time.Second
	return nil
}

func splitAndTrim(v string) []string {
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

// LoadFromFile loads a local-dev configuration overlay from a YAML file.
// Unset fields remain at their zero value so Merge leaves the base
// untouched for anything the file doesn't mention.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Used to layer a local-dev YAML overlay on top of
// environment-derived defaults.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Policy.MaxAutonomyRisk != 0 {
		c.Policy.MaxAutonomyRisk = other.Policy.MaxAutonomyRisk
	}
	if other.Policy.ConfidenceThreshold != 0 {
		c.Policy.ConfidenceThreshold = other.Policy.ConfidenceThreshold
	}
	if other.Policy.AutoApproveRiskLevel != "" {
		c.Policy.AutoApproveRiskLevel = other.Policy.AutoApproveRiskLevel
	}
	if len(other.Policy.CriticalServices) > 0 {
		c.Policy.CriticalServices = other.Policy.CriticalServices
	}
	if other.Policy.ComplexIncidentErrorLogThreshold != 0 {
		c.Policy.ComplexIncidentErrorLogThreshold = other.Policy.ComplexIncidentErrorLogThreshold
	}

	if other.Quota.Daily != 0 {
		c.Quota.Daily = other.Quota.Daily
	}
	if other.Quota.Hourly != 0 {
		c.Quota.Hourly = other.Quota.Hourly
	}

	if other.Sandbox.Root != "" {
		c.Sandbox.Root = other.Sandbox.Root
	}
	if len(other.Sandbox.AllowedCommands) > 0 {
		c.Sandbox.AllowedCommands = other.Sandbox.AllowedCommands
	}
	if other.Sandbox.DefaultNamespace != "" {
		c.Sandbox.DefaultNamespace = other.Sandbox.DefaultNamespace
	}

	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.APIKey != "" {
		c.Model.APIKey = other.Model.APIKey
	}
	if other.Model.EmbeddingModel != "" {
		c.Model.EmbeddingModel = other.Model.EmbeddingModel
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}
	if other.Model.RegistryPath != "" {
		c.Model.RegistryPath = other.Model.RegistryPath
	}

	if other.Enrich.HistoryIndexURL != "" {
		c.Enrich.HistoryIndexURL = other.Enrich.HistoryIndexURL
	}
	if other.Enrich.CodeHistoryToken != "" {
		c.Enrich.CodeHistoryToken = other.Enrich.CodeHistoryToken
	}
	if other.Enrich.PublicKnowledgeURL != "" {
		c.Enrich.PublicKnowledgeURL = other.Enrich.PublicKnowledgeURL
	}
	if other.Enrich.PublicKnowledgeKey != "" {
		c.Enrich.PublicKnowledgeKey = other.Enrich.PublicKnowledgeKey
	}
	if other.Enrich.FanoutConcurrency != 0 {
		c.Enrich.FanoutConcurrency = other.Enrich.FanoutConcurrency
	}

	if other.Broker.URL != "" {
		c.Broker.URL = other.Broker.URL
	}
	if other.Broker.DLQTTL != 0 {
		c.Broker.DLQTTL = other.Broker.DLQTTL
	}

	if other.Store.DatabaseURL != "" {
		c.Store.DatabaseURL = other.Store.DatabaseURL
	}

	if other.Learner.DocStoreURL != "" {
		c.Learner.DocStoreURL = other.Learner.DocStoreURL
	}
	if other.Learner.DocStoreAPIKey != "" {
		c.Learner.DocStoreAPIKey = other.Learner.DocStoreAPIKey
	}

	if other.Observ.LogLevel != "" {
		c.Observ.LogLevel = other.Observ.LogLevel
	}
	if other.Observ.LogFormat != "" {
		c.Observ.LogFormat = other.Observ.LogFormat
	}
	if other.Observ.HealthAddr != "" {
		c.Observ.HealthAddr = other.Observ.HealthAddr
	}
	if other.Observ.MetricsAddr != "" {
		c.Observ.MetricsAddr = other.Observ.MetricsAddr
	}
}
