package config

import (
	"strconv"
	"strings"
)

// Upstream describes one upstream provider deployment.
type Upstream struct {
	ID        string   `yaml:"id" json:"id"`
	Endpoints []string `yaml:"endpoints" json:"endpoints"`
	APIStyle  string   `yaml:"api_style,omitempty" json:"api_style,omitempty"`
	APIKey    string   `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// ModelRoute is one candidate routing target for a model.
type ModelRoute struct {
	Provider        string `yaml:"provider" json:"provider"`
	UpstreamID      string `yaml:"upstream_id" json:"upstream_id"`
	UpstreamModelID string `yaml:"upstream_model_id,omitempty" json:"upstream_model_id,omitempty"`
	Priority        int    `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// ModelCfg is a published model with its routing and pricing.
type ModelCfg struct {
	ID                    string       `yaml:"id" json:"id"`
	DisplayName           string       `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Provider              string       `yaml:"provider,omitempty" json:"provider,omitempty"`
	UpstreamID            string       `yaml:"upstream_id,omitempty" json:"upstream_id,omitempty"`
	UpstreamModelID       string       `yaml:"upstream_model_id,omitempty" json:"upstream_model_id,omitempty"`
	Routes                []ModelRoute `yaml:"routes,omitempty" json:"routes,omitempty"`
	PricePromptPer1K      float64      `yaml:"price_prompt_per_1k,omitempty" json:"price_prompt_per_1k,omitempty"`
	PriceCompletionPer1K  float64      `yaml:"price_completion_per_1k,omitempty" json:"price_completion_per_1k,omitempty"`
	Priority              int          `yaml:"priority,omitempty" json:"priority,omitempty"`
	IsTemporary           bool         `yaml:"is_temporary,omitempty" json:"is_temporary,omitempty"`
}

// ResolvedRoutes returns the candidate routes for the model.
// Explicit routes win; otherwise a single route is synthesized from the
// top-level provider/upstream fields when both are present.
func (m *ModelCfg) ResolvedRoutes() []ModelRoute {
	if len(m.Routes) > 0 {
		return m.Routes
	}
	if m.Provider == "" || m.UpstreamID == "" {
		return nil
	}
	return []ModelRoute{{
		Provider:        m.Provider,
		UpstreamID:      m.UpstreamID,
		UpstreamModelID: m.UpstreamModelID,
		Priority:        m.Priority,
	}}
}

// LimitsConfig gates request admission. Zero-valued pointers mean "not configured".
type LimitsConfig struct {
	RPM                     *int     `yaml:"rpm,omitempty" json:"rpm,omitempty"`
	MaxConcurrent           *int     `yaml:"max_concurrent,omitempty" json:"max_concurrent,omitempty"`
	MaxConcurrentPerSession *int     `yaml:"max_concurrent_per_session,omitempty" json:"max_concurrent_per_session,omitempty"`
	BudgetDailyUSD          *float64 `yaml:"budget_daily_usd,omitempty" json:"budget_daily_usd,omitempty"`
	BudgetWeeklyUSD         *float64 `yaml:"budget_weekly_usd,omitempty" json:"budget_weekly_usd,omitempty"`
	BudgetMonthlyUSD        *float64 `yaml:"budget_monthly_usd,omitempty" json:"budget_monthly_usd,omitempty"`
}

// Configured reports whether any limit is set.
func (l *LimitsConfig) Configured() bool {
	if l == nil {
		return false
	}
	return l.RPM != nil || l.MaxConcurrent != nil || l.MaxConcurrentPerSession != nil ||
		l.BudgetDailyUSD != nil || l.BudgetWeeklyUSD != nil || l.BudgetMonthlyUSD != nil
}

// BackupConfig controls settings-file snapshots. The boolean fields are
// pointers so an absent key defaults to enabled.
type BackupConfig struct {
	Enabled            *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Dir                string `yaml:"dir,omitempty" json:"dir,omitempty"`
	MaxBackups         int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	AutoBackupOnConfig *bool  `yaml:"auto_backup_on_config,omitempty" json:"auto_backup_on_config,omitempty"`
}

// IsEnabled reports whether backups are on (default true).
func (b *BackupConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// AutoOnConfig reports whether every config save snapshots (default true).
func (b *BackupConfig) AutoOnConfig() bool {
	return b.AutoBackupOnConfig == nil || *b.AutoBackupOnConfig
}

// ServerConfig holds process-level options.
type ServerConfig struct {
	Listen         string `yaml:"listen,omitempty" json:"listen,omitempty"`
	Debug          bool   `yaml:"debug,omitempty" json:"debug,omitempty"`
	LogFile        string `yaml:"log_file,omitempty" json:"log_file,omitempty"`
	DataDir        string `yaml:"data_dir,omitempty" json:"data_dir,omitempty"`
	PostgresDSN    string `yaml:"postgres_dsn,omitempty" json:"postgres_dsn,omitempty"`
	RedisAddr      string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RateLimitRPS   int    `yaml:"rate_limit_rps,omitempty" json:"rate_limit_rps,omitempty"`
	RateLimitBurst int    `yaml:"rate_limit_burst,omitempty" json:"rate_limit_burst,omitempty"`
}

// Settings is the root configuration document.
type Settings struct {
	Server              ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`
	Upstreams           []Upstream   `yaml:"upstreams" json:"upstreams"`
	Models              []ModelCfg   `yaml:"models" json:"models"`
	RetryMaxAttempts    *int         `yaml:"retry_max_attempts,omitempty" json:"retry_max_attempts,omitempty"`
	RetryInitialMS      *int64       `yaml:"retry_initial_ms,omitempty" json:"retry_initial_ms,omitempty"`
	RetryMaxMS          *int64       `yaml:"retry_max_ms,omitempty" json:"retry_max_ms,omitempty"`
	ForwardToken        string       `yaml:"forward_token,omitempty" json:"forward_token,omitempty"`
	PreferredAPIStyle   string       `yaml:"preferred_api_style,omitempty" json:"preferred_api_style,omitempty"`
	Proxy               string       `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	EnableRetryFallback bool         `yaml:"enable_retry_fallback,omitempty" json:"enable_retry_fallback,omitempty"`
	EnableDynamicModel  bool         `yaml:"enable_dynamic_model,omitempty" json:"enable_dynamic_model,omitempty"`
	Limits              LimitsConfig `yaml:"limits,omitempty" json:"limits,omitempty"`
	Backup              BackupConfig `yaml:"backup,omitempty" json:"backup,omitempty"`
}

// UpstreamByID finds an upstream by id, case-insensitively. A string
// integer is accepted as a legacy index reference, and a single-upstream
// config acts as a catch-all for any id.
func (s *Settings) UpstreamByID(id string) *Upstream {
	id = strings.TrimSpace(id)
	for i := range s.Upstreams {
		if strings.EqualFold(s.Upstreams[i].ID, id) {
			return &s.Upstreams[i]
		}
	}
	if n, err := strconv.Atoi(id); err == nil && n >= 0 && n < len(s.Upstreams) {
		return &s.Upstreams[n]
	}
	if len(s.Upstreams) == 1 {
		return &s.Upstreams[0]
	}
	return nil
}
