// Package config assembles RuntimeSettings from compiled-in defaults, an
// optional .ralph/config.yaml file, environment variables, and CLI flags,
// in that precedence order (§4.11). Only this package and cmd/ralph import
// viper; every other component consumes the plain RuntimeSettings struct.
package config

import (
	"time"

	"github.com/spf13/viper"

	"ralph/internal/runpaths"
)

// ContextFailurePolicy mirrors the original Rust ContextFailurePolicy enum.
type ContextFailurePolicy string

const (
	ContextBestEffort ContextFailurePolicy = "best-effort"
	ContextRequired   ContextFailurePolicy = "required"
)

// ContextCompileConfig mirrors context_compile.rs's ContextCompileConfig.
type ContextCompileConfig struct {
	Enabled             bool
	Policy              ContextFailurePolicy
	TokenBudget         uint64
	AssemblyPath        string
	ExcludeGlobs        []string
	ExcludeRuntimeGlobs []string
}

// DefaultContextCompileConfig mirrors the Rust Default impl.
func DefaultContextCompileConfig() ContextCompileConfig {
	return ContextCompileConfig{
		Enabled:             false,
		Policy:              ContextBestEffort,
		TokenBudget:         8000,
		AssemblyPath:        "assembly",
		ExcludeGlobs:        []string{".git/**", ".ralph/**"},
		ExcludeRuntimeGlobs: []string{},
	}
}

// RuntimeSettings is the merged configuration consumed by C7/C8/C2/C13.
type RuntimeSettings struct {
	Workspace      string
	TasksPath      string
	PromptPath     string
	BaseBranch     string
	Assignee       string
	LoopDelay      time.Duration
	ContextCompile ContextCompileConfig
	Telemetry      TelemetryConfig
	NoColor        bool
}

// TelemetryConfig toggles the optional metrics/tracing subsystem.
type TelemetryConfig struct {
	Enabled        bool
	PrometheusPort int
}

// Options carries the values a CLI invocation resolved from flags; zero
// values mean "not set by the flag layer" and defer to lower layers.
type Options struct {
	Workspace      string
	TasksPath      string
	PromptPath     string
	BaseBranch     string
	LoopDelay      time.Duration
	TokenBudget    uint64
	TelemetryAddr  string
	ContextEnabled *bool
}

// Load resolves RuntimeSettings for the given workspace: defaults, then
// .ralph/config.yaml if present, then environment variables, then opts.
func Load(opts Options) (RuntimeSettings, error) {
	workspace := opts.Workspace
	if workspace == "" {
		workspace = "."
	}

	v := viper.New()
	v.SetConfigFile(runpaths.ConfigPath(workspace))
	v.SetConfigType("yaml")

	v.SetDefault("base_branch", "main")
	v.SetDefault("loop_delay_seconds", 5)
	v.SetDefault("context_token_budget", 8000)
	v.SetDefault("telemetry_addr", "")

	_ = v.ReadInConfig() // absent config file is fine

	v.SetEnvPrefix("RALPH")
	v.BindEnv("base_branch", "BASE_BRANCH")
	v.BindEnv("assignee", "ASSIGNEE")
	v.BindEnv("loop_delay_seconds", "RALPH_LOOP_DELAY_SECONDS")
	v.BindEnv("context_token_budget", "RALPH_CONTEXT_TOKEN_BUDGET")
	v.BindEnv("telemetry_addr", "RALPH_TELEMETRY_ADDR")
	v.BindEnv("no_color", "NO_COLOR")

	settings := RuntimeSettings{
		Workspace:      workspace,
		TasksPath:      opts.TasksPath,
		PromptPath:     opts.PromptPath,
		BaseBranch:     v.GetString("base_branch"),
		Assignee:       v.GetString("assignee"),
		LoopDelay:      time.Duration(v.GetInt("loop_delay_seconds")) * time.Second,
		ContextCompile: DefaultContextCompileConfig(),
		NoColor:        v.GetString("no_color") != "",
	}
	settings.ContextCompile.TokenBudget = uint64(v.GetInt64("context_token_budget"))

	if addr := v.GetString("telemetry_addr"); addr != "" {
		settings.Telemetry.Enabled = true
		settings.Telemetry.PrometheusPort = parsePort(addr)
	}

	// CLI flags always win.
	if opts.BaseBranch != "" {
		settings.BaseBranch = opts.BaseBranch
	}
	if opts.LoopDelay > 0 {
		settings.LoopDelay = opts.LoopDelay
	}
	if opts.TokenBudget > 0 {
		settings.ContextCompile.TokenBudget = opts.TokenBudget
	}
	if opts.TelemetryAddr != "" {
		settings.Telemetry.Enabled = true
		settings.Telemetry.PrometheusPort = parsePort(opts.TelemetryAddr)
	}
	if opts.ContextEnabled != nil {
		settings.ContextCompile.Enabled = *opts.ContextEnabled
	}

	return settings, nil
}

func parsePort(addr string) int {
	port := 0
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			for _, c := range addr[i+1:] {
				if c < '0' || c > '9' {
					return 0
				}
				port = port*10 + int(c-'0')
			}
			return port
		}
	}
	return 0
}
