package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Naming backends.
const (
	NamingNone   = "none"
	NamingMemory = "memory"
	NamingNATS   = "nats"
)

// Duration is a time.Duration that reads "250ms"-style strings or a number
// of seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(val * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			secs, ferr := strconv.ParseFloat(val, 64)
			if ferr != nil {
				return fmt.Errorf("invalid duration %q", val)
			}
			parsed = time.Duration(secs * float64(time.Second))
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// Config is the runtime configuration of one rtcd process.
type Config struct {
	Version           string                            `json:"version,omitempty"`
	Node              string                            `json:"node,omitempty"`
	Logging           LoggingConfig                     `json:"logging"`
	Metrics           MetricsConfig                     `json:"metrics"`
	Admin             AdminConfig                       `json:"admin"`
	NATS              NATSConfig                        `json:"nats"`
	Naming            NamingConfig                      `json:"naming"`
	ExecutionContexts map[string]ExecutionContextConfig `json:"execution_contexts,omitempty"`
	Components        map[string]ComponentConfig        `json:"components,omitempty"`
	Connectors        []ConnectorConfig                 `json:"connectors,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// MetricsConfig controls the standalone Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// AdminConfig controls the HTTP admin API.
type AdminConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// NATSConfig defines the NATS connection. An empty URL list disables NATS.
// Zero tuning values keep the client defaults.
type NATSConfig struct {
	URLs          []string `json:"urls,omitempty"`
	Name          string   `json:"name,omitempty"`
	MaxReconnects int      `json:"max_reconnects"`
	ReconnectWait Duration `json:"reconnect_wait"`
	Timeout       Duration `json:"timeout,omitempty"`
	PingInterval  Duration `json:"ping_interval,omitempty"`
	DrainTimeout  Duration `json:"drain_timeout,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	Token         string   `json:"token,omitempty"`
	SubjectPrefix string   `json:"subject_prefix,omitempty"`
	LogSubject    string   `json:"log_subject,omitempty"`

	// Consecutive connect failures before the circuit opens, and the cap
	// on the backoff while it is open.
	CircuitThreshold int      `json:"circuit_threshold,omitempty"`
	MaxBackoff       Duration `json:"max_backoff,omitempty"`
}

// Enabled reports whether a NATS server is configured.
func (n NATSConfig) Enabled() bool { return len(n.URLs) > 0 }

// NamingConfig selects the naming backend and the binder tuning.
type NamingConfig struct {
	Backend       string   `json:"backend"`
	Bucket        string   `json:"bucket,omitempty"`
	Workers       int      `json:"workers"`
	Queue         int      `json:"queue"`
	RetryAttempts int      `json:"retry_attempts"`
	RetryDelay    Duration `json:"retry_delay"`
}

// ExecutionContextConfig declares one execution context. Type is a kind name
// or alias such as "periodic" or "ExtTrig".
type ExecutionContextConfig struct {
	Type       string     `json:"type"`
	Properties Properties `json:"properties,omitempty"`
}

// ComponentConfig declares one component instance. ExecutionContext names
// the context the component owns; Participates lists further contexts.
type ComponentConfig struct {
	Type             string     `json:"type"`
	Disabled         bool       `json:"disabled,omitempty"`
	ExecutionContext string     `json:"execution_context,omitempty"`
	Participates     []string   `json:"participates,omitempty"`
	Activate         bool       `json:"activate,omitempty"`
	Properties       Properties `json:"properties,omitempty"`
}

// ConnectorConfig declares a connector between two ports named
// "<component>.<port>".
type ConnectorConfig struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Ports      []string   `json:"ports"`
	Properties Properties `json:"properties,omitempty"`
}

// Default returns the configuration used when no file sets a field.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Admin:   AdminConfig{Enabled: true, Addr: ":8080"},
		NATS: NATSConfig{
			MaxReconnects:    -1,
			ReconnectWait:    Duration(2 * time.Second),
			Timeout:          Duration(5 * time.Second),
			PingInterval:     Duration(30 * time.Second),
			DrainTimeout:     Duration(10 * time.Second),
			CircuitThreshold: 5,
			MaxBackoff:       Duration(time.Minute),
			SubjectPrefix:    "rtkit.dataport",
			LogSubject:       "rtkit.logs",
		},
		Naming: NamingConfig{
			Backend:       NamingMemory,
			Bucket:        "rtkit_naming",
			Workers:       2,
			Queue:         128,
			RetryAttempts: 3,
			RetryDelay:    Duration(100 * time.Millisecond),
		},
	}
}

// Validate checks the configuration and cross references between sections.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format))
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("metrics.port %d out of range", c.Metrics.Port))
	}
	if c.Admin.Enabled && c.Admin.Addr == "" {
		errs = append(errs, errors.New("admin.addr is required when admin is enabled"))
	}

	for name, d := range map[string]Duration{
		"reconnect_wait": c.NATS.ReconnectWait,
		"timeout":        c.NATS.Timeout,
		"ping_interval":  c.NATS.PingInterval,
		"drain_timeout":  c.NATS.DrainTimeout,
		"max_backoff":    c.NATS.MaxBackoff,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("nats.%s %v is negative", name, d.Std()))
		}
	}
	if c.NATS.CircuitThreshold < 0 {
		errs = append(errs, fmt.Errorf("nats.circuit_threshold %d is negative", c.NATS.CircuitThreshold))
	}

	switch c.Naming.Backend {
	case "", NamingNone, NamingMemory:
	case NamingNATS:
		if !c.NATS.Enabled() {
			errs = append(errs, errors.New("naming.backend nats requires nats.urls"))
		}
		if !isValidSubjectPart(c.Naming.Bucket) {
			errs = append(errs, fmt.Errorf("naming.bucket %q is not a valid bucket name", c.Naming.Bucket))
		}
	default:
		errs = append(errs, fmt.Errorf("naming.backend %q is not one of none, memory, nats", c.Naming.Backend))
	}

	for _, id := range sortedKeys(c.ExecutionContexts) {
		ec := c.ExecutionContexts[id]
		if !isValidSubjectPart(id) {
			errs = append(errs, fmt.Errorf("execution_contexts: invalid id %q", id))
		}
		if ec.Type == "" {
			errs = append(errs, fmt.Errorf("execution_contexts.%s: type is required", id))
		}
	}

	owners := make(map[string]string)
	for _, name := range sortedKeys(c.Components) {
		comp := c.Components[name]
		if !isValidSubjectPart(name) || strings.Contains(name, ".") {
			errs = append(errs, fmt.Errorf("components: invalid instance name %q", name))
		}
		if comp.Type == "" {
			errs = append(errs, fmt.Errorf("components.%s: type is required", name))
		}
		if comp.Disabled {
			continue
		}
		if ec := comp.ExecutionContext; ec != "" {
			if _, ok := c.ExecutionContexts[ec]; !ok {
				errs = append(errs, fmt.Errorf("components.%s: unknown execution context %q", name, ec))
			} else if prev, taken := owners[ec]; taken {
				errs = append(errs, fmt.Errorf("components.%s: execution context %q is already owned by %s", name, ec, prev))
			} else {
				owners[ec] = name
			}
		}
		for _, ec := range comp.Participates {
			if _, ok := c.ExecutionContexts[ec]; !ok {
				errs = append(errs, fmt.Errorf("components.%s: unknown execution context %q", name, ec))
			}
			if ec == comp.ExecutionContext {
				errs = append(errs, fmt.Errorf("components.%s: owns and participates in %q", name, ec))
			}
		}
	}

	ids := make(map[string]bool)
	for i, conn := range c.Connectors {
		if len(conn.Ports) != 2 {
			errs = append(errs, fmt.Errorf("connectors[%d]: exactly two ports required, got %d", i, len(conn.Ports)))
		}
		for _, p := range conn.Ports {
			inst, _, ok := strings.Cut(p, ".")
			if !ok {
				errs = append(errs, fmt.Errorf("connectors[%d]: port %q is not <component>.<port>", i, p))
				continue
			}
			if _, known := c.Components[inst]; !known {
				errs = append(errs, fmt.Errorf("connectors[%d]: unknown component %q", i, inst))
			}
		}
		if conn.ID != "" {
			if ids[conn.ID] {
				errs = append(errs, fmt.Errorf("connectors[%d]: duplicate id %q", i, conn.ID))
			}
			ids[conn.ID] = true
		}
		if strings.EqualFold(conn.Properties.String("dataport.interface_type", ""), "nats") && !c.NATS.Enabled() {
			errs = append(errs, fmt.Errorf("connectors[%d]: nats interface requires nats.urls", i))
		}
	}

	return errors.Join(errs...)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Redacted returns a copy with credentials masked.
func (c *Config) Redacted() *Config {
	out := c.Clone()
	if out.NATS.Password != "" {
		out.NATS.Password = "***"
	}
	if out.NATS.Token != "" {
		out.NATS.Token = "***"
	}
	return out
}

// String returns the redacted configuration as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// SafeConfig guards a Config shared between goroutines.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps cfg. A nil cfg is replaced by Default().
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update replaces the configuration after validating it.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// isValidSubjectPart reports whether s can appear in a NATS subject or
// bucket name.
func isValidSubjectPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
