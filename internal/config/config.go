package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen   = ":4000"
	defaultEndpoint = "/api/trpc"
	defaultLogLevel = "info"

	PlatformNetHTTP  = "nethttp"
	PlatformFastHTTP = "fasthttp"

	TypeQuery    = "query"
	TypeMutation = "mutation"

	KindStatic = "static"
	KindEcho   = "echo"
)

type Config struct {
	Listen          string            `yaml:"listen"`
	Endpoint        string            `yaml:"endpoint"`
	Platform        string            `yaml:"platform"`
	LogLevel        string            `yaml:"log_level"`
	Batching        Batching          `yaml:"batching"`
	RateLimit       RateLimit         `yaml:"rate_limit"`
	ResponseHeaders map[string]string `yaml:"response_headers"`
	Procedures      []Procedure       `yaml:"procedures"`
	index           map[string]int
}

type Batching struct {
	Enabled bool `yaml:"enabled"`
}

// RateLimit is applied per client address. RPS <= 0 disables limiting.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Procedure struct {
	Path   string `yaml:"path"`
	Type   string `yaml:"type"`
	Kind   string `yaml:"kind"`
	Result any    `yaml:"result"`
}

func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(content))
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = defaultListen
	}
	if strings.TrimSpace(c.Endpoint) == "" {
		c.Endpoint = defaultEndpoint
	}
	if strings.TrimSpace(c.Platform) == "" {
		c.Platform = PlatformNetHTTP
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS) + 1
	}

	for i := range c.Procedures {
		if strings.TrimSpace(c.Procedures[i].Type) == "" {
			c.Procedures[i].Type = TypeQuery
		}
		if strings.TrimSpace(c.Procedures[i].Kind) == "" {
			c.Procedures[i].Kind = KindStatic
		}
	}
}

// Validate fills defaults, normalizes fields in place and builds the
// procedure index.
func (c *Config) Validate() error {
	c.applyDefaults()

	endpoint := "/" + strings.Trim(strings.TrimSpace(c.Endpoint), "/")
	if endpoint == "/" {
		return fmt.Errorf("endpoint must not be the root path")
	}
	c.Endpoint = endpoint

	platform := strings.ToLower(strings.TrimSpace(c.Platform))
	switch platform {
	case PlatformNetHTTP, PlatformFastHTTP:
	default:
		return fmt.Errorf("platform must be nethttp or fasthttp")
	}
	c.Platform = platform

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error")
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must not be negative")
	}

	if len(c.Procedures) == 0 {
		return fmt.Errorf("procedures is required")
	}

	index := make(map[string]int, len(c.Procedures))
	for i, proc := range c.Procedures {
		path := strings.TrimSpace(proc.Path)
		if path == "" {
			return fmt.Errorf("procedures[%d].path is required", i)
		}
		if strings.ContainsAny(path, ",/") {
			return fmt.Errorf("procedures[%d].path must not contain ',' or '/'", i)
		}
		if _, exists := index[path]; exists {
			return fmt.Errorf("duplicate procedure path: %s", path)
		}

		typ := strings.ToLower(strings.TrimSpace(proc.Type))
		switch typ {
		case TypeQuery, TypeMutation:
		default:
			return fmt.Errorf("procedures[%d].type must be query or mutation", i)
		}

		kind := strings.ToLower(strings.TrimSpace(proc.Kind))
		switch kind {
		case KindStatic, KindEcho:
		default:
			return fmt.Errorf("procedures[%d].kind must be static or echo", i)
		}

		c.Procedures[i].Path = path
		c.Procedures[i].Type = typ
		c.Procedures[i].Kind = kind
		index[path] = i
	}

	c.index = index
	return nil
}

func (c *Config) ProcedureByPath(path string) (Procedure, bool) {
	idx, ok := c.index[strings.TrimSpace(path)]
	if !ok {
		return Procedure{}, false
	}
	return c.Procedures[idx], true
}

func (c *Config) ProcedurePaths() []string {
	paths := make([]string, 0, len(c.Procedures))
	for _, proc := range c.Procedures {
		paths = append(paths, proc.Path)
	}
	sort.Strings(paths)
	return paths
}
