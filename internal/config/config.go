package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	BackendNeo4j = "neo4j"
	BackendKuzu  = "kuzu"

	HistoryDriverSQLite = "sqlite3"
	HistoryDriverMySQL  = "mysql"
)

type App struct {
	Port       int      `yaml:"port"`
	LogLevel   string   `yaml:"log_level"`
	LogOutputs []string `yaml:"log_outputs,omitempty"`
}

type GraphConfig struct {
	Backend          string `yaml:"backend"`
	DiscriminatorKey string `yaml:"discriminator_key"`
	MaxInFlight      int    `yaml:"max_in_flight"`
	DetachDelete     bool   `yaml:"detach_delete"`
}

type Neo4jConfig struct {
	URI                   string        `yaml:"uri"`
	Username              string        `yaml:"username"`
	Password              string        `yaml:"password"`
	Database              string        `yaml:"database,omitempty"`
	MaxConnectionPoolSize int           `yaml:"max_connection_pool_size,omitempty"`
	ConnectionTimeout     time.Duration `yaml:"connection_timeout,omitempty"`
}

type KuzuConfig struct {
	Path           string `yaml:"path"`
	InMemory       bool   `yaml:"in_memory"`
	MaxNumThreads  uint64 `yaml:"max_num_threads,omitempty"`
	BufferPoolSize uint64 `yaml:"buffer_pool_size,omitempty"`
}

// HistoryConfig controls the query history journal.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	TablePrefix string `yaml:"table_prefix"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type McpConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func (a *App) GetAddress() string {
	return fmt.Sprintf(":%d", a.Port)
}

type Config struct {
	App     App           `yaml:"app"`
	Graph   GraphConfig   `yaml:"graph"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
	Kuzu    KuzuConfig    `yaml:"kuzu"`
	History HistoryConfig `yaml:"history"`
	MySQL   MySQLConfig   `yaml:"mysql"`
	Mcp     McpConfig     `yaml:"mcp"`
}

func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if len(c.App.LogOutputs) == 0 {
		c.App.LogOutputs = []string{"stdout"}
	}
	if c.Graph.Backend == "" {
		c.Graph.Backend = BackendNeo4j
	}
	if c.Graph.DiscriminatorKey == "" {
		c.Graph.DiscriminatorKey = "label"
	}
	if c.Neo4j.ConnectionTimeout == 0 {
		c.Neo4j.ConnectionTimeout = 30 * time.Second
	}
	if c.History.Driver == "" {
		c.History.Driver = HistoryDriverSQLite
	}
	if c.History.Driver == HistoryDriverSQLite && c.History.SQLitePath == "" {
		c.History.SQLitePath = "graphgate_history.db"
	}
	if c.History.TablePrefix == "" {
		c.History.TablePrefix = "graphgate"
	}
	if c.Mcp.Path == "" {
		c.Mcp.Path = "/mcp"
	}
}

func (c *Config) validate() error {
	switch c.Graph.Backend {
	case BackendNeo4j:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("neo4j.uri is required when graph.backend is %q", BackendNeo4j)
		}
	case BackendKuzu:
		if !c.Kuzu.InMemory && c.Kuzu.Path == "" {
			return fmt.Errorf("kuzu.path is required unless kuzu.in_memory is set")
		}
	default:
		return fmt.Errorf("unknown graph.backend %q", c.Graph.Backend)
	}

	if c.Graph.MaxInFlight < 0 {
		return fmt.Errorf("graph.max_in_flight must not be negative")
	}

	if c.History.Enabled {
		switch c.History.Driver {
		case HistoryDriverSQLite, HistoryDriverMySQL:
		default:
			return fmt.Errorf("unknown history.driver %q", c.History.Driver)
		}
		if c.History.Driver == HistoryDriverMySQL && c.MySQL.Host == "" {
			return fmt.Errorf("mysql.host is required when history.driver is %q", HistoryDriverMySQL)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars substitutes ${VAR}, ${VAR:-default} and $VAR. An undefined
// ${VAR} expands to its default or "", an undefined $VAR is left as is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)

		if name := groups[4]; name != "" {
			if value, ok := os.LookupEnv(name); ok {
				return value
			}
			return match
		}

		if value, ok := os.LookupEnv(groups[1]); ok && value != "" {
			return value
		}
		return groups[3]
	})
}
