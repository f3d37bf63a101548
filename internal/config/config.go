package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/ParlVotes/internal/votes"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Environment overrides, also read from a .env file in the working directory.
const (
	EnvDataDir   = "PARLVOTES_DATA_DIR"
	EnvPort      = "PARLVOTES_PORT"
	EnvUserAgent = "PARLVOTES_USER_AGENT"
)

type Config struct {
	Legislatures []Legislature `yaml:"legislatures" validate:"required,min=1,dive"`
	Fetch        Fetch         `yaml:"fetch"`
	Votes        Votes         `yaml:"votes"`
	Output       Output        `yaml:"output"`
	Server       Server        `yaml:"server"`
	Logging      Logging       `yaml:"logging"`
}

type Legislature struct {
	Name           string `yaml:"name" validate:"required,alphanum"`
	URL            string `yaml:"url" validate:"required,url"`
	CompositionURL string `yaml:"composition_url" validate:"omitempty,url"`
	Ongoing        bool   `yaml:"ongoing"`
}

type Fetch struct {
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gt=0"`
	UserAgent         string        `yaml:"user_agent"`
}

type Votes struct {
	ExcludeResults []string          `yaml:"exclude_results"`
	Parties        []string          `yaml:"parties"`
	Aliases        map[string]string `yaml:"aliases"`
	AuthorAliases  map[string]string `yaml:"author_aliases"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

type Logging struct {
	Level string `yaml:"level" validate:"oneof=DEBUG INFO WARN ERROR"`
}

var validate = validator.New()

// ConfigDir returns the XDG config directory for parlvotes.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "parlvotes")
}

// DataDir returns the XDG data directory for parlvotes.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "parlvotes")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/parlvotes/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'parlvotes init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Fetch: Fetch{
			Timeout:           5 * time.Minute,
			RequestsPerSecond: 0.5,
			UserAgent:         "parlvotes/1.0",
		},
		Votes:   Votes{ExcludeResults: []string{"Retirado"}},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks field constraints and that legislature names are unique.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool, len(c.Legislatures))
	for _, l := range c.Legislatures {
		if seen[l.Name] {
			return fmt.Errorf("invalid config: legislature %s listed twice", l.Name)
		}
		seen[l.Name] = true
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Output.DataDir = getEnv(EnvDataDir, c.Output.DataDir)
	c.Server.Port = getEnvInt(EnvPort, c.Server.Port)
	c.Fetch.UserAgent = getEnv(EnvUserAgent, c.Fetch.UserAgent)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// Legislature returns the configured legislature with the given name.
func (c *Config) Legislature(name string) (Legislature, bool) {
	for _, l := range c.Legislatures {
		if l.Name == name {
			return l, true
		}
	}
	return Legislature{}, false
}

// LegislatureNames lists the configured legislatures in config order.
func (c *Config) LegislatureNames() []string {
	names := make([]string, len(c.Legislatures))
	for i, l := range c.Legislatures {
		names[i] = l.Name
	}
	return names
}

// Vocabulary builds the ballot vocabulary, falling back to the built-in
// tables for anything left empty.
func (v Votes) Vocabulary() *votes.Vocabulary {
	parties := v.Parties
	if len(parties) == 0 {
		parties = votes.DefaultParties
	}
	aliases := v.Aliases
	if len(aliases) == 0 {
		aliases = votes.DefaultAliases
	}
	authorAliases := v.AuthorAliases
	if len(authorAliases) == 0 {
		authorAliases = votes.DefaultAuthorAliases
	}
	return votes.NewVocabulary(parties, aliases, authorAliases)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
