package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultWebhookSecret = "your-webhook-secret-here"
	DefaultAgentsURL     = "http://localhost:8081/run"
	DefaultTeamURL       = "http://localhost:8082/"
	DefaultSeedSecret    = "dev"
)

type Config struct {
	HTTPAddr       string
	StorefrontAddr string
	DataDir        string
	DBPath         string
	WebDir         string
	ConfigFile     string

	Env       string
	LogLevel  string
	LogFormat string

	Dynamic Dynamic
}

// Dynamic holds the settings that may change while the process runs; see
// Watch.
type Dynamic struct {
	WebhookSecret  string `yaml:"webhook_secret"`
	AgentsURL      string `yaml:"agents_url"`
	AgentsAPIToken string `yaml:"agents_api_token"`
	TeamURL        string `yaml:"team_url"`
	SeedSecret     string `yaml:"seed_secret"`
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func Load() Config {
	loadDotEnv(".env")
	dataDir := getEnv("ADGEN_DATA_DIR", "data")
	cfg := Config{
		HTTPAddr:       getEnv("ADGEN_HTTP_ADDR", ":8080"),
		StorefrontAddr: getEnv("ADGEN_STOREFRONT_ADDR", ":8090"),
		DataDir:        dataDir,
		DBPath:         getEnv("ADGEN_DB_PATH", filepath.Join(dataDir, "adgen.db")),
		WebDir:         getEnv("ADGEN_WEB_DIR", "web"),
		ConfigFile:     getEnv("ADGEN_CONFIG", ""),

		Env:       getEnv("ADGEN_ENV", "development"),
		LogLevel:  getEnv("ADGEN_LOG_LEVEL", "info"),
		LogFormat: getEnv("ADGEN_LOG_FORMAT", "console"),

		Dynamic: Dynamic{
			WebhookSecret:  getEnv("WEBHOOK_SECRET", DefaultWebhookSecret),
			AgentsURL:      getEnv("AGENTS_SERVICE_URL", DefaultAgentsURL),
			AgentsAPIToken: getEnv("AGENTS_API_TOKEN", ""),
			TeamURL:        getEnv("AGENTS_TEAM_URL", DefaultTeamURL),
			SeedSecret:     getEnv("SEED_SECRET", DefaultSeedSecret),
		},
	}
	return cfg
}

// LoadFile applies ConfigFile when one is set. On error the config is left
// unchanged.
func (c *Config) LoadFile() error {
	if c.ConfigFile == "" {
		return nil
	}
	f, err := ReadFile(c.ConfigFile)
	if err != nil {
		return err
	}
	c.Apply(f)
	return nil
}

// Apply overlays the non-empty values of a config file.
func (c *Config) Apply(f File) {
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.Env != "" {
		c.Env = f.Env
	}
	c.Dynamic = c.Dynamic.Merge(f.Dynamic)
}

func (d Dynamic) Merge(o Dynamic) Dynamic {
	if o.WebhookSecret != "" {
		d.WebhookSecret = o.WebhookSecret
	}
	if o.AgentsURL != "" {
		d.AgentsURL = o.AgentsURL
	}
	if o.AgentsAPIToken != "" {
		d.AgentsAPIToken = o.AgentsAPIToken
	}
	if o.TeamURL != "" {
		d.TeamURL = o.TeamURL
	}
	if o.SeedSecret != "" {
		d.SeedSecret = o.SeedSecret
	}
	return d
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
