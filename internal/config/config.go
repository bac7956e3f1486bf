package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// defaultStaticAssets is the app shell manifest cached at install time.
var defaultStaticAssets = []string{
	"/",
	"/index.html",
	"/icon.png",
	"/favicon.ico",
	"/tasktusk.svg",
	"/coin.svg",
	"/flower.svg",
}

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		Origin string `yaml:"origin"`
	} `yaml:"server"`

	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Cache struct {
		Dir          string   `yaml:"dir"`
		StaticAssets []string `yaml:"staticAssets"`
	} `yaml:"cache"`

	Tasks struct {
		DB string `yaml:"db"`
	} `yaml:"tasks"`

	Logging Logging `yaml:"logging"`

	// compiled
	originHost string
}

type Logging struct {
	Level         string `yaml:"level"`
	File          string `yaml:"file"`
	LogStatsEvery string `yaml:"logStatsEvery"`

	// compiled
	logStatsEveryDur time.Duration
}

// Generation is the name of the current cache generation. Bumping
// app.version retires every previously written generation on the next
// activation.
func (c *Config) Generation() string {
	return fmt.Sprintf("%s-v%s", c.App.Name, c.App.Version)
}

// OriginHost is the host:port of the configured origin.
func (c *Config) OriginHost() string { return c.originHost }

func (l *Logging) LogStatsEveryDur() time.Duration { return l.logStatsEveryDur }

// Load reads the yaml config at path and applies environment overrides.
// A .env file in the working directory is honored if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("TASKTUSK_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("TASKTUSK_PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("TASKTUSK_ORIGIN"); v != "" {
		cfg.Server.Origin = v
	}
	if v := os.Getenv("TASKTUSK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, cfg.compile()
}

func (c *Config) compile() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Origin == "" {
		return fmt.Errorf("server.origin is required")
	}
	c.Server.Origin = strings.TrimRight(c.Server.Origin, "/")

	u, err := url.Parse(c.Server.Origin)
	if err != nil {
		return fmt.Errorf("server.origin: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.origin: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server.origin: missing host")
	}
	c.originHost = u.Host

	if c.App.Name == "" {
		c.App.Name = "tasktusk"
	}
	if c.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "./data/cache"
	}
	if len(c.Cache.StaticAssets) == 0 {
		c.Cache.StaticAssets = append([]string(nil), defaultStaticAssets...)
	}
	for i, p := range c.Cache.StaticAssets {
		p = strings.TrimSpace(p)
		if p == "" {
			return fmt.Errorf("cache.staticAssets[%d]: empty path", i)
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		c.Cache.StaticAssets[i] = p
	}
	if c.Tasks.DB == "" {
		c.Tasks.DB = "./data/tasks.db"
	}

	if c.Logging.File == "" {
		c.Logging.File = "logs/tasktusk.log"
	}
	if c.Logging.LogStatsEvery != "" {
		d, err := time.ParseDuration(c.Logging.LogStatsEvery)
		if err != nil {
			return fmt.Errorf("logging.logStatsEvery: %w", err)
		}
		c.Logging.logStatsEveryDur = d
	}

	return nil
}
