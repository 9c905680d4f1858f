package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/cronexpr"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config настройки узла
type Config struct {
	NodeID               string        `yaml:"node_id"`
	Port                 int           `yaml:"port"`
	Password             string        `yaml:"password"`
	Upstream             string        `yaml:"upstream"`
	Logging              bool          `yaml:"logging"`
	CatalogPath          string        `yaml:"catalog_path"`
	BuildsDir            string        `yaml:"builds_dir"`
	ArtifactExt          string        `yaml:"artifact_ext"`
	JournalPath          string        `yaml:"journal_path"`
	SyncInterval         time.Duration `yaml:"sync_interval"`
	SyncCron             string        `yaml:"sync_cron"`
	UpstreamTimeout      time.Duration `yaml:"upstream_timeout"`
	MaxParallelDownloads int           `yaml:"max_parallel_downloads"`
	MetricsAddr          string        `yaml:"metrics_addr"`
}

// Default возвращает настройки по умолчанию
func Default() Config {
	return Config{
		Port:                 8000,
		Logging:              true,
		CatalogPath:          "./versions.json",
		BuildsDir:            "./builds",
		ArtifactExt:          "7z",
		JournalPath:          "./journal.db",
		SyncInterval:         time.Hour,
		UpstreamTimeout:      60 * time.Second,
		MaxParallelDownloads: 4,
	}
}

// Load собирает настройки: значения по умолчанию, затем YAML-файл (если path не пустой),
// затем переменные окружения BUILDSYNC_*
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.NodeID = getEnv("BUILDSYNC_NODE_ID", cfg.NodeID)
	cfg.Port = getEnvInt("BUILDSYNC_PORT", cfg.Port)
	cfg.Password = lookupEnv("BUILDSYNC_PASSWORD", cfg.Password)
	cfg.Upstream = lookupEnv("BUILDSYNC_UPSTREAM", cfg.Upstream)
	cfg.Logging = getEnvBool("BUILDSYNC_LOGGING", cfg.Logging)
	cfg.CatalogPath = getEnv("BUILDSYNC_CATALOG", cfg.CatalogPath)
	cfg.BuildsDir = getEnv("BUILDSYNC_BUILDS_DIR", cfg.BuildsDir)
	cfg.ArtifactExt = getEnv("BUILDSYNC_ARTIFACT_EXT", cfg.ArtifactExt)
	cfg.JournalPath = lookupEnv("BUILDSYNC_JOURNAL", cfg.JournalPath)
	cfg.SyncCron = getEnv("BUILDSYNC_SYNC_CRON", cfg.SyncCron)
	cfg.MaxParallelDownloads = getEnvInt("BUILDSYNC_MAX_PARALLEL", cfg.MaxParallelDownloads)
	cfg.MetricsAddr = getEnv("BUILDSYNC_METRICS_ADDR", cfg.MetricsAddr)

	var err error
	if cfg.SyncInterval, err = getEnvDuration("BUILDSYNC_SYNC_INTERVAL", cfg.SyncInterval); err != nil {
		return err
	}
	if cfg.UpstreamTimeout, err = getEnvDuration("BUILDSYNC_UPSTREAM_TIMEOUT", cfg.UpstreamTimeout); err != nil {
		return err
	}
	return nil
}

// RegisterFlags добавляет флаги командной строки для всех настроек
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("id", d.NodeID, "Node ID used in logs and /status")
	fs.Int("port", d.Port, "HTTP port to listen on")
	fs.String("password", d.Password, "Shared secret required from peers (empty disables)")
	fs.String("upstream", d.Upstream, "Comma-separated upstream node URLs (empty disables sync)")
	fs.Bool("logging", d.Logging, "Enable logging")
	fs.String("catalog", d.CatalogPath, "Path to the versions catalog file")
	fs.String("builds", d.BuildsDir, "Directory holding build artifacts")
	fs.String("ext", d.ArtifactExt, "Artifact file extension")
	fs.String("journal", d.JournalPath, "Path to the install journal database (empty disables)")
	fs.Duration("sync-interval", d.SyncInterval, "Interval between upstream syncs")
	fs.String("sync-cron", d.SyncCron, "Cron expression for upstream syncs (overrides --sync-interval)")
	fs.Duration("upstream-timeout", d.UpstreamTimeout, "Timeout for each upstream request")
	fs.Int("max-parallel", d.MaxParallelDownloads, "Maximum concurrent downloads per sync")
	fs.String("metrics-addr", d.MetricsAddr, "Address for /metrics and /status (empty disables)")
}

// ApplyFlags переносит в cfg значения флагов, явно заданных в командной строке
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && fs.Changed(name) {
			err = apply()
		}
	}

	set("id", func() (e error) { cfg.NodeID, e = fs.GetString("id"); return })
	set("port", func() (e error) { cfg.Port, e = fs.GetInt("port"); return })
	set("password", func() (e error) { cfg.Password, e = fs.GetString("password"); return })
	set("upstream", func() (e error) { cfg.Upstream, e = fs.GetString("upstream"); return })
	set("logging", func() (e error) { cfg.Logging, e = fs.GetBool("logging"); return })
	set("catalog", func() (e error) { cfg.CatalogPath, e = fs.GetString("catalog"); return })
	set("builds", func() (e error) { cfg.BuildsDir, e = fs.GetString("builds"); return })
	set("ext", func() (e error) { cfg.ArtifactExt, e = fs.GetString("ext"); return })
	set("journal", func() (e error) { cfg.JournalPath, e = fs.GetString("journal"); return })
	set("sync-interval", func() (e error) { cfg.SyncInterval, e = fs.GetDuration("sync-interval"); return })
	set("sync-cron", func() (e error) { cfg.SyncCron, e = fs.GetString("sync-cron"); return })
	set("upstream-timeout", func() (e error) { cfg.UpstreamTimeout, e = fs.GetDuration("upstream-timeout"); return })
	set("max-parallel", func() (e error) { cfg.MaxParallelDownloads, e = fs.GetInt("max-parallel"); return })
	set("metrics-addr", func() (e error) { cfg.MetricsAddr, e = fs.GetString("metrics-addr"); return })

	return err
}

// Validate проверяет согласованность настроек
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.CatalogPath == "" {
		return errors.New("catalog path is required")
	}
	if c.BuildsDir == "" {
		return errors.New("builds directory is required")
	}
	if strings.TrimPrefix(c.ArtifactExt, ".") == "" {
		return errors.New("artifact extension is required")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", c.SyncInterval)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive, got %s", c.UpstreamTimeout)
	}
	if c.MaxParallelDownloads <= 0 {
		return fmt.Errorf("max parallel downloads must be positive, got %d", c.MaxParallelDownloads)
	}
	if c.SyncCron != "" {
		if _, err := cronexpr.Parse(c.SyncCron); err != nil {
			return fmt.Errorf("invalid sync cron %q: %w", c.SyncCron, err)
		}
	}
	return nil
}

// Upstreams возвращает список вышестоящих узлов. Пустой список отключает синхронизацию.
func (c Config) Upstreams() []string {
	nodes := []string{}
	for _, node := range strings.Split(c.Upstream, ",") {
		node = strings.TrimSpace(node)
		if node != "" {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// lookupEnv в отличие от getEnv позволяет задать пустое значение
func lookupEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
