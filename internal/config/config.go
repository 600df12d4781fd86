package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/codelanx/plugintemplate/internal/logging"
)

var log = logging.L("config")

// FileName is the configuration file created inside the plugin data folder.
const FileName = "config.yml"

const envPrefix = "PLUGINTEMPLATE"

// Config mirrors config.yml.
type Config struct {
	Update     UpdateConfig  `mapstructure:"update"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	DebugLevel int           `mapstructure:"debug-level"`
	Log        LogConfig     `mapstructure:"log"`
	Journal    JournalConfig `mapstructure:"journal"`
}

type UpdateConfig struct {
	Check          bool          `mapstructure:"check"`
	Download       bool          `mapstructure:"download"`
	ProjectID      int           `mapstructure:"project-id"`
	DelayTicks     int           `mapstructure:"delay-ticks"`
	Endpoint       string        `mapstructure:"endpoint"`
	VersionSource  string        `mapstructure:"version-source"`
	TimeoutSeconds int           `mapstructure:"timeout-seconds"`
	Proxy          string        `mapstructure:"proxy"`
	Sources        SourcesConfig `mapstructure:"sources"`
}

// SourcesConfig configures where release artifacts may be fetched from besides
// plain http(s).
type SourcesConfig struct {
	FileRoot string      `mapstructure:"file-root"`
	S3       S3Config    `mapstructure:"s3"`
	GCS      GCSConfig   `mapstructure:"gcs"`
	Azure    AzureConfig `mapstructure:"azblob"`
	B2       B2Config    `mapstructure:"b2"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access-key-id"`
	SecretAccessKey string `mapstructure:"secret-access-key"`
	SessionToken    string `mapstructure:"session-token"`
	Endpoint        string `mapstructure:"endpoint"`
}

type GCSConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	Anonymous bool `mapstructure:"anonymous"`
}

type AzureConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type B2Config struct {
	AccountID      string `mapstructure:"account-id"`
	ApplicationKey string `mapstructure:"application-key"`
}

type MetricsConfig struct {
	OptOut          bool   `mapstructure:"opt-out"`
	GUID            string `mapstructure:"guid"`
	Endpoint        string `mapstructure:"endpoint"`
	IntervalMinutes int    `mapstructure:"interval-minutes"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max-size-mb"`
	MaxBackups int    `mapstructure:"max-backups"`
}

// JournalConfig controls the hash-chained lifecycle journal kept in the data
// folder.
type JournalConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxSizeMB  int  `mapstructure:"max-size-mb"`
	MaxBackups int  `mapstructure:"max-backups"`
}

func Default() *Config {
	return &Config{
		Update: UpdateConfig{
			Check:          true,
			Download:       false,
			DelayTicks:     10,
			Endpoint:       "https://api.curseforge.com/servermods/files?projectIds=%d",
			VersionSource:  "name",
			TimeoutSeconds: 30,
			Sources: SourcesConfig{
				GCS: GCSConfig{Anonymous: true},
			},
		},
		Metrics: MetricsConfig{
			Endpoint:        "https://metrics.codelanx.com/plugin",
			IntervalMinutes: 15,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Journal: JournalConfig{
			Enabled:    true,
			MaxSizeMB:  5,
			MaxBackups: 2,
		},
	}
}

// Load reads path, filling any key missing from the file with its default and
// writing the merged result back. A missing file is created from defaults.
// Environment variables prefixed with PLUGINTEMPLATE_ override file values.
func Load(path string) (*Config, error) {
	v := newViper(path)

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := SaveTo(Default(), path); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if missing := missingKeys(v); len(missing) > 0 {
		log.Info("adding missing config keys", "path", path, "keys", strings.Join(missing, ","))
		if err := v.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("save merged config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// SaveTo writes cfg to path as YAML.
func SaveTo(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range flatten(cfg) {
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}

// Path returns the config file location inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, value := range flatten(Default()) {
		v.SetDefault(key, value)
	}
	return v
}

func missingKeys(v *viper.Viper) []string {
	var missing []string
	for _, key := range Keys() {
		if !v.InConfig(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

// Keys lists every configuration key in file order.
func Keys() []string {
	return []string{
		"update.check",
		"update.download",
		"update.project-id",
		"update.delay-ticks",
		"update.endpoint",
		"update.version-source",
		"update.timeout-seconds",
		"update.proxy",
		"update.sources.file-root",
		"update.sources.s3.region",
		"update.sources.s3.access-key-id",
		"update.sources.s3.secret-access-key",
		"update.sources.s3.session-token",
		"update.sources.s3.endpoint",
		"update.sources.gcs.enabled",
		"update.sources.gcs.anonymous",
		"update.sources.azblob.enabled",
		"update.sources.b2.account-id",
		"update.sources.b2.application-key",
		"metrics.opt-out",
		"metrics.guid",
		"metrics.endpoint",
		"metrics.interval-minutes",
		"debug-level",
		"log.level",
		"log.format",
		"log.file",
		"log.max-size-mb",
		"log.max-backups",
		"journal.enabled",
		"journal.max-size-mb",
		"journal.max-backups",
	}
}

func flatten(c *Config) map[string]any {
	return map[string]any{
		"update.check":                        c.Update.Check,
		"update.download":                     c.Update.Download,
		"update.project-id":                   c.Update.ProjectID,
		"update.delay-ticks":                  c.Update.DelayTicks,
		"update.endpoint":                     c.Update.Endpoint,
		"update.version-source":               c.Update.VersionSource,
		"update.timeout-seconds":              c.Update.TimeoutSeconds,
		"update.proxy":                        c.Update.Proxy,
		"update.sources.file-root":            c.Update.Sources.FileRoot,
		"update.sources.s3.region":            c.Update.Sources.S3.Region,
		"update.sources.s3.access-key-id":     c.Update.Sources.S3.AccessKeyID,
		"update.sources.s3.secret-access-key": c.Update.Sources.S3.SecretAccessKey,
		"update.sources.s3.session-token":     c.Update.Sources.S3.SessionToken,
		"update.sources.s3.endpoint":          c.Update.Sources.S3.Endpoint,
		"update.sources.gcs.enabled":          c.Update.Sources.GCS.Enabled,
		"update.sources.gcs.anonymous":        c.Update.Sources.GCS.Anonymous,
		"update.sources.azblob.enabled":       c.Update.Sources.Azure.Enabled,
		"update.sources.b2.account-id":        c.Update.Sources.B2.AccountID,
		"update.sources.b2.application-key":   c.Update.Sources.B2.ApplicationKey,
		"metrics.opt-out":                     c.Metrics.OptOut,
		"metrics.guid":                        c.Metrics.GUID,
		"metrics.endpoint":                    c.Metrics.Endpoint,
		"metrics.interval-minutes":            c.Metrics.IntervalMinutes,
		"debug-level":                         c.DebugLevel,
		"log.level":                           c.Log.Level,
		"log.format":                          c.Log.Format,
		"log.file":                            c.Log.File,
		"log.max-size-mb":                     c.Log.MaxSizeMB,
		"log.max-backups":                     c.Log.MaxBackups,
		"journal.enabled":                     c.Journal.Enabled,
		"journal.max-size-mb":                 c.Journal.MaxSizeMB,
		"journal.max-backups":                 c.Journal.MaxBackups,
	}
}
