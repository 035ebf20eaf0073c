package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Import    ImportConfig   `mapstructure:"import"`
	JWTSecret string         `mapstructure:"jwt_secret"`
	LogLevel  string         `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port        int   `mapstructure:"port"`
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

// ImportConfig holds the configured defaults for a run's options.
type ImportConfig struct {
	Categories      int    `mapstructure:"categories"`
	Fields          int    `mapstructure:"fields"`
	Images          int    `mapstructure:"images"`
	Tags            int    `mapstructure:"tags"`
	Users           int    `mapstructure:"users"`
	Usernotes       int    `mapstructure:"usernotes"`
	Viewlevels      int    `mapstructure:"viewlevels"`
	Content         int    `mapstructure:"content"`
	KeepID          bool   `mapstructure:"keep_id"`
	KeepCategory    int    `mapstructure:"keep_category"`
	Category        int64  `mapstructure:"category"`
	Context         string `mapstructure:"context"`
	Extension       string `mapstructure:"extension"`
	CategoryDefault int64  `mapstructure:"category_default"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.max_body_size", 33554432)
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("database.path", "./data")
	viper.SetDefault("jwt_secret", "changeme-secret")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("import.categories", 1)
	viper.SetDefault("import.fields", 1)
	viper.SetDefault("import.images", 1)
	viper.SetDefault("import.tags", 1)
	viper.SetDefault("import.users", 1)
	viper.SetDefault("import.usernotes", 1)
	viper.SetDefault("import.viewlevels", 1)
	viper.SetDefault("import.content", 1)
	viper.SetDefault("import.keep_id", false)
	viper.SetDefault("import.keep_category", 1)
	viper.SetDefault("import.extension", "com_content")
	viper.SetDefault("import.category_default", 0)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Options carries the per-run import/export toggles every pipeline layer
// consults. Mode values: 0 = skip, 1 = create if absent, 2 = create or
// overwrite. Read-only during a run.
type Options struct {
	Categories int
	Fields     int
	Images     int
	Tags       int
	Users      int
	Usernotes  int
	Viewlevels int
	Content    int

	// KeepID preserves numeric ids from the document verbatim on insert.
	KeepID bool

	// ContentCategoryForceTo overrides category resolution for content
	// records when non-zero.
	ContentCategoryForceTo int64

	// Context scopes custom field lookups (e.g. "com_content.article").
	Context string

	// Extension and CategoryDefault scope category path resolution.
	Extension       string
	CategoryDefault int64
}

// Options materializes the configured defaults into a run's option set,
// applying the forced-category override when keep_category requests it.
func (c ImportConfig) Options() Options {
	o := Options{
		Categories:      c.Categories,
		Fields:          c.Fields,
		Images:          c.Images,
		Tags:            c.Tags,
		Users:           c.Users,
		Usernotes:       c.Usernotes,
		Viewlevels:      c.Viewlevels,
		Content:         c.Content,
		KeepID:          c.KeepID,
		Context:         c.Context,
		Extension:       c.Extension,
		CategoryDefault: c.CategoryDefault,
	}
	if c.KeepCategory == 2 {
		o.ContentCategoryForceTo = c.Category
	}
	return o
}

// ModeFor returns the import mode for an entity kind tag. Unknown kinds
// are skipped.
func (o Options) ModeFor(kind string) int {
	switch kind {
	case "category":
		return o.Categories
	case "field":
		return o.Fields
	case "tag":
		return o.Tags
	case "user":
		return o.Users
	case "usernote":
		return o.Usernotes
	case "viewlevel":
		return o.Viewlevels
	case "content":
		return o.Content
	}
	return 0
}
