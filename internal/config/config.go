package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/light-letter/lightletter/internal/errors"
)

const (
	// FileName is the name of the configuration file in the sites root.
	FileName = "config.toml"

	// EnvPrefix prefixes environment overrides, e.g. LIGHTLETTER_LOG_LEVEL.
	EnvPrefix = "LIGHTLETTER"

	// RootEnv and LegacyRootEnv name the sites root when --root is absent.
	RootEnv       = "LIGHTLETTER_SITES_ROOT"
	LegacyRootEnv = "LIGHT_LETTER_SITES_ROOT"

	TypeBlog   = "blog"
	TypeStatic = "static"
)

var (
	siteNameRe = regexp.MustCompile(`^[-_0-9a-zA-Z]+$`)
	dbNameRe   = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)
)

// Config is the content of config.toml.
type Config struct {
	Net       NetConfig       `mapstructure:"net"`
	DB        DBConfig        `mapstructure:"db"`
	Resource  ResourceConfig  `mapstructure:"resource"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Dev enables live reload of theme assets.
	Dev bool `mapstructure:"dev"`

	Sites []SiteConfig `mapstructure:"site"`

	// root is the sites root the file was loaded from.
	root string
}

// NetConfig lists the listen addresses. Every port is bound on IP.
type NetConfig struct {
	IP   string `mapstructure:"ip"`
	Port []int  `mapstructure:"port"`
}

// DBConfig configures the per-site SQLite pools.
type DBConfig struct {
	// Dir holds <database>.sqlite files, relative to the sites root.
	Dir             string        `mapstructure:"dir"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeoutMS   int           `mapstructure:"busy_timeout_ms"`
	// CheckoutTimeout bounds how long a request waits for a connection.
	CheckoutTimeout time.Duration `mapstructure:"checkout_timeout"`
}

// ResourceConfig maps theme names to asset directories.
type ResourceConfig struct {
	Themes map[string]string `mapstructure:"themes"`
}

// SessionConfig configures session tokens.
type SessionConfig struct {
	// Secret is the HMAC key. Empty generates a random per-process key.
	Secret        string        `mapstructure:"secret"`
	Dir           string        `mapstructure:"dir"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LogConfig configures the root slog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// MetricsAddr serves /metrics on a separate listener when set.
	MetricsAddr string `mapstructure:"metrics_addr"`
	// Tracing is "", "stdout" or "otlp".
	Tracing      string `mapstructure:"tracing"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// SiteConfig is one [[site]] table.
type SiteConfig struct {
	Name     string   `mapstructure:"name"`
	Type     string   `mapstructure:"type"`
	Database string   `mapstructure:"database"`
	Host     string   `mapstructure:"host"`
	Alias    []string `mapstructure:"alias"`
	Theme    string   `mapstructure:"theme"`
}

// DatabaseName returns the configured database, defaulting to the site name.
func (s SiteConfig) DatabaseName() string {
	if s.Database != "" {
		return s.Database
	}
	return s.Name
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("net.ip", "127.0.0.1")
	v.SetDefault("db.dir", "db")
	v.SetDefault("db.max_open_conns", 8)
	v.SetDefault("db.max_idle_conns", 4)
	v.SetDefault("db.conn_max_lifetime", time.Hour)
	v.SetDefault("db.busy_timeout_ms", 10000)
	v.SetDefault("db.checkout_timeout", 5*time.Second)
	v.SetDefault("session.secret", "")
	v.SetDefault("session.dir", "")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.sweep_interval", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.metrics_addr", "")
	v.SetDefault("telemetry.tracing", "")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "lightletter")
	v.SetDefault("dev", false)
}

// ResolveRoot picks the sites root: the flag value, then RootEnv, then
// LegacyRootEnv, then the working directory.
func ResolveRoot(flag string) string {
	if flag != "" {
		return flag
	}
	if r := os.Getenv(RootEnv); r != "" {
		return r
	}
	if r := os.Getenv(LegacyRootEnv); r != "" {
		return r
	}
	return "."
}

// Load reads config.toml from the sites root. Environment variables
// prefixed with EnvPrefix override file values.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err != nil {
		return nil, errors.New(errors.CodeConfigRead).WithSubject(path).Wrap(err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New(errors.CodeConfigParse).WithSubject(path).Wrap(err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New(errors.CodeConfigParse).WithSubject(path).Wrap(err)
	}
	cfg.root = root
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Sites) == 0 {
		errs = append(errs, errors.New(errors.CodeConfigNoSites))
	}
	if len(c.Net.Port) == 0 {
		errs = append(errs, errors.New(errors.CodeConfigNoPorts))
	}
	for _, p := range c.Net.Port {
		if p <= 0 || p > 65535 {
			errs = append(errs, errors.New(errors.CodeConfigParse).
				WithSubject(fmt.Sprintf("net.port %d", p)).
				WithDetail("Ports must be between 1 and 65535."))
		}
	}
	if net.ParseIP(c.Net.IP) == nil {
		errs = append(errs, errors.New(errors.CodeConfigParse).
			WithSubject("net.ip "+c.Net.IP).
			WithDetail("net.ip must be an IPv4 or IPv6 address."))
	}

	hosts := make(map[string]string)
	for _, s := range c.Sites {
		errs = append(errs, c.validateSite(s)...)
		for _, h := range append([]string{s.Host}, s.Alias...) {
			if owner, dup := hosts[h]; dup {
				errs = append(errs, errors.New(errors.CodeConfigDupHost).
					WithSubject(h).
					WithDetail(fmt.Sprintf("Claimed by %q and %q.", owner, s.Name)))
				continue
			}
			hosts[h] = s.Name
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateSite(s SiteConfig) []error {
	var errs []error
	if !ValidSiteName(s.Name) {
		errs = append(errs, errors.New(errors.CodeSiteName).WithSubject(s.Name))
	}
	switch s.Type {
	case TypeStatic:
	case TypeBlog:
		if !ValidDatabaseName(s.DatabaseName()) {
			errs = append(errs, errors.New(errors.CodeDatabaseName).WithSubject(s.DatabaseName()))
		}
		if s.Theme == "" {
			errs = append(errs, errors.New(errors.CodeThemeMissing).WithSubject(s.Name))
		} else if _, ok := c.Resource.Themes[s.Theme]; !ok {
			errs = append(errs, errors.New(errors.CodeThemeUndeclared).WithSubject(s.Theme))
		}
	default:
		errs = append(errs, errors.New(errors.CodeSiteKind).WithSubject(s.Type))
	}
	return errs
}

// ValidSiteName reports whether name is usable as a site directory.
func ValidSiteName(name string) bool {
	return siteNameRe.MatchString(name)
}

// ValidDatabaseName reports whether name is usable as a database name.
func ValidDatabaseName(name string) bool {
	return dbNameRe.MatchString(name)
}

// Root returns the sites root the configuration was loaded from.
func (c *Config) Root() string {
	return c.root
}

// SetRoot sets the sites root for configurations built in code.
func (c *Config) SetRoot(root string) {
	c.root = root
}

// Addrs returns the listen addresses, one per port.
func (c *Config) Addrs() []string {
	addrs := make([]string, 0, len(c.Net.Port))
	for _, p := range c.Net.Port {
		addrs = append(addrs, net.JoinHostPort(c.Net.IP, fmt.Sprint(p)))
	}
	return addrs
}

// SitesDir is the directory holding one sub-directory per site.
func (c *Config) SitesDir() string {
	return filepath.Join(c.root, "sites")
}

// DatabaseDir is the directory holding the site databases.
func (c *Config) DatabaseDir() string {
	return c.resolve(c.DB.Dir)
}

// ThemeDir returns the declared asset directory of a theme.
func (c *Config) ThemeDir(name string) (string, bool) {
	dir, ok := c.Resource.Themes[name]
	if !ok {
		return "", false
	}
	return c.resolve(dir), true
}

// SessionDir returns the session directory, or "" for the default.
func (c *Config) SessionDir() string {
	if c.Session.Dir == "" {
		return ""
	}
	return c.resolve(c.Session.Dir)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}
