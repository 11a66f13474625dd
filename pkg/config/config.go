package config

import (
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	// DefaultPath is read when no --config flag is given and the file exists.
	DefaultPath = "f1standings.yaml"

	envPrefix = "F1STANDINGS_"
)

type Config struct {
	Database Database `yaml:"database"`
	Telegram Telegram `yaml:"telegram"`
	Web      Web      `yaml:"web"`
	Logging  Logging  `yaml:"logging"`
}

// Database describes the results store. Either DSN (postgres), Path
// (sqlite3) or the discrete connection fields are used.
type Database struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	Path         string        `yaml:"path"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Name         string        `yaml:"name"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	SSLMode      string        `yaml:"sslmode"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

type Telegram struct {
	Token          string `yaml:"token"`
	Debug          bool   `yaml:"debug"`
	SeasonsPerPage int    `yaml:"seasons_per_page"`
}

type Web struct {
	Address string `yaml:"address"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		Database: Database{
			Driver:       DriverSQLite,
			Path:         "./f1.db",
			Host:         "localhost",
			Port:         5432,
			Name:         "Formula1",
			SSLMode:      "disable",
			QueryTimeout: 10 * time.Second,
			MaxOpenConns: 4,
		},
		Telegram: Telegram{
			SeasonsPerPage: 20,
		},
		Web: Web{
			Address: ":8080",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and then applies
// the environment. An empty path loads DefaultPath when it exists.
func Load(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing config %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}

	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if err := cfg.applyEnv(lookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}
	str(envPrefix+"DB_DRIVER", &c.Database.Driver)
	str(envPrefix+"DB_DSN", &c.Database.DSN)
	str(envPrefix+"DB_PATH", &c.Database.Path)
	str(envPrefix+"DB_HOST", &c.Database.Host)
	str(envPrefix+"DB_NAME", &c.Database.Name)
	str(envPrefix+"DB_USER", &c.Database.User)
	str(envPrefix+"DB_PASSWORD", &c.Database.Password)
	str(envPrefix+"DB_SSLMODE", &c.Database.SSLMode)
	str(envPrefix+"LOG_LEVEL", &c.Logging.Level)
	str(envPrefix+"LOG_FILE", &c.Logging.File)
	str("TELEGRAM_TOKEN", &c.Telegram.Token)
	str("WEBSERVER_ADDRESS", &c.Web.Address)

	if v, ok := lookupEnv(envPrefix + "DB_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%sDB_PORT", envPrefix)
		}
		c.Database.Port = port
	}
	if v, ok := lookupEnv(envPrefix + "DB_QUERY_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%sDB_QUERY_TIMEOUT", envPrefix)
		}
		c.Database.QueryTimeout = d
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Name == "") {
			return errors.New("database: postgres needs a dsn or host and name")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database: sqlite3 needs a path")
		}
	default:
		return errors.Errorf("database: unsupported driver %q", c.Database.Driver)
	}
	if c.Database.QueryTimeout < 0 {
		return errors.Errorf("database: query_timeout must be >= 0, got %s", c.Database.QueryTimeout)
	}
	if c.Database.MaxOpenConns < 1 {
		return errors.Errorf("database: max_open_conns must be >= 1, got %d", c.Database.MaxOpenConns)
	}
	if c.Telegram.SeasonsPerPage < 1 {
		return errors.Errorf("telegram: seasons_per_page must be >= 1, got %d", c.Telegram.SeasonsPerPage)
	}
	return nil
}

// DataSourceName returns what database/sql.Open expects for the driver.
// SQLite files are opened read-only so a missing file fails instead of
// creating an empty database.
func (d Database) DataSourceName() string {
	switch d.Driver {
	case DriverSQLite:
		return "file:" + d.Path + "?mode=ro"
	default:
		if d.DSN != "" {
			return d.DSN
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
			Path:   "/" + d.Name,
		}
		switch {
		case d.User != "" && d.Password != "":
			u.User = url.UserPassword(d.User, d.Password)
		case d.User != "":
			u.User = url.User(d.User)
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
		}
		return u.String()
	}
}

// passwordSetting matches a password in a keyword/value DSN, quoted or not.
var passwordSetting = regexp.MustCompile(`(?i)(password\s*=\s*)('(?:[^'\\]|\\.)*'|\S+)`)

// Redacted is DataSourceName without the password, for logs. Both the URL
// and the keyword/value forms accepted by pgx are masked.
func (d Database) Redacted() string {
	dsn := d.DataSourceName()
	if d.Driver == DriverSQLite {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return passwordSetting.ReplaceAllString(dsn, "${1}xxxxx")
	}
	q := u.Query()
	if q.Has("password") {
		q.Set("password", "xxxxx")
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
