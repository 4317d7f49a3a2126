package store

import (
	"time"

	"github.com/goliatone/go-formstore/pkg/logging"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const (
	defaultPath        = "formstore.db"
	defaultBusyTimeout = 5 * time.Second
	defaultLockTimeout = 2 * time.Second
)

// Options configure Open. The YAML tags match the CLI config file.
type Options struct {
	Dialect      Dialect       `yaml:"dialect" json:"dialect"`
	DSN          string        `yaml:"dsn" json:"dsn"`
	Path         string        `yaml:"path" json:"path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout" json:"busy_timeout"`
	LockTimeout  time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns" json:"max_open_conns"`
	SkipMigrate  bool          `yaml:"skip_migrate" json:"skip_migrate"`

	Logger logging.Logger `yaml:"-" json:"-"`
}

// Option mutates Options.
type Option func(*Options)

// NewOptions applies opts over the defaults: a SQLite file in the working
// directory with a five second busy timeout.
func NewOptions(opts ...Option) Options {
	cfg := Options{
		Dialect:     DialectSQLite,
		Path:        defaultPath,
		BusyTimeout: defaultBusyTimeout,
		LockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Dialect == "" {
		o.Dialect = DialectSQLite
	}
	if o.Dialect == DialectSQLite && o.Path == "" && o.DSN == "" {
		o.Path = defaultPath
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = defaultBusyTimeout
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = defaultLockTimeout
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// WithDialect selects the database flavour.
func WithDialect(dialect Dialect) Option {
	return func(o *Options) { o.Dialect = dialect }
}

// WithDSN sets a driver specific connection string. For SQLite it replaces
// the DSN derived from Path.
func WithDSN(dsn string) Option {
	return func(o *Options) { o.DSN = dsn }
}

// WithPath sets the SQLite database file. ":memory:" opens a private
// in-memory database.
func WithPath(path string) Option {
	return func(o *Options) { o.Path = path }
}

// WithBusyTimeout bounds how long SQLite waits for the write lock.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *Options) { o.BusyTimeout = d }
}

// WithLockTimeout bounds how long a transaction waits for a scope lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *Options) { o.LockTimeout = d }
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *Options) { o.MaxOpenConns = n }
}

// WithLogger attaches an event logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
