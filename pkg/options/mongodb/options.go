// Package mongodbopts provides options for MongoDB client configuration.
package mongodbopts

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/pharmakb/pharmakb/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// redactedPassword is the placeholder used when serializing passwords.
const redactedPassword = "[REDACTED]"

// Options defines configuration options for MongoDB.
type Options struct {
	// URI is a full MongoDB connection URI. When set it takes precedence
	// over host/port.
	URI      string `json:"uri" mapstructure:"uri"`
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`

	MaxPoolSize uint64 `json:"max-pool-size" mapstructure:"max-pool-size"`
	MinPoolSize uint64 `json:"min-pool-size" mapstructure:"min-pool-size"`

	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	SocketTimeout          time.Duration `json:"socket-timeout" mapstructure:"socket-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`

	AuthSource string `json:"auth-source" mapstructure:"auth-source"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "pharmakb",
		MaxPoolSize:            100,
		MinPoolSize:            10,
		ConnectTimeout:         10 * time.Second,
		SocketTimeout:          30 * time.Second,
		ServerSelectionTimeout: 30 * time.Second,
		AuthSource:             "admin",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)
	fs.StringVar(&o.URI, join+"mongo.uri", o.URI, "MongoDB connection URI (overrides host/port).")
	fs.StringVar(&o.Host, join+"mongo.host", o.Host, "MongoDB host.")
	fs.IntVar(&o.Port, join+"mongo.port", o.Port, "MongoDB port.")
	fs.StringVar(&o.Username, join+"mongo.username", o.Username, "MongoDB username.")
	fs.StringVar(&o.Database, join+"mongo.database", o.Database, "MongoDB database name.")
	fs.Uint64Var(&o.MaxPoolSize, join+"mongo.max-pool-size", o.MaxPoolSize, "Maximum connection pool size.")
	fs.Uint64Var(&o.MinPoolSize, join+"mongo.min-pool-size", o.MinPoolSize, "Minimum connection pool size.")
	fs.DurationVar(&o.ConnectTimeout, join+"mongo.connect-timeout", o.ConnectTimeout, "Connection timeout.")
	fs.DurationVar(&o.SocketTimeout, join+"mongo.socket-timeout", o.SocketTimeout, "Socket timeout.")
	fs.DurationVar(&o.ServerSelectionTimeout, join+"mongo.server-selection-timeout", o.ServerSelectionTimeout, "Server selection timeout.")
	fs.StringVar(&o.AuthSource, join+"mongo.auth-source", o.AuthSource, "Authentication database.")
}

// Validate validates the options. The password is read from the
// MONGODB_PASSWORD environment variable when not set.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	if o.Password == "" {
		o.Password = os.Getenv("MONGODB_PASSWORD")
	}

	var errs []error
	if o.URI == "" {
		if o.Host == "" {
			errs = append(errs, fmt.Errorf("mongo host is required when uri is not provided"))
		}
		if o.Port <= 0 || o.Port > 65535 {
			errs = append(errs, fmt.Errorf("mongo port must be between 1 and 65535"))
		}
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("mongo database is required"))
	}
	return errs
}

// BuildURI builds the connection URI from the options.
func (o *Options) BuildURI() string {
	if o.URI != "" {
		return o.URI
	}
	if o.Username != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=%s", o.Username, o.Password, o.Host, o.Port, o.AuthSource)
	}
	return fmt.Sprintf("mongodb://%s:%d", o.Host, o.Port)
}

// String returns a representation with the password redacted. Safe for
// logging.
func (o *Options) String() string {
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, password=%s, database=%s}",
		o.Host, o.Port, o.Username, password, o.Database)
}
