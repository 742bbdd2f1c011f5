package milvus

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Options contains Milvus client configuration.
type Options struct {
	// Address is the Milvus server address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// Database is the database name to use.
	Database string `json:"database" mapstructure:"database"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	// Password for authentication.
	Password string `json:"password" mapstructure:"password"`

	// Timeout for connection and operations.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:  "localhost:19530",
		Database: "default",
		Timeout:  30 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Address, "milvus.address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, "milvus.database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, "milvus.username", o.Username, "Milvus username for authentication.")
	fs.StringVar(&o.Password, "milvus.password", o.Password, "Milvus password for authentication.")
	fs.DurationVar(&o.Timeout, "milvus.timeout", o.Timeout, "Connection and operation timeout.")
}

// Validate validates the options.
func (o *Options) Validate() error {
	if o.Address == "" {
		return fmt.Errorf("milvus.address is required")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("milvus.timeout must be positive")
	}
	return nil
}
