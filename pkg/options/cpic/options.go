// Package cpicopts provides options for the CPIC upstream client.
package cpicopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/pharmakb/pharmakb/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains CPIC client configuration.
type Options struct {
	// APIBaseURL is the CPIC REST API base URL.
	APIBaseURL string `json:"api-base-url" mapstructure:"api-base-url"`

	// PairsFile is the path to the gene-drug pairs catalog CSV
	// (columns: gene, drug, guideline_url).
	PairsFile string `json:"pairs-file" mapstructure:"pairs-file"`

	// Timeout bounds each upstream HTTP request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries for transient failures.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// UserAgent is sent with every request.
	UserAgent string `json:"user-agent" mapstructure:"user-agent"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		APIBaseURL: "https://api.cpicpgx.org/v1",
		PairsFile:  "configs/cpic_pairs.csv",
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		UserAgent:  "pharmakb/1.0",
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)
	fs.StringVar(&o.APIBaseURL, join+"cpic.api-base-url", o.APIBaseURL, "CPIC REST API base URL.")
	fs.StringVar(&o.PairsFile, join+"cpic.pairs-file", o.PairsFile, "Path to the gene-drug pairs catalog CSV.")
	fs.DurationVar(&o.Timeout, join+"cpic.timeout", o.Timeout, "CPIC request timeout.")
	fs.IntVar(&o.MaxRetries, join+"cpic.max-retries", o.MaxRetries, "CPIC request max retries.")
	fs.StringVar(&o.UserAgent, join+"cpic.user-agent", o.UserAgent, "User-Agent header for CPIC requests.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.APIBaseURL == "" {
		errs = append(errs, fmt.Errorf("cpic api-base-url is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("cpic timeout must be positive"))
	}
	return errs
}
