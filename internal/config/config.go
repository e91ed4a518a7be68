// Package config holds runtime configuration for the slumber binary,
// resolved from flags, environment variables and an optional config file
// via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Config holds all runtime configuration for slumber.
type Config struct {
	CollectionFile string
	DataDir        string

	FollowRedirects        bool
	IgnoreCertificateHosts []string
	LargeBodySize          int64
	RequestTimeout         time.Duration

	// PersistRequests is the global kill switch for exchange persistence.
	// A recipe's own persist flag is still required; this just lets the
	// user disable history wholesale.
	PersistRequests bool

	TickInterval    time.Duration
	MaxHTTPRequests int

	KeybindingFile string
}

// Load reads configuration from viper, which merges flag values, env vars,
// and defaults (set up by the cobra command in cmd/slumber).
func Load() (Config, error) {
	timeout, err := str2duration.ParseDuration(viper.GetString("request_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("parse request_timeout: %w", err)
	}
	tick, err := str2duration.ParseDuration(viper.GetString("tick_interval"))
	if err != nil {
		return Config{}, fmt.Errorf("parse tick_interval: %w", err)
	}

	return Config{
		CollectionFile:         viper.GetString("collection_file"),
		DataDir:                viper.GetString("data_dir"),
		FollowRedirects:        viper.GetBool("follow_redirects"),
		IgnoreCertificateHosts: viper.GetStringSlice("ignore_certificate_hosts"),
		LargeBodySize:          viper.GetInt64("large_body_size"),
		RequestTimeout:         timeout,
		PersistRequests:        viper.GetBool("persist_requests"),
		TickInterval:           tick,
		MaxHTTPRequests:        viper.GetInt("max_http_requests"),
		KeybindingFile:         viper.GetString("keybinding_file"),
	}, nil
}
