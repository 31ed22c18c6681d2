package link

import (
	"flag"
	"io"
	"os"
)

// Config selects the link of a board daemon.
type Config struct {
	URL string
}

var defaultConfig = Config{
	URL: "stdio:",
}

func init() {
	if val := os.Getenv("BSP_LINK"); val != "" {
		defaultConfig.URL = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.URL, "link", defaultConfig.URL, "Link URL: serial:///dev/ttyX?baud=N, ws://, mqtt://, tcp:// or stdio:.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Open opens the configured link.
func (c *Config) Open() (io.ReadWriteCloser, error) {
	return Open(c.URL)
}
