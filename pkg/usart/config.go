package usart

import (
	"flag"
	"os"
	"strconv"

	"github.com/golang/glog"
)

var defaultConfig = Config{
	Baud: Baud115200,
}

func init() {
	if val := os.Getenv("BSP_BAUD"); val != "" {
		if b, err := ParseBaudRate(val); err == nil {
			defaultConfig.Baud = b
		} else {
			glog.Warningf("BSP_BAUD ignored: %v", err)
		}
	}
	if val := os.Getenv("BSP_ECHO"); val != "" {
		if en, err := strconv.ParseBool(val); err == nil {
			defaultConfig.EchoOnReceive = en
		}
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.Var(&defaultConfig.Baud, "baud", "Baud rate: 9600, 19200, 38400, 57600 or 115200.")
	flag.BoolVar(&defaultConfig.EchoOnReceive, "echo", defaultConfig.EchoOnReceive, "Echo received characters.")
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
