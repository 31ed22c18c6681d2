package sim

import (
	"flag"
	"os"
	"strconv"

	"github.com/golang/glog"

	"github.com/robotalks/bsp.go/pkg/usart"
)

// DefaultClockHz is the CPU clock of the modeled board.
const DefaultClockHz uint32 = 16000000

// Config describes a simulated board.
type Config struct {
	ClockHz    uint32
	Realtime   bool
	BufferSize int
}

var defaultConfig = Config{
	ClockHz:    DefaultClockHz,
	BufferSize: usart.BufferSize,
}

func init() {
	if val := os.Getenv("BSP_CLOCK_HZ"); val != "" {
		if hz, err := strconv.ParseUint(val, 10, 32); err == nil && hz > 0 {
			defaultConfig.ClockHz = uint32(hz)
		} else {
			glog.Warningf("BSP_CLOCK_HZ ignored: %q", val)
		}
	}
}

type clockFlag struct {
	hz *uint32
}

func (f clockFlag) String() string {
	if f.hz == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*f.hz), 10)
}

func (f clockFlag) Set(s string) error {
	hz, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return err
	}
	*f.hz = uint32(hz)
	return nil
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.Var(clockFlag{&defaultConfig.ClockHz}, "clock-hz", "Peripheral clock of the simulated board.")
	flag.BoolVar(&defaultConfig.Realtime, "realtime", defaultConfig.Realtime, "Pace the simulated line at the programmed baud rate.")
	flag.IntVar(&defaultConfig.BufferSize, "buffer-size", defaultConfig.BufferSize, "Capacity of each USART queue.")
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

// NewBoard creates a board from the config.
func (c *Config) NewBoard() *Board {
	return NewBoard(*c)
}
