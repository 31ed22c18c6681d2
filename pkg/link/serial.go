package link

import (
	"fmt"
	"net/url"
	"strconv"

	"go.bug.st/serial"
)

// DefaultSerialBaud is used when a serial URL does not set baud.
const DefaultSerialBaud = 115200

// SerialMode converts the query of a serial URL into a port mode:
// baud, databits, parity (none, even, odd) and stopbits (1, 2).
func SerialMode(q url.Values) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: DefaultSerialBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	var err error
	if v := q.Get("baud"); v != "" {
		if mode.BaudRate, err = strconv.Atoi(v); err != nil {
			return nil, err
		}
	}
	if v := q.Get("databits"); v != "" {
		if mode.DataBits, err = strconv.Atoi(v); err != nil {
			return nil, err
		}
	}
	switch q.Get("parity") {
	case "", "none":
	case "even":
		mode.Parity = serial.EvenParity
	case "odd":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("%w: parity %q", ErrBadMode, q.Get("parity"))
	}
	switch q.Get("stopbits") {
	case "", "1":
	case "2":
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: stopbits %q", ErrBadMode, q.Get("stopbits"))
	}
	return mode, nil
}

// OpenSerial opens the host serial port named by the URL path.
func OpenSerial(u *url.URL) (serial.Port, error) {
	if u.Path == "" {
		return nil, ErrNoAddress
	}
	mode, err := SerialMode(u.Query())
	if err != nil {
		return nil, err
	}
	return serial.Open(u.Path, mode)
}
