package usart

import (
	"fmt"
	"strconv"
	"strings"
)

// BaudRate is one of the supported line speeds.
type BaudRate uint32

// Supported baud rates. BaudInvalid marks an unset or unknown rate.
const (
	BaudInvalid BaudRate = 0
	Baud9600    BaudRate = 9600
	Baud19200   BaudRate = 19200
	Baud38400   BaudRate = 38400
	Baud57600   BaudRate = 57600
	Baud115200  BaudRate = 115200
)

// BaudRates lists all valid rates in ascending order.
var BaudRates = []BaudRate{Baud9600, Baud19200, Baud38400, Baud57600, Baud115200}

// IsValid reports whether b is one of BaudRates.
func (b BaudRate) IsValid() bool {
	for _, r := range BaudRates {
		if b == r {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer and flag.Value.
func (b BaudRate) String() string {
	if !b.IsValid() {
		return "invalid"
	}
	return strconv.FormatUint(uint64(b), 10)
}

// Set implements flag.Value.
func (b *BaudRate) Set(s string) error {
	r, err := ParseBaudRate(s)
	if err != nil {
		return err
	}
	*b = r
	return nil
}

// ParseBaudRate parses a decimal baud rate. Unsupported values are errors.
func ParseBaudRate(s string) (BaudRate, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return BaudInvalid, fmt.Errorf("invalid baud rate %q: %v", s, err)
	}
	if b := BaudRate(n); b.IsValid() {
		return b, nil
	}
	return BaudInvalid, fmt.Errorf("unsupported baud rate %d", n)
}

// Config is the transport configuration, fixed by Init.
type Config struct {
	Baud BaudRate

	// EchoOnReceive reflects every received byte back to the sender,
	// whether or not the application ever reads it, until the receive
	// buffer is full. Carriage returns are echoed as newlines.
	EchoOnReceive bool
}

// Control is a bit set of peripheral enables.
type Control uint8

// Control bits.
const (
	ReceiverEnable Control = 1 << iota
	TransmitterEnable
	// ReceiveInterrupt enables the byte-received vector.
	ReceiveInterrupt
	// DataEmptyInterrupt enables the data-register-empty vector. The
	// transport arms it while it has bytes to send.
	DataEmptyInterrupt
)

// Parity setting of a frame.
type Parity uint8

// Parity values.
const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// Frame is the character format on the line.
type Frame struct {
	DataBits uint8
	StopBits uint8
	Parity   Parity
}

// Frame8N1 is the only format the transport programs.
var Frame8N1 = Frame{DataBits: 8, StopBits: 1, Parity: ParityNone}

// String implements fmt.Stringer.
func (f Frame) String() string {
	p := "N"
	switch f.Parity {
	case ParityEven:
		p = "E"
	case ParityOdd:
		p = "O"
	}
	return fmt.Sprintf("%d%s%d", f.DataBits, p, f.StopBits)
}

// BitsPerFrame returns the number of bit times one character occupies.
func (f Frame) BitsPerFrame() int {
	n := 1 + int(f.DataBits) + int(f.StopBits)
	if f.Parity != ParityNone {
		n++
	}
	return n
}

// Peripheral is the register interface of the USART block.
//
// Transmit is only called from the data-empty handler and Receive only from
// the byte-received handler.
type Peripheral interface {
	// ClockHz returns the peripheral clock the divisor is derived from.
	ClockHz() uint32
	SetDivisor(div uint16)
	SetFrame(f Frame)
	Enable(c Control)
	Disable(c Control)
	Enabled(c Control) bool
	// Transmit writes the transmit data register.
	Transmit(b byte)
	// Receive reads the receive data register.
	Receive() byte
}

// Callback is notified for each byte accepted into the receive buffer.
//
// It runs inside the receive interrupt handler with interrupts masked: it
// must not block and must not call Read, Write or any other blocking
// transport operation.
type Callback func()

// TxState is the state of the transmit direction.
type TxState uint8

// Transmit states.
const (
	// TxIdle means the data-empty source is disarmed.
	TxIdle TxState = iota
	// TxDraining means the handler is moving queued bytes to hardware.
	TxDraining
)

// String implements fmt.Stringer.
func (s TxState) String() string {
	if s == TxDraining {
		return "draining"
	}
	return "idle"
}

// Stats are counters since Init.
type Stats struct {
	RxBytes     uint64 // bytes accepted into the receive buffer
	RxDropped   uint64 // bytes dropped on a full receive buffer
	TxBytes     uint64 // bytes handed to the transmit data register
	EchoDropped uint64 // echoed bytes dropped on a full transmit buffer
	RxBuffered  int
	TxPending   int
}
