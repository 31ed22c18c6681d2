package sh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/robotalks/bsp.go/pkg/sim"
	"github.com/robotalks/bsp.go/pkg/usart"
)

// ErrNotInitialized is returned by operations needing an initialized
// transport, which would otherwise halt the board.
var ErrNotInitialized = errors.New("USART not initialized, run init first")

// ErrConsoleAttached is returned by receive operations while another
// consumer owns the receive buffer.
var ErrConsoleAttached = errors.New("receiver attached to the console, stop it first")

// Session is a running simulated board with the far end of its line
// collected into a buffer.
type Session struct {
	Board *sim.Board

	cancel context.CancelFunc
	done   chan struct{}

	lock sync.Mutex
	wire bytes.Buffer

	attached atomic.Bool
}

// Status is a snapshot of a session.
type Status struct {
	Initialized bool          `json:"initialized"`
	Config      *usart.Config `json:"config,omitempty"`
	TxState     string        `json:"tx_state"`
	Stats       usart.Stats   `json:"stats"`
	Line        sim.PortStats `json:"line"`
	Divisor     uint16        `json:"divisor"`
	Baud        uint32        `json:"baud"`
	LED         bool          `json:"led"`
	WireBuffer  int           `json:"wire_buffered"`
}

// StartSession creates a board and runs its clock until Close.
func StartSession(cfg sim.Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		Board:  sim.NewBoard(cfg),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.Board.Run(ctx)
	go s.collect()
	return s
}

// Close stops the board.
func (s *Session) Close() {
	s.cancel()
	s.Board.Port.Close()
	<-s.done
}

func (s *Session) collect() {
	defer close(s.done)
	remote := s.Board.Port.Remote()
	buf := make([]byte, 256)
	for {
		n, err := remote.Read(buf)
		if n > 0 {
			s.lock.Lock()
			s.wire.Write(buf[:n])
			s.lock.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Init initializes the transport. args are an optional baud rate and the
// word echo.
func (s *Session) Init(args ...string) (usart.Config, error) {
	cfg := *usart.NewConfig()
	for _, arg := range args {
		if arg == "echo" {
			cfg.EchoOnReceive = true
			continue
		}
		baud, err := usart.ParseBaudRate(arg)
		if err != nil {
			return cfg, err
		}
		cfg.Baud = baud
	}
	if s.Board.USART.Initialized() {
		return cfg, errors.New("USART already initialized")
	}
	s.Board.USART.Init(cfg)
	return cfg, nil
}

func (s *Session) transport() (*usart.Transport, error) {
	if !s.Board.USART.Initialized() {
		return nil, ErrNotInitialized
	}
	return s.Board.USART, nil
}

// receiver returns the transport for receive operations, which have a
// single consumer.
func (s *Session) receiver() (*usart.Transport, error) {
	t, err := s.transport()
	if err != nil {
		return nil, err
	}
	if s.attached.Load() {
		return nil, ErrConsoleAttached
	}
	return t, nil
}

// Attach hands the receive buffer to another consumer. Poll and Read fail
// with ErrConsoleAttached until detach is called.
func (s *Session) Attach() (detach func(), err error) {
	if _, err := s.transport(); err != nil {
		return nil, err
	}
	if !s.attached.CompareAndSwap(false, true) {
		return nil, ErrConsoleAttached
	}
	return func() { s.attached.Store(false) }, nil
}

// Write sends text from the board.
func (s *Session) Write(text string) error {
	t, err := s.transport()
	if err != nil {
		return err
	}
	t.Print(text)
	return nil
}

// Printf formats on the board. Arguments that parse as integers are
// passed as integers.
func (s *Session) Printf(format string, args ...string) error {
	t, err := s.transport()
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(args))
	for i, arg := range args {
		if n, err := strconv.ParseInt(arg, 0, 64); err == nil {
			vals[i] = n
		} else {
			vals[i] = arg
		}
	}
	t.Printf(format, vals...)
	return nil
}

// Inject delivers text to the board receiver.
func (s *Session) Inject(text string) {
	for i := 0; i < len(text); i++ {
		s.Board.Port.Inject(text[i])
	}
}

// Poll reports whether a received byte is waiting.
func (s *Session) Poll() (bool, error) {
	t, err := s.receiver()
	if err != nil {
		return false, err
	}
	return t.Poll(), nil
}

// Read takes up to n received bytes without waiting.
func (s *Session) Read(n int) ([]byte, error) {
	t, err := s.receiver()
	if err != nil {
		return nil, err
	}
	var out []byte
	for len(out) < n && t.Poll() {
		out = append(out, t.Read())
	}
	return out, nil
}

// Flush waits until the transmitter is idle.
func (s *Session) Flush() error {
	t, err := s.transport()
	if err != nil {
		return err
	}
	t.Flush()
	return nil
}

// Wire returns and clears what the board transmitted so far.
func (s *Session) Wire() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := append([]byte(nil), s.wire.Bytes()...)
	s.wire.Reset()
	return out
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	b := s.Board
	st := Status{
		Initialized: b.USART.Initialized(),
		TxState:     b.USART.TxState().String(),
		Stats:       b.USART.Stats(),
		Line:        b.Port.Stats(),
		Divisor:     b.Port.Divisor(),
		Baud:        b.Port.Baud(),
		LED:         b.LED.Level(),
	}
	if st.Initialized {
		cfg := b.USART.Config()
		st.Config = &cfg
	}
	s.lock.Lock()
	st.WireBuffer = s.wire.Len()
	s.lock.Unlock()
	return st
}

// String renders the status for display.
func (st Status) String() string {
	var w bytes.Buffer
	if st.Config == nil {
		fmt.Fprintln(&w, "USART: not initialized")
	} else {
		fmt.Fprintf(&w, "USART: %s %s echo=%v divisor=%d (%d baud)\n",
			st.Config.Baud, usart.Frame8N1, st.Config.EchoOnReceive, st.Divisor, st.Baud)
	}
	fmt.Fprintf(&w, "TX: %s pending=%d sent=%d\n", st.TxState, st.Stats.TxPending, st.Stats.TxBytes)
	fmt.Fprintf(&w, "RX: buffered=%d received=%d dropped=%d lost=%d\n",
		st.Stats.RxBuffered, st.Stats.RxBytes, st.Stats.RxDropped, st.Line.Lost)
	fmt.Fprintf(&w, "echo dropped=%d wire buffered=%d led=%v", st.Stats.EchoDropped, st.WireBuffer, st.LED)
	return w.String()
}
