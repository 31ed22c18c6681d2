// Package link connects the serial line of a board to the outside: a host
// serial port, a websocket, an MQTT broker, a TCP peer or the terminal.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/golang/glog"

	fx "github.com/robotalks/bsp.go/pkg/framework"
	"github.com/robotalks/bsp.go/pkg/link/mqtt"
)

var (
	// ErrLinkClosed is returned by operations on a closed link.
	ErrLinkClosed = errors.New("link closed")
	// ErrNoAddress is returned when a link URL lacks its address part.
	ErrNoAddress = errors.New("missing address")
	// ErrBadMode is returned for serial line settings the port can't use.
	ErrBadMode = errors.New("unsupported serial mode")
)

// SchemeError reports a link URL with an unknown scheme.
type SchemeError struct {
	Scheme string
}

// Error implements error.
func (e *SchemeError) Error() string {
	return fmt.Sprintf("unknown link scheme %q, want one of %s", e.Scheme, strings.Join(Schemes, ", "))
}

// Schemes lists the supported URL schemes.
var Schemes = []string{"serial", "ws", "wss", "mqtt", "tcp", "stdio"}

// Open opens the link named by rawURL:
//
//	serial:///dev/ttyUSB0?baud=115200
//	ws://host:port/path
//	mqtt://host:1883/prefix/?id=bench1
//	tcp://host:port
//	stdio:
func Open(rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("link: open %s", rawURL)
	switch strings.ToLower(u.Scheme) {
	case "serial":
		return OpenSerial(u)
	case "ws", "wss":
		ws, err := DialWebsocket(rawURL)
		if err != nil {
			return nil, err
		}
		return ws, nil
	case "mqtt":
		line, err := mqtt.Dial(rawURL)
		if err != nil {
			return nil, err
		}
		return NewPacketStream(line), nil
	case "tcp":
		if u.Host == "" {
			return nil, ErrNoAddress
		}
		return net.Dial("tcp", u.Host)
	case "stdio":
		return Stdio(), nil
	}
	return nil, &SchemeError{Scheme: u.Scheme}
}

// Pump copies bytes both ways between board and ext until ctx is done or
// one direction ends. Both ends are closed on return. The error is the one
// that ended the first direction; a clean end of stream returns nil.
func Pump(ctx context.Context, board, ext io.ReadWriteCloser) error {
	runner := fx.NewRunnerWith(ctx)
	runner.StopOnError = true
	runner.Go(
		pumpDir("board->link", ext, board),
		pumpDir("link->board", board, ext),
	)
	if err := runner.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// pumpDir copies src to dst and closes src when done, which also unblocks
// the copy when the runner is stopped.
func pumpDir(name string, dst io.Writer, src io.ReadCloser) fx.Runnable {
	return fx.NamedFunc(name, func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, src, func() error {
			return copyDir(name, dst, src)
		})
	})
}

func copyDir(name string, dst io.Writer, src io.Reader) error {
	n, err := io.Copy(dst, src)
	glog.V(2).Infof("link: %s ended after %d bytes: %v", name, n, err)
	return err
}

type stdio struct {
	io.Reader
	io.Writer
}

// Stdio returns a link on standard input and output. Close is a no-op.
func Stdio() io.ReadWriteCloser {
	return stdio{Reader: os.Stdin, Writer: os.Stdout}
}

func (stdio) Close() error { return nil }
