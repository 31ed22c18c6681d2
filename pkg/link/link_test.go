package link

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"golang.org/x/net/websocket"
)

type fakePackets struct {
	in     chan []byte
	out    [][]byte
	closed int
}

func (f *fakePackets) ReadPacket() ([]byte, error) {
	pkt, ok := <-f.in
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

func (f *fakePackets) WritePacket(p []byte) error {
	f.out = append(f.out, p)
	return nil
}

func (f *fakePackets) Close() error {
	f.closed++
	return nil
}

func TestPacketStream(t *testing.T) {
	f := &fakePackets{in: make(chan []byte, 4)}
	f.in <- []byte("hello")
	f.in <- []byte("!")
	close(f.in)
	s := NewPacketStream(f)

	buf := make([]byte, 3)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hel", string(buf[:n]))
	rest, err := io.ReadAll(s)
	require.NoError(t, err)
	require.Equal(t, "lo!", string(rest))

	n, err = s.Write([]byte("ab"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	_, err = s.Write(nil)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("ab")}, f.out)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, 1, f.closed)
	_, err = s.Write([]byte("x"))
	require.Equal(t, ErrLinkClosed, err)
}

func TestOpenErrors(t *testing.T) {
	testCases := []struct {
		name   string
		url    string
		expect func(*testing.T, error)
	}{
		{"unknown scheme", "gopher://x", func(t *testing.T, err error) {
			var se *SchemeError
			require.True(t, errors.As(err, &se))
			require.Equal(t, "gopher", se.Scheme)
			require.Equal(t, `unknown link scheme "gopher", want one of serial, ws, wss, mqtt, tcp, stdio`, err.Error())
		}},
		{"serial without path", "serial://", func(t *testing.T, err error) {
			require.Equal(t, ErrNoAddress, err)
		}},
		{"tcp without host", "tcp:", func(t *testing.T, err error) {
			require.Equal(t, ErrNoAddress, err)
		}},
		{"bad url", "::", func(t *testing.T, err error) {
			require.Error(t, err)
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rw, err := Open(tc.url)
			require.Nil(t, rw)
			tc.expect(t, err)
		})
	}
}

func TestOpenStdio(t *testing.T) {
	rw, err := Open("stdio:")
	require.NoError(t, err)
	require.NoError(t, rw.Close())
}

func TestSerialMode(t *testing.T) {
	mode, err := SerialMode(url.Values{})
	require.NoError(t, err)
	require.Equal(t, &serial.Mode{BaudRate: DefaultSerialBaud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}, mode)

	u, err := url.Parse("serial:///dev/ttyUSB0?baud=9600&parity=even&stopbits=2&databits=7")
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB0", u.Path)
	mode, err = SerialMode(u.Query())
	require.NoError(t, err)
	require.Equal(t, &serial.Mode{BaudRate: 9600, DataBits: 7, Parity: serial.EvenParity, StopBits: serial.TwoStopBits}, mode)

	for _, q := range []string{"baud=fast", "parity=mark", "stopbits=3", "databits=x"} {
		v, err := url.ParseQuery(q)
		require.NoError(t, err)
		_, err = SerialMode(v)
		require.Error(t, err, q)
	}
	_, err = SerialMode(url.Values{"parity": {"mark"}})
	require.True(t, errors.Is(err, ErrBadMode))
}

func TestOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.Copy(conn, conn)
	}()

	rw, err := Open("tcp://" + ln.Addr().String())
	require.NoError(t, err)
	defer rw.Close()
	_, err = rw.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(rw, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))
}

func TestWebsocketRoundTrip(t *testing.T) {
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		s := NewPacketStream(NewWebsocketConn(conn))
		io.Copy(s, s)
	}))
	defer srv.Close()

	rw, err := Open("ws" + strings.TrimPrefix(srv.URL, "http") + "/line")
	require.NoError(t, err)
	defer rw.Close()
	_, err = rw.Write([]byte("abc"))
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = io.ReadFull(rw, buf)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf))
}

type pipeEnd struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (p *pipeEnd) Close() error {
	for _, c := range p.closers {
		c.Close()
	}
	return nil
}

func newPipeEnd() (end *pipeEnd, peerR *io.PipeReader, peerW *io.PipeWriter) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	return &pipeEnd{Reader: inR, Writer: outW, closers: []io.Closer{inR, outW}}, outR, inW
}

func TestPump(t *testing.T) {
	board, boardOut, boardIn := newPipeEnd()
	ext, extOut, extIn := newPipeEnd()

	errCh := make(chan error, 1)
	go func() { errCh <- Pump(context.Background(), board, ext) }()

	go boardIn.Write([]byte("up"))
	buf := make([]byte, 2)
	_, err := io.ReadFull(extOut, buf)
	require.NoError(t, err)
	require.Equal(t, "up", string(buf))

	go extIn.Write([]byte("dn"))
	_, err = io.ReadFull(boardOut, buf)
	require.NoError(t, err)
	require.Equal(t, "dn", string(buf))

	// ending the external stream stops both directions.
	extIn.Close()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Pump did not return")
	}
}

func TestPumpCanceled(t *testing.T) {
	board, _, _ := newPipeEnd()
	ext, _, _ := newPipeEnd()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, context.Canceled, Pump(ctx, board, ext))
}
