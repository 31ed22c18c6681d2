package console

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/bsp.go/pkg/cli/sh"
	"github.com/robotalks/bsp.go/pkg/sim"
)

func TestStartRequiresInit(t *testing.T) {
	s := sh.StartSession(sim.Config{})
	defer s.Close()
	_, _, err := Start(s)
	require.Equal(t, sh.ErrNotInitialized, err)
}

func TestStartAndSend(t *testing.T) {
	s := sh.StartSession(sim.Config{BufferSize: 64})
	defer s.Close()
	_, err := s.Init("115200", "echo")
	require.NoError(t, err)

	con, cancel, err := Start(s)
	require.NoError(t, err)
	defer cancel()

	s.Inject("led on\r")
	var out bytes.Buffer
	require.Eventually(t, func() bool {
		out.Write(s.Wire())
		return bytes.HasSuffix(out.Bytes(), []byte("led on\r\n> "))
	}, 2*time.Second, time.Millisecond)
	require.True(t, bytes.HasPrefix(out.Bytes(), []byte("\r\nbsp.go console 115200 8N1")))
	require.True(t, s.Board.LED.Level())
	require.Equal(t, uint64(1), con.Executed())

	_, err = s.Read(1)
	require.Equal(t, sh.ErrConsoleAttached, err)
	cancel()
	_, err = s.Read(1)
	require.NoError(t, err)
}
