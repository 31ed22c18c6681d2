// Package console adds shell commands running the console firmware on the
// shell's board.
package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/bsp.go/pkg/cli/sh"
	fw "github.com/robotalks/bsp.go/pkg/firmware/console"
	fx "github.com/robotalks/bsp.go/pkg/framework"
)

const runningKey = "$console"

type running struct {
	console *fw.Console
	cancel  context.CancelFunc
}

// Start runs the console firmware on the session's initialized board. The
// console owns the receive buffer until the returned func stops it.
func Start(s *sh.Session) (*fw.Console, context.CancelFunc, error) {
	detach, err := s.Attach()
	if err != nil {
		return nil, nil, err
	}
	c := fw.New(s.Board.USART, s.Board.LED)
	loop := fx.NewLoop().Add(c)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.Start()
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	stop := func() {
		cancel()
		<-done
		s.Board.USART.RegisterCallback(nil)
		detach()
	}
	return c, stop, nil
}

func runningFrom(c *ishell.Context) *running {
	r, _ := c.Get(runningKey).(*running)
	return r
}

var (
	// StartCmd starts the console firmware.
	StartCmd = ishell.Cmd{
		Name: "console.start",
		Help: "run the console firmware on the board",
		Func: func(c *ishell.Context) {
			if r := runningFrom(c); r != nil {
				c.Err(fmt.Errorf("console already running"))
				return
			}
			con, cancel, err := Start(sh.SessionFrom(c))
			if err != nil {
				c.Err(err)
				return
			}
			c.Set(runningKey, &running{console: con, cancel: cancel})
			c.Println("console started, use console.send and wire")
		},
	}

	// SendCmd sends one command line to the console.
	SendCmd = ishell.Cmd{
		Name:    "console.send",
		Aliases: []string{"cs"},
		Help:    "LINE",
		Func: func(c *ishell.Context) {
			if runningFrom(c) == nil {
				c.Err(fmt.Errorf("console not running"))
				return
			}
			sh.SessionFrom(c).Inject(strings.Join(c.Args, " ") + "\r")
		},
	}

	// StopCmd stops the console loop.
	StopCmd = ishell.Cmd{
		Name: "console.stop",
		Func: func(c *ishell.Context) {
			r := runningFrom(c)
			if r == nil {
				c.Err(fmt.Errorf("console not running"))
				return
			}
			r.cancel()
			c.Set(runningKey, nil)
			c.Printf("console stopped after %d commands\n", r.console.Executed())
		},
	}
)

func init() {
	sh.AddCmds(
		&StartCmd,
		&SendCmd,
		&StopCmd,
	)
}
