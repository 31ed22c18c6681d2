// Package console is a line oriented command console over the serial
// transport, run from the foreground superloop.
package console

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/bsp.go/pkg/framework"
	"github.com/robotalks/bsp.go/pkg/usart"
)

// MaxLine is the longest command line kept; extra characters are dropped.
const MaxLine = 64

// Prompt is printed when the console waits for a command.
const Prompt = "> "

// LED is the indicator output controlled by the led command.
type LED interface {
	Toggle()
	Set(bool)
	Level() bool
}

// Command is a console command.
type Command struct {
	Name  string
	Usage string
	Help  string
	Run   func(c *Console, args []string)
}

// Console reads command lines from the transport and runs them.
//
// A line ends with CR, LF or CR LF; the LF of CR LF does not start another
// line. With hardware echo enabled the transport echoes both bytes of a
// CR LF before the console sees them, so the terminal shows an extra
// newline.
type Console struct {
	USART *usart.Transport
	LED   LED

	commands map[string]*Command
	line     []byte
	lastCR   bool
	executed atomic.Uint64
}

// New creates a console with the builtin commands. The transport must be
// initialized.
func New(t *usart.Transport, led LED) *Console {
	c := &Console{USART: t, LED: led, commands: make(map[string]*Command)}
	for _, cmd := range builtins {
		c.Register(cmd)
	}
	return c
}

// Register adds or replaces a command.
func (c *Console) Register(cmd *Command) {
	c.commands[cmd.Name] = cmd
}

// Commands returns the commands sorted by name.
func (c *Console) Commands() []*Command {
	cmds := make([]*Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Executed counts the command lines run.
func (c *Console) Executed() uint64 {
	return c.executed.Load()
}

// AddToLoop implements framework.LoopAdder. Every received byte schedules
// a pass of the loop from the receive callback.
func (c *Console) AddToLoop(l *fx.Loop) {
	c.USART.RegisterCallback(l.TriggerNext)
	l.AddController(c)
}

// Start prints the banner and the first prompt.
func (c *Console) Start() {
	cfg := c.USART.Config()
	c.USART.Printf("\nbsp.go console %s %s, type help\n", cfg.Baud, usart.Frame8N1)
	c.USART.Print(Prompt)
}

// Control implements framework.Controller. It consumes every received byte
// without waiting.
func (c *Console) Control(fx.ControlContext) error {
	for c.USART.Poll() {
		c.feed(c.USART.Read())
	}
	return nil
}

func (c *Console) feed(b byte) {
	lastCR := c.lastCR
	c.lastCR = b == '\r'
	switch b {
	case '\n':
		if lastCR {
			return
		}
		fallthrough
	case '\r':
		if !c.USART.Config().EchoOnReceive {
			c.USART.Write('\n')
		}
		line := string(c.line)
		c.line = c.line[:0]
		c.Exec(line)
		c.USART.Print(Prompt)
	case '\b', 0x7f:
		if len(c.line) > 0 {
			c.line = c.line[:len(c.line)-1]
			if c.USART.Config().EchoOnReceive {
				c.USART.Print(" \b")
			}
		}
	default:
		if b >= ' ' && len(c.line) < MaxLine {
			c.line = append(c.line, b)
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}
	c.executed.Add(1)
	cmd := c.commands[args[0]]
	if cmd == nil {
		c.USART.Printf("unknown command %q, try help\n", args[0])
		return
	}
	glog.V(2).Infof("console: %s", line)
	cmd.Run(c, args[1:])
}
