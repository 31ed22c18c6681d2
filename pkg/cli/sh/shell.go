// Package sh is an interactive shell driving a simulated board.
package sh

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/sugawarayuuta/sonnet"

	"github.com/robotalks/bsp.go/pkg/sim"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Session *Session
}

const (
	shellKey = "$shell"
	prompt   = "board > "
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&InitCmd,
		&WriteCmd,
		&PrintfCmd,
		&InjectCmd,
		&PollCmd,
		&ReadCmd,
		&WireCmd,
		&StatusCmd,
		&FlushCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a shell on a new board session.
func New(cfg *sim.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Shell:       ishell.New(),
		Session:     StartSession(*cfg),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// SessionFrom gets the board session from ishell context.
func SessionFrom(c *ishell.Context) *Session {
	return ShellFrom(c).Session
}

// Run runs the shell. With args, they are evaluated as one command.
func (s *Shell) Run(args ...string) {
	defer s.Session.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Output prints v as JSON in JSON mode, or its text form otherwise.
func Output(c *ishell.Context, v fmt.Stringer) {
	if ShellFrom(c).OutputJSON {
		out, err := sonnet.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(v.String())
}

type quoted []byte

func (q quoted) String() string {
	return strconv.Quote(string(q))
}

func (q quoted) MarshalJSON() ([]byte, error) {
	return sonnet.Marshal(string(q))
}

type boolText bool

func (f boolText) String() string {
	return strconv.FormatBool(bool(f))
}

// unquote turns escapes like \r and \n typed in the shell into bytes.
func unquote(args []string) string {
	text := strings.Join(args, " ")
	if s, err := strconv.Unquote(`"` + strings.ReplaceAll(text, `"`, `\"`) + `"`); err == nil {
		return s
	}
	return text
}

var (
	// InitCmd initializes the transport.
	InitCmd = ishell.Cmd{
		Name: "init",
		Help: "[BAUD] [echo]",
		Func: func(c *ishell.Context) {
			cfg, err := SessionFrom(c).Init(c.Args...)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("USART %s echo=%v\n", cfg.Baud, cfg.EchoOnReceive)
		},
	}

	// WriteCmd transmits text from the board.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "TEXT",
		Func: func(c *ishell.Context) {
			if err := SessionFrom(c).Write(unquote(c.Args)); err != nil {
				c.Err(err)
			}
		},
	}

	// PrintfCmd formats on the board.
	PrintfCmd = ishell.Cmd{
		Name: "printf",
		Help: "FORMAT ARGS...",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("format expected"))
				return
			}
			if err := SessionFrom(c).Printf(unquote(c.Args[:1]), c.Args[1:]...); err != nil {
				c.Err(err)
			}
		},
	}

	// InjectCmd delivers text to the board receiver.
	InjectCmd = ishell.Cmd{
		Name:    "inject",
		Aliases: []string{"i"},
		Help:    "TEXT",
		Func: func(c *ishell.Context) {
			SessionFrom(c).Inject(unquote(c.Args))
		},
	}

	// PollCmd shows whether received data is waiting.
	PollCmd = ishell.Cmd{
		Name: "poll",
		Func: func(c *ishell.Context) {
			ok, err := SessionFrom(c).Poll()
			if err != nil {
				c.Err(err)
				return
			}
			Output(c, boolText(ok))
		},
	}

	// ReadCmd reads received bytes.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "[N]",
		Func: func(c *ishell.Context) {
			n := 1 << 16
			if len(c.Args) > 0 {
				var err error
				if n, err = strconv.Atoi(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
			}
			data, err := SessionFrom(c).Read(n)
			if err != nil {
				c.Err(err)
				return
			}
			Output(c, quoted(data))
		},
	}

	// WireCmd shows what the board transmitted.
	WireCmd = ishell.Cmd{
		Name: "wire",
		Func: func(c *ishell.Context) {
			Output(c, quoted(SessionFrom(c).Wire()))
		},
	}

	// StatusCmd shows the board state.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Func: func(c *ishell.Context) {
			Output(c, SessionFrom(c).Status())
		},
	}

	// FlushCmd waits for the transmitter to go idle.
	FlushCmd = ishell.Cmd{
		Name: "flush",
		Func: func(c *ishell.Context) {
			if err := SessionFrom(c).Flush(); err != nil {
				c.Err(err)
			}
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(sim.NewConfig()).Run(flag.Args()...)
}
