package console

import (
	"strings"

	"github.com/robotalks/bsp.go/pkg/assert"
)

var builtins = []*Command{
	{
		Name: "help",
		Help: "list commands",
		Run: func(c *Console, _ []string) {
			for _, cmd := range c.Commands() {
				c.USART.Printf("  %-6s %-16s %s\n", cmd.Name, cmd.Usage, cmd.Help)
			}
		},
	},
	{
		Name:  "echo",
		Usage: "TEXT...",
		Help:  "print TEXT",
		Run: func(c *Console, args []string) {
			c.USART.Printf("%s\n", strings.Join(args, " "))
		},
	},
	{
		Name: "stats",
		Help: "show line counters",
		Run: func(c *Console, _ []string) {
			s := c.USART.Stats()
			c.USART.Printf("rx %d dropped %d buffered %d\n", s.RxBytes, s.RxDropped, s.RxBuffered)
			c.USART.Printf("tx %d pending %d echo-dropped %d\n", s.TxBytes, s.TxPending, s.EchoDropped)
		},
	},
	{
		Name: "baud",
		Help: "show line settings",
		Run: func(c *Console, _ []string) {
			cfg := c.USART.Config()
			c.USART.Printf("%s 8N1 echo=%v\n", cfg.Baud, cfg.EchoOnReceive)
		},
	},
	{
		Name:  "led",
		Usage: "[on|off|toggle]",
		Help:  "drive the debug LED",
		Run: func(c *Console, args []string) {
			if c.LED == nil {
				c.USART.Print("no LED\n")
				return
			}
			if len(args) > 0 {
				switch args[0] {
				case "on":
					c.LED.Set(true)
				case "off":
					c.LED.Set(false)
				case "toggle":
					c.LED.Toggle()
				default:
					c.USART.Printf("usage: led [on|off|toggle]\n")
					return
				}
			}
			state := "off"
			if c.LED.Level() {
				state = "on"
			}
			c.USART.Printf("led %s\n", state)
		},
	},
	{
		Name:  "assert",
		Usage: "MSG...",
		Help:  "fail an assertion and halt",
		Run: func(c *Console, args []string) {
			assert.Fail("%s", strings.Join(args, " "))
		},
	},
}
