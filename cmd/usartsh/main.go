package main

import (
	"github.com/robotalks/bsp.go/pkg/cli/sh"
	"github.com/robotalks/bsp.go/pkg/sim"
	"github.com/robotalks/bsp.go/pkg/usart"

	_ "github.com/robotalks/bsp.go/pkg/cli/cmds/console"
)

//go-build: CGO_ENABLED=0

func init() {
	usart.SetupFlags()
	sim.SetupFlags()
}

func main() {
	sh.Main()
}
