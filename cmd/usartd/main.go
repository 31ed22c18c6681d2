package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/bsp.go/pkg/firmware/console"
	fx "github.com/robotalks/bsp.go/pkg/framework"
	"github.com/robotalks/bsp.go/pkg/link"
	"github.com/robotalks/bsp.go/pkg/sim"
	"github.com/robotalks/bsp.go/pkg/usart"
)

func init() {
	usart.SetupFlags()
	sim.SetupFlags()
	link.SetupFlags()
}

func main() {
	flag.Parse()

	board := sim.NewConfig().NewBoard()
	board.InstallReporter()
	board.USART.Init(*usart.NewConfig())

	ext, err := link.NewConfig().Open()
	if err != nil {
		glog.Exitf("open link: %v", err)
	}

	con := console.New(board.USART, board.LED)
	loop := fx.NewLoop().Add(con)
	loop.AddRunnable(board)

	runner := fx.NewRunner().HandleSignals()
	runner.StopOnError = true
	runner.Go(
		fx.NamedRun("loop", loop),
		fx.NamedFunc("link", func(ctx context.Context) error {
			return link.Pump(ctx, board.Port.Remote(), ext)
		}),
	)
	con.Start()
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
