package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rezon/mediasession/backend"
	"github.com/rezon/mediasession/backend/ipc"
	"github.com/rezon/mediasession/res"
)

func main() {
	flag.Parse()
	if *backend.FlagVersion {
		fmt.Println(res.AppVersion)
		return
	}
	if *backend.FlagHelp {
		flag.Usage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if backend.HaveCommandLineOptions() {
		cli, err := ipc.Connect()
		if err != nil {
			log.Fatalf("no running %s daemon: %v", res.AppName, err)
		}
		if err := backend.RunCommandLineOptions(ctx, cli, os.Stdout); err != nil {
			log.Fatalf("error: %v", err)
		}
		return
	}

	myApp, err := backend.StartupApp(res.AppName, res.DisplayName, res.AppVersionTag, *backend.FlagConfig)
	if errors.Is(err, backend.ErrAnotherInstance) {
		log.Println("Another instance is already running")
		os.Exit(1)
	} else if err != nil {
		log.Fatalf("fatal startup error: %v", err.Error())
	}
	myApp.OnExit = stop

	<-ctx.Done()
	log.Println("Running shutdown tasks...")
	myApp.Shutdown()
}
