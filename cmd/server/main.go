package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/janpfeifer/xemk/internal/server"
	"k8s.io/klog/v2"
)

var (
	flagAddr = flag.String("addr", "", "Address to listen on (default: auto-port on localhost)")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	started := make(chan string, 1)
	go func() {
		addr := <-started
		fmt.Printf("XEMK web client on http://%s\n", addr)
	}()

	if err := server.Run(ctx, *flagAddr, started); err != nil {
		klog.Fatal(err)
	}
}
