// client is the terminal client of the game: it connects to the game server and
// reads commands from stdin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/janpfeifer/xemk/internal/client"
	"github.com/janpfeifer/xemk/internal/config"
	"github.com/janpfeifer/xemk/internal/console"
	"k8s.io/klog/v2"
)

var (
	flagConfig   = flag.String("config", "", "YAML configuration file")
	flagPlayer   = flag.String("player", "", "Player id, overrides the configuration")
	flagHost     = flag.String("host", "", "Game server host, overrides the configuration")
	flagPort     = flag.Int("port", 0, "Game server port, overrides the configuration")
	flagNoJoin   = flag.Bool("no_join", false, "Don't send player_join when connected")
	flagShowEach = flag.Bool("show", true, "Print the board after every change")
)

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		if cfg, err = config.Load(*flagConfig); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if *flagPlayer != "" {
		cfg.PlayerID = *flagPlayer
	}
	if *flagHost != "" {
		cfg.Host = *flagHost
	}
	if *flagPort > 0 {
		cfg.Port = *flagPort
	}
	if *flagNoJoin {
		cfg.AutoJoin = false
	}
	return cfg, nil
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		klog.Fatalf("Failed to load configuration: %v", err)
	}
	c, err := client.New(cfg)
	if err != nil {
		klog.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if *flagShowEach {
		s := c.Session()
		s.Listen("console", func() { console.Render(os.Stdout, s.Snapshot()) })
	}

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	fmt.Printf("Playing as %s on %s\n", cfg.PlayerID, cfg.URL())
	if err := console.Run(ctx, c, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		klog.Errorf("console: %v", err)
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		klog.Fatal(err)
	}
}
