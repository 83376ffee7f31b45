package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/m3rciful/groupwarden/core/bootstrap"
	"github.com/m3rciful/groupwarden/core/cmd"
	"github.com/m3rciful/groupwarden/internal/bot"
)

const (
	maxRestarts = 5
	maxBackoff  = 30 * time.Second
)

func main() {
	for attempt := 0; ; attempt++ {
		err := run()
		if err == nil {
			return
		}
		log.Printf("bot exited: %v", err)
		if attempt+1 >= maxRestarts {
			log.Printf("giving up after %d attempts", maxRestarts)
			os.Exit(1)
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		log.Printf("restarting in %s (attempt %d/%d)", backoff, attempt+2, maxRestarts)
		time.Sleep(backoff)
	}
}

func run() error {
	return cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return bot.Load(path)
		},
		Bootstrap: func(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			cfg, ok := carrier.(*bot.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			res, err := bootstrap.Run(bootstrap.Options{
				Config:   cfg.CoreConfig(),
				Database: cfg.Database,
			})
			if err != nil {
				return nil, err
			}
			return bot.NewApp(context.Background(), cfg, res.DB)
		},
	})
}
