package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/FundProjects/fundnova"
	"github.com/FundProjects/fundnova/internal/config"
)

var (
	confPath = flag.String("config", "./config.toml", "Config path")
)

func main() {
	flag.Parse()

	if err := config.Load(*confPath); err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't load config: %v\n", err)
		os.Exit(1)
	}
	// save the config for formatting
	if err := config.Save(*confPath); err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't resave config: %v\n", err)
		os.Exit(1)
	}
	if err := config.LoadFlags(config.Common.FlagsPath); err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't load runtime flags: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(fundnova.GetSlogHandler(config.Common.Debug, os.Stdout)))

	if err := serve(); err != nil {
		slog.Error("Server exited", slog.Any("err", err))
		os.Exit(1)
	}
}
