package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"monitoring/internal/app"
	"monitoring/internal/clock"
	"monitoring/internal/config"
)

// main starts monitoring service using file or directory config source.
// Params: CLI flags (--config-file or --config-dir, optional --verify).
// Returns: process exit code by startup/run result.
func main() {
	var (
		configFile = flag.String("config-file", "", "path to one TOML config file")
		configDir  = flag.String("config-dir", "", "path to directory with TOML config fragments")
		verify     = flag.Bool("verify", false, "load and resolve configuration, then exit")
	)
	flag.Parse()

	source, err := config.FromCLI(*configFile, *configDir)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if *verify {
		notifiers, warnings, err := app.VerifyConfig(source)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "config verification failed:", err.Error())
			os.Exit(1)
		}
		_, _ = fmt.Fprintf(os.Stdout, "config ok: %d notifiers, %d warnings\n", notifiers, warnings)
		return
	}

	service, err := app.NewService(source, clock.RealClock{})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service init failed:", err.Error())
		os.Exit(1)
	}

	if err := service.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service run failed:", err.Error())
		os.Exit(1)
	}
}
