// Command drivermgr resolves, installs, and runs Chrome for Testing
// fixtures from the command line, sharing the cache used by the library.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/drivermgr/drivermgr"
	"github.com/drivermgr/drivermgr/cft"
	"github.com/drivermgr/drivermgr/runner"
)

func main() {
	app := &cli.App{
		Name:  "drivermgr",
		Usage: "provision Chrome for Testing browser+driver fixtures",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "artifact cache directory (default: user cache dir)",
			},
		},
		Commands: []*cli.Command{
			resolveCommand(),
			installCommand(),
			clearCacheCommand(),
			runCommand(),
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// versionFlags select which version a command operates on.
func versionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "channel",
			Usage: "release channel (Stable, Beta, Dev, Canary) or 'latest'",
			Value: string(cft.Stable),
		},
		&cli.StringFlag{
			Name:  "pin",
			Usage: "pin an exact version, e.g. 135.0.7019.0 (overrides --channel)",
		},
	}
}

func newManager(c *cli.Context) (*drivermgr.Manager, error) {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []drivermgr.Option{drivermgr.WithLogger(logger)}
	if dir := c.String("cache-dir"); dir != "" {
		opts = append(opts, drivermgr.WithCacheDir(dir))
	}
	return drivermgr.NewManager(opts...)
}

func versionRequest(c *cli.Context) (drivermgr.VersionRequest, error) {
	if pin := c.String("pin"); pin != "" {
		version, err := cft.ParseVersion(pin)
		if err != nil {
			return drivermgr.VersionRequest{}, err
		}
		return drivermgr.Fixed(version), nil
	}
	if channel := c.String("channel"); channel != "latest" {
		return drivermgr.LatestIn(cft.Channel(channel)), nil
	}
	return drivermgr.Latest(), nil
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "resolve a version request against the catalogs",
		Flags: versionFlags(),
		Action: func(c *cli.Context) error {
			mgr, err := newManager(c)
			if err != nil {
				return err
			}
			request, err := versionRequest(c)
			if err != nil {
				return err
			}
			selected, err := mgr.Resolve(c.Context, request)
			if err != nil {
				return err
			}
			fmt.Printf("version:  %s\n", selected.Version)
			fmt.Printf("revision: %s\n", selected.Revision)
			if selected.Channel != "" {
				fmt.Printf("channel:  %s\n", selected.Channel)
			}
			fmt.Printf("platform: %s\n", mgr.Platform())
			return nil
		},
	}
}

func installCommand() *cli.Command {
	return &cli.Command{
		Name:  "install",
		Usage: "download and cache the browser and driver binaries",
		Flags: versionFlags(),
		Action: func(c *cli.Context) error {
			mgr, err := newManager(c)
			if err != nil {
				return err
			}
			request, err := versionRequest(c)
			if err != nil {
				return err
			}
			selected, err := mgr.Resolve(c.Context, request)
			if err != nil {
				return err
			}
			loaded, err := mgr.Ensure(c.Context, selected)
			if err != nil {
				return err
			}
			fmt.Printf("chrome:       %s\n", loaded.ChromePath)
			fmt.Printf("chromedriver: %s\n", loaded.ChromedriverPath)
			return nil
		},
	}
}

func clearCacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear-cache",
		Usage: "remove every cached artifact and recreate the empty cache",
		Action: func(c *cli.Context) error {
			mgr, err := newManager(c)
			if err != nil {
				return err
			}
			return mgr.ClearCache()
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "install if needed, then run chromedriver until interrupted",
		Flags: append(versionFlags(),
			&cli.UintFlag{
				Name:  "port",
				Usage: "fixed chromedriver port (default: let chromedriver choose)",
			},
		),
		Action: func(c *cli.Context) error {
			mgr, err := newManager(c)
			if err != nil {
				return err
			}
			request, err := versionRequest(c)
			if err != nil {
				return err
			}

			portRequest := runner.AnyPort()
			if p := c.Uint("port"); p != 0 {
				portRequest = runner.FixedPort(runner.Port(p))
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			cd, err := mgr.Run(ctx, request, portRequest)
			if err != nil {
				return err
			}
			fmt.Printf("chromedriver listening on http://localhost:%d (ctrl-c to stop)\n", cd.Port())

			interrupted := make(chan os.Signal, 1)
			signal.Notify(interrupted, os.Interrupt, syscall.SIGTERM)
			select {
			case <-interrupted:
			case <-cd.Process().Done():
				return fmt.Errorf("chromedriver exited: %v", cd.Process().ExitState())
			}

			status, err := cd.Terminate()
			if err != nil {
				return err
			}
			fmt.Printf("chromedriver stopped: %v\n", status)
			return nil
		},
	}
}
