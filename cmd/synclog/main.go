package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"synclog/internal/app"
	"synclog/internal/config"
	logx "synclog/pkg/logx"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath string
		recent  int
	)
	flag.StringVar(&cfgPath, "config", os.Getenv(config.EnvConfig), "path to config file (json or yaml)")
	flag.IntVar(&recent, "recent", 0, "print the last N stored records and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [--] [command [args...]]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(logx.Stderr(), "fatal:", err)
		return 1
	}

	if recent > 0 {
		defer a.Stop(context.Background(), app.StopUnknown)
		entries, err := a.Recent(ctx, recent)
		if err != nil {
			fmt.Fprintln(logx.Stderr(), "fatal:", err)
			return 1
		}
		for _, e := range entries {
			fmt.Fprintf(logx.Stdout(), "%s:%s:%s: %s\n", e.At.Format(logx.LineTimeFormat), e.Level, e.Logger, e.Message)
		}
		return 0
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(logx.Stderr(), "fatal start:", err)
		return 1
	}

	reason, runErr := a.Run(ctx, flag.Args())
	if runErr == nil {
		// The supervisor cancels on fatal background errors.
		if err := a.Err(); err != nil {
			reason, runErr = app.StopFatalError, err
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		fmt.Fprintln(logx.Stderr(), "stop:", err)
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(runErr, &exitErr):
		return exitErr.ExitCode()
	case runErr != nil:
		fmt.Fprintln(logx.Stderr(), "fatal:", runErr)
		return 1
	}
	return 0
}
