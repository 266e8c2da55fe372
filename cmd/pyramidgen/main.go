// Command pyramidgen produces a tile pyramid from an HCL config file:
//
//	pyramidgen -config production.hcl [-v]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/terratile/pyramid"
	"github.com/terratile/pyramid/format"
)

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "pyramidgen:", err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	fs := flag.NewFlagSet("pyramidgen", flag.ContinueOnError)
	configPath := fs.String("config", "production.hcl", "path to the HCL production config")
	verbose := fs.Bool("v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	pyramid.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	params, sources, opts, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// Locale-aware printer so large tile counts stay readable.
	printer := message.NewPrinter(language.English)

	var lastPct int = -1
	b, err := pyramid.NewBuilder(params,
		pyramid.WithReaders(format.Readers()...),
		pyramid.WithWriters(format.Writers()...),
		pyramid.WithCacheBudget(opts.cacheBudget),
		pyramid.WithInstallWorkers(opts.writeWorkers),
		pyramid.WithProgressFunc(func(f float64) {
			if pct := int(f * 100); pct != lastPct {
				lastPct = pct
				printer.Fprintf(outW, "\r%3d%% complete", pct)
			}
		}),
	)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if err := b.AddSource(src); err != nil {
			return err
		}
	}

	// Ctrl-C cancels cooperatively: in-flight tile writes finish, no new
	// tiles are scheduled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Build(ctx); err != nil {
		fmt.Fprintln(outW)
		return err
	}
	printer.Fprintf(outW, "\rwrote %v tile addresses to %s/%s\n",
		b.State().Completed(), params.StoreLocation, params.CacheName)
	return nil
}
