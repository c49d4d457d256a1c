// Command kiln optimizes a static site's assets for production: images
// are resized and re-encoded, stylesheets and scripts are minified, and
// everything else is copied through. See `kiln help` for the commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/eringen/kiln"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		os.Exit(runBuild(arg(2, "."), arg(3, "dist")))
	case "watch":
		os.Exit(runWatch(arg(2, "."), arg(3, "dist")))
	case "serve":
		os.Exit(runServe(arg(2, "dist")))
	case "new":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: kiln new <site-name>")
			os.Exit(1)
		}
		if err := runNew(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("kiln %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func arg(i int, fallback string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return fallback
}

func buildConfig(src, out string) kiln.Config {
	return kiln.Config{
		SourceDir:   src,
		OutDir:      out,
		SiteURL:     strings.TrimSuffix(kiln.EnvOr("SITE_URL", ""), "/"),
		Concurrency: kiln.EnvInt("KILN_CONCURRENCY", 0),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// finish maps a pipeline error to an exit status. A canceled context is a
// clean Ctrl-C shutdown, not a failure.
func finish(log *zap.Logger, msg string, err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	log.Error(msg, zap.Error(err))
	return 1
}

func runBuild(src, out string) int {
	log := kiln.NewLogger()
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	p := kiln.New(buildConfig(src, out), kiln.WithLogger(log))
	defer p.Close()

	sum, err := p.Run(ctx)
	if err != nil {
		return finish(log, "build failed", err)
	}
	if sum.Failed() {
		return 1
	}
	return 0
}

func runWatch(src, out string) int {
	log := kiln.NewLogger()
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	p := kiln.New(buildConfig(src, out), kiln.WithLogger(log))
	defer p.Close()

	return finish(log, "watch failed", p.Watch(ctx))
}

func runServe(dir string) int {
	log := kiln.NewLogger()
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	s, err := kiln.NewServer(buildConfig(".", dir), dir, log)
	if err != nil {
		log.Error("serve failed", zap.Error(err))
		return 1
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.Start(kiln.EnvOr("KILN_ADDR", ":3000"))
	}()

	select {
	case <-ctx.Done():
		s.Close()
		return 0
	case err := <-errc:
		if err != nil {
			log.Error("serve failed", zap.Error(err))
			return 1
		}
		return 0
	}
}

func printUsage() {
	fmt.Println(`kiln - static site asset optimizer

Usage:
  kiln <command> [arguments]

Commands:
  build [src] [out]   Optimize a site source tree (defaults: . dist)
  watch [src] [out]   Build, then rebuild on source changes
  serve [dir]         Preview an output tree locally (default dist)
  new <name>          Scaffold a new site source tree
  version             Print the kiln version
  help                Show this help message

Environment:
  SITE_URL            Canonical site URL; enables sitemap.xml
  KILN_ADDR           Preview server address (default :3000)
  KILN_CONCURRENCY    Per-kind worker pool size (default 1)`)
}
