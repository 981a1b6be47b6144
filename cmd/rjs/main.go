// rjs serves an embedded engine to remote console and data clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/rjs/adapter"
	"github.com/chazu/rjs/config"
	"github.com/chazu/rjs/exchange"
	"github.com/chazu/rjs/server"
)

var log = commonlog.GetLogger("rjs")

func main() {
	configPath := flag.String("config", "", "Configuration file (default: rjs.toml found from the working directory up)")
	addr := flag.String("addr", "", "Listen address (overrides [server] addr)")
	workDir := flag.String("workdir", "", "Directory for file transfers (overrides [server] work_dir)")
	verbosity := flag.Int("v", 0, "Log verbosity (-4 none .. 2 debug; overrides [log] verbosity)")
	start := flag.Bool("start", false, "Start the engine before the first client asks for it")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rjs [options]\n\n")
		fmt.Fprintf(os.Stderr, "Serves an engine to rjcon and other clients over HTTP.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rjs                          # Serve on the configured address\n")
		fmt.Fprintf(os.Stderr, "  rjs -addr :9000 -start       # Serve on :9000, start the engine now\n")
		fmt.Fprintf(os.Stderr, "  rjs -config ./rjs.toml -v 2  # Explicit configuration, debug logging\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "workdir":
			cfg.Server.WorkDir = *workDir
		case "v":
			cfg.Log.Verbosity = *verbosity
		}
	})
	configureLog(cfg.Log.Verbosity, cfg.Path(cfg.Log.File))

	if err := run(cfg, *start); err != nil {
		log.Errorf("%s", err.Error())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

func configureLog(verbosity int, file string) {
	if file == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &file)
}

func run(cfg *config.Config, start bool) error {
	x := exchange.New(cfg.Policy())
	ctx := adapter.New(x, cfg.AdapterOptions())

	srv, err := server.New(ctx,
		server.WithWorkDir(cfg.Path(cfg.Server.WorkDir)),
		server.WithProfile(cfg.Server.Profile),
		server.WithStaleSpan(cfg.Server.StaleSpan),
		server.WithSweepInterval(cfg.Server.SweepInterval),
	)
	if err != nil {
		return err
	}
	if start {
		if err := ctx.Start(cfg.Server.Profile); err != nil {
			srv.Stop()
			return err
		}
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		srv.Stop()
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return srv.Serve(ln)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-x.Done():
			log.Notice("engine stopped")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
