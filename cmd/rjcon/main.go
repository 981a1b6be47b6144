// rjcon is an interactive console for an rjs server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/rjs/api"
	"github.com/chazu/rjs/client"
	"github.com/chazu/rjs/config"
	"github.com/chazu/rjs/console"
	"github.com/chazu/rjs/history"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

var log = commonlog.GetLogger("rjcon")

func main() {
	configPath := flag.String("config", "", "Configuration file (default: rjs.toml found from the working directory up)")
	url := flag.String("url", "", "Server URL (overrides [client] url)")
	slot := flag.Int("slot", -1, "Slot to connect to: 0 is the console, 1-3 evaluate lines as data commands")
	historyPath := flag.String("history", "", "History file (overrides [history] path)")
	verbosity := flag.Int("v", -1, "Log verbosity (-4 none .. 2 debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rjcon [options]\n\n")
		fmt.Fprintf(os.Stderr, "Connects to an rjs server and runs its console.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rjcon                               # Console of the configured server\n")
		fmt.Fprintf(os.Stderr, "  rjcon -url http://host:8765 -slot 1 # Data client on slot 1\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *url != "" {
		cfg.Client.URL = *url
	}
	if *slot >= 0 {
		cfg.Client.Slot = *slot
	}
	if *historyPath != "" {
		cfg.History.Path = *historyPath
	}
	commonlog.Configure(*verbosity, nil)

	if err := run(cfg); err != nil {
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

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rpc := api.NewConsoleServiceClient(http.DefaultClient, cfg.Client.URL)
	resp, err := rpc.Start(ctx, &api.StartRequest{})
	if err != nil {
		return errors.Wrapf(err, "start engine at %s", cfg.Client.URL)
	}
	if st := resp.Status; st.Severity >= item.SeverityError {
		return errors.Errorf("start engine: %s", st.Message)
	} else if !st.IsOK() {
		log.Info(st.Message)
	}

	hist, err := history.Open(cfg.History.Backend, cfg.Path(cfg.History.Path), cfg.History.Limit)
	if err != nil {
		return err
	}
	defer hist.Close()

	reader, closeReader := console.NewReader()
	defer closeReader()
	con := console.New(reader, os.Stdout, os.Stderr, hist)
	con.OnEOF = cancel

	name, _ := os.Hostname()
	c, err := client.Dial(ctx, rpc, cfg.Client.Slot, "rjcon@"+name, con)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	stopInterrupts := forwardInterrupts(c, con)
	defer stopInterrupts()

	if c.Slot() == 0 {
		err = c.RunConsole(ctx)
	} else {
		err = dataLoop(ctx, c, reader)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// forwardInterrupts cancels the running command on SIGINT. At the prompt
// the line reader handles Ctrl-C itself.
func forwardInterrupts(c *client.Client, con *console.Console) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigs:
				if !con.IsBusy() {
					continue
				}
				if err := c.Cancel(context.Background()); err != nil {
					log.Warningf("cancel: %s", err.Error())
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// dataLoop evaluates each line as a data command and prints the result.
func dataLoop(ctx context.Context, c *client.Client, reader console.LineReader) error {
	prompt := fmt.Sprintf("[%d]> ", c.Slot())
	for {
		line, err := reader.ReadLine(prompt)
		switch {
		case errors.Is(err, console.ErrInterrupted):
			continue
		case err != nil:
			fmt.Println()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		reader.AppendHistory(line)

		v, err := c.EvalData(ctx, fmt.Sprintf("toString(format((%s)))", line), -1)
		switch {
		case errors.Is(err, client.ErrDisconnected), errors.Is(err, client.ErrStopped):
			return err
		case err != nil:
			fmt.Fprintln(os.Stderr, err.Error())
			continue
		}
		fmt.Println(text(v))
	}
}

func text(v rdata.Object) string {
	if vec, ok := v.(*rdata.Vector); ok {
		if s, ok := vec.Data.(*rdata.CharacterStore); ok && s.Len() == 1 {
			return s.Values[0]
		}
	}
	return fmt.Sprintf("<%s>", v.ClassName())
}
