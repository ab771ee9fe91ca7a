// nim-memory: semantic memory for agents.
//
// Usage:
//
//	nim-memory serve                 # MCP server on stdio
//	nim-memory remember <text>       # store a note, print its id
//	nim-memory recall [-k N] <query> # print the closest notes
//	nim-memory update <id> <text>    # replace a note
//	nim-memory version
//
// Every command accepts -config <file>; NIM_MEMORY_CONFIG is the default.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/metrics"
	memserver "github.com/becomeliminal/nim-memory/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "remember":
		err = runRemember(os.Args[2:])
	case "recall":
		err = runRecall(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "--version", "-v", "version":
		fmt.Printf("nim-memory %s\n", memserver.Version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `nim-memory: semantic memory for agents

Usage:
  nim-memory serve [-config file]                  Start the MCP server (stdio)
  nim-memory remember [-config file] <text>        Store a note
  nim-memory recall [-config file] [-k N] <query>  Show the closest notes
  nim-memory update [-config file] <id> <text>     Replace a note
  nim-memory version                               Print the version
`)
}

// commandFlags returns a flag set with the shared -config flag.
func commandFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("NIM_MEMORY_CONFIG"), "path to YAML config")
	return fs, configPath
}

// open loads the configuration and builds the Manager.
func open(configPath string) (*memory.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewManager(cfg, nil)
}

func runServe(args []string) error {
	fs, configPath := commandFlags("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	var observer memory.Observer
	if cfg.Metrics.Addr != "" {
		observer = metrics.New(prometheus.DefaultRegisterer)
	}
	mgr, err := NewManager(cfg, observer)
	if err != nil {
		return fmt.Errorf("creating memory: %w", err)
	}
	defer mgr.Close()

	if cfg.Metrics.Addr != "" {
		srv := startMetrics(cfg.Metrics.Addr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	s, err := memserver.New(mgr)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Close the store on interrupt; ServeStdio returns when stdin closes.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[MCP] Shutting down")
		mgr.Close()
		os.Exit(0)
	}()

	log.Printf("[MCP] Serving nim-memory %s on stdio (backend=%s, embedder=%s)", memserver.Version, cfg.Backend, cfg.Embedder.Provider)
	return server.ServeStdio(s)
}

func startMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[METRICS] %v", err)
		}
	}()
	log.Printf("[METRICS] Serving /metrics on %s", addr)
	return srv
}

func runRemember(args []string) error {
	fs, configPath := commandFlags("remember")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("usage: nim-memory remember <text>")
	}

	mgr, err := open(*configPath)
	if err != nil {
		return err
	}
	defer mgr.Close()

	id, err := mgr.Store(context.Background(), text)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runRecall(args []string) error {
	fs, configPath := commandFlags("recall")
	k := fs.Int("k", memory.DefaultTopK, "number of memories to return")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("usage: nim-memory recall [-k N] <query>")
	}

	mgr, err := open(*configPath)
	if err != nil {
		return err
	}
	defer mgr.Close()

	results, err := mgr.Retrieve(context.Background(), query, *k)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No memories found.")
		return nil
	}
	fmt.Println(memory.FormatResults(results, 200))
	return nil
}

func runUpdate(args []string) error {
	fs, configPath := commandFlags("update")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: nim-memory update <id> <text>")
	}
	id := fs.Arg(0)
	text := strings.Join(fs.Args()[1:], " ")

	mgr, err := open(*configPath)
	if err != nil {
		return err
	}
	defer mgr.Close()

	updated, err := mgr.Update(context.Background(), id, text)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("no memory with id %s", id)
	}
	fmt.Println("updated", id)
	return nil
}
