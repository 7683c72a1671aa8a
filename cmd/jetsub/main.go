// Command jetsub runs jet pruning and mass volatility over a file of jets and
// writes the per-jet observables as CSV, plots and an optional SQLite record.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/jetsub/internal/config"
	"github.com/banshee-data/jetsub/internal/engine"
	"github.com/banshee-data/jetsub/internal/jetdb"
	"github.com/banshee-data/jetsub/internal/jetio"
	"github.com/banshee-data/jetsub/internal/monitoring"
	"github.com/banshee-data/jetsub/internal/report"
	"github.com/banshee-data/jetsub/internal/version"
)

// options holds the parsed command line.
type options struct {
	input      string
	configPath string
	csvPath    string
	plotPath   string
	htmlPath   string
	dbPath     string
	serve      string
	workers    int
	volatility bool
	verbose    bool
	version    bool

	// set records which flags were given explicitly.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet("jetsub", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.input, "input", "", "Input jets file (.json or .csv)")
	fs.StringVar(&o.configPath, "config", "", "JSON config file (defaults used when empty)")
	fs.StringVar(&o.csvPath, "csv", "-", "Output CSV file, '-' for stdout, '' to disable")
	fs.StringVar(&o.plotPath, "plot", "", "Write the pruned-mass histogram PNG to this path")
	fs.StringVar(&o.htmlPath, "html", "", "Write the HTML histogram page to this path")
	fs.StringVar(&o.dbPath, "db", "", "Record the run in this SQLite database")
	fs.StringVar(&o.serve, "serve", "", "After processing, serve the report and /debug/ pages on this address until interrupted")
	fs.IntVar(&o.workers, "workers", 0, "Concurrent jets (overrides config; 0 = GOMAXPROCS)")
	fs.BoolVar(&o.volatility, "volatility", false, "Compute mass volatility (overrides config)")
	fs.BoolVar(&o.verbose, "v", false, "Verbose per-jet logging")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	if o.version {
		return o, nil
	}
	if o.input == "" {
		return nil, errors.New("-input is required")
	}
	if o.workers < 0 {
		return nil, fmt.Errorf("-workers must be non-negative, got %d", o.workers)
	}
	if o.serve != "" && o.dbPath == "" {
		return nil, errors.New("-serve requires -db")
	}
	return o, nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(o *options) (*config.JetConfig, error) {
	cfg := config.EmptyJetConfig()
	if o.configPath != "" {
		var err error
		cfg, err = config.LoadJetConfig(o.configPath)
		if err != nil {
			return nil, err
		}
	}
	if o.set["workers"] {
		w := o.workers
		cfg.Workers = &w
	}
	if o.set["volatility"] {
		v := o.volatility
		cfg.ComputeVolatility = &v
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	monitoring.SetVerbose(o.verbose)

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	jets, err := jetio.ReadFile(o.input)
	if err != nil {
		return err
	}
	monitoring.Logf("read %d jets from %s", len(jets), o.input)

	start := time.Now()
	results, err := engine.Process(ctx, jets, cfg.EngineConfig())
	if err != nil {
		return err
	}
	rejected := 0
	for _, r := range results {
		if r.Err != nil {
			rejected++
		}
	}
	monitoring.Logf("processed %d jets in %v (%d rejected)", len(results), time.Since(start).Round(time.Millisecond), rejected)

	if err := writeOutputs(o, results, stdout); err != nil {
		return err
	}

	if o.dbPath == "" {
		return nil
	}
	db, err := jetdb.Open(o.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	configJSON, err := json.Marshal(cfg.Effective())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	rec := &jetdb.Run{
		Version:    version.Version,
		InputPath:  o.input,
		ConfigJSON: string(configJSON),
		NumJets:    len(results),
	}
	if err := db.InsertRun(rec); err != nil {
		return err
	}
	if err := db.InsertResults(rec.RunID, results); err != nil {
		return err
	}
	monitoring.Logf("recorded run %s in %s", rec.RunID, o.dbPath)

	if o.serve != "" {
		return serve(ctx, o.serve, db, results)
	}
	return nil
}

func writeOutputs(o *options, results map[int]engine.JetResult, stdout io.Writer) error {
	switch o.csvPath {
	case "":
	case "-":
		if err := report.NewCSVWriter(stdout).WriteResults(results); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	default:
		f, err := os.Create(o.csvPath)
		if err != nil {
			return fmt.Errorf("could not create output file %s: %w", o.csvPath, err)
		}
		if err := report.NewCSVWriter(f).WriteResults(results); err != nil {
			f.Close()
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	if o.plotPath != "" {
		if err := report.SavePrunedMassPlot(results, o.plotPath); err != nil {
			return err
		}
		monitoring.Logf("wrote %s", o.plotPath)
	}

	if o.htmlPath != "" {
		var buf bytes.Buffer
		if err := report.RenderHTML(&buf, results); err != nil {
			return err
		}
		if err := os.WriteFile(o.htmlPath, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("could not write %s: %w", o.htmlPath, err)
		}
		monitoring.Logf("wrote %s", o.htmlPath)
	}
	return nil
}

func newServeMux(db *jetdb.DB, results map[int]engine.JetResult) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		var buf bytes.Buffer
		if err := report.RenderHTML(&buf, results); err != nil {
			http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})
	return mux, nil
}

func serve(ctx context.Context, addr string, db *jetdb.DB, results map[int]engine.JetResult) error {
	mux, err := newServeMux(db, results)
	if err != nil {
		return err
	}
	server := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()
	monitoring.Logf("serving report on %s", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("jetsub: %v", err)
	}
}
