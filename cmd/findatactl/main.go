// findatactl is an interactive shell for inspecting and maintaining a
// findata data directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"

	"github.com/xtxerr/findata/internal/analytics"
	"github.com/xtxerr/findata/internal/config"
	"github.com/xtxerr/findata/internal/engine"
	"github.com/xtxerr/findata/internal/export"
	"github.com/xtxerr/findata/internal/logging"
	"github.com/xtxerr/findata/internal/query"
	"github.com/xtxerr/findata/internal/types"
)

// Version is set at build time via ldflags
var Version = "dev"

type shell struct {
	cfg    *config.Config
	engine *engine.Engine
	query  *query.Service
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	dataDir := flag.String("data", "", "data directory (overrides config)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logging.Init(level, false)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	eng, err := engine.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open engine: %v\n", err)
		os.Exit(1)
	}

	qry, err := query.New(cfg.ExportDir(), cfg.Query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open query service: %v\n", err)
		os.Exit(1)
	}

	sh := &shell{cfg: cfg, engine: eng, query: qry}

	fmt.Printf("findatactl %s — data directory %s\n", Version, cfg.DataDir)
	fmt.Println("Type 'help' for commands, 'quit' to exit.")

	p := prompt.New(
		sh.execute,
		completer,
		prompt.OptionPrefix("findata> "),
		prompt.OptionTitle("findatactl"),
	)
	p.Run()
}

var commands = []prompt.Suggest{
	{Text: "write", Description: "write SYMBOL TIMESTAMP VALUE"},
	{Text: "read", Description: "read SYMBOL START END"},
	{Text: "latest", Description: "latest SYMBOL"},
	{Text: "symbols", Description: "list all symbols"},
	{Text: "summary", Description: "summary SYMBOL START END"},
	{Text: "flush", Description: "drain the memory tier to disk"},
	{Text: "optimize", Description: "flush and compact all symbols"},
	{Text: "stats", Description: "engine counters"},
	{Text: "export", Description: "export SYMBOL — snapshot to Parquet"},
	{Text: "sql", Description: "sql STATEMENT — DuckDB over snapshots"},
	{Text: "help", Description: "show commands"},
	{Text: "quit", Description: "flush and exit"},
}

func completer(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}

func (s *shell) execute(in string) {
	fields := strings.Fields(strings.TrimSpace(in))
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "write":
		s.cmdWrite(fields[1:])
	case "read":
		s.cmdRead(fields[1:])
	case "latest":
		s.cmdLatest(fields[1:])
	case "symbols":
		for _, symbol := range s.engine.Symbols() {
			fmt.Println(symbol)
		}
	case "summary":
		s.cmdSummary(fields[1:])
	case "flush":
		if s.engine.Flush() {
			fmt.Println("flushed")
		} else {
			fmt.Println("flush failed, buffer retained")
		}
	case "optimize":
		s.engine.Optimize()
		fmt.Println("optimized")
	case "stats":
		st := s.engine.Stats()
		fmt.Printf("total_points:       %d\n", st.TotalPoints)
		fmt.Printf("cache_hits:         %d\n", st.CacheHits)
		fmt.Printf("cache_misses:       %d\n", st.CacheMisses)
		fmt.Printf("cache_hit_ratio:    %.3f\n", st.CacheHitRatio)
		fmt.Printf("storage_size_bytes: %d\n", st.StorageSizeBytes)
	case "export":
		s.cmdExport(fields[1:])
	case "sql":
		s.cmdSQL(strings.TrimSpace(strings.TrimPrefix(in, "sql")))
	case "help":
		for _, c := range commands {
			fmt.Printf("%-10s %s\n", c.Text, c.Description)
		}
	case "quit", "exit":
		if err := s.engine.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
		s.query.Close()
		os.Exit(0)
	default:
		fmt.Printf("unknown command %q, try 'help'\n", fields[0])
	}
}

func (s *shell) cmdWrite(args []string) {
	if len(args) != 3 {
		fmt.Println("usage: write SYMBOL TIMESTAMP VALUE")
		return
	}

	ts, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Printf("bad timestamp: %v\n", err)
		return
	}
	value, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fmt.Printf("bad value: %v\n", err)
		return
	}

	if s.engine.WritePoint(types.Point{Symbol: args[0], Timestamp: ts, Value: value}) {
		fmt.Println("ok")
	} else {
		fmt.Println("duplicate timestamp, rejected")
	}
}

func parseRange(args []string) (string, int64, int64, error) {
	if len(args) != 3 {
		return "", 0, 0, fmt.Errorf("expected SYMBOL START END")
	}
	start, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("bad start: %w", err)
	}
	end, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("bad end: %w", err)
	}
	return args[0], start, end, nil
}

func (s *shell) cmdRead(args []string) {
	symbol, start, end, err := parseRange(args)
	if err != nil {
		fmt.Printf("usage: read SYMBOL START END (%v)\n", err)
		return
	}

	points := s.engine.ReadRange(symbol, start, end)
	for _, p := range points {
		fmt.Printf("%d\t%g\n", p.Timestamp, p.Value)
	}
	fmt.Printf("%d points\n", len(points))
}

func (s *shell) cmdLatest(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: latest SYMBOL")
		return
	}

	p, ok := s.engine.GetLatest(args[0])
	if !ok {
		fmt.Println("no data")
		return
	}
	fmt.Printf("%d\t%g\n", p.Timestamp, p.Value)
}

func (s *shell) cmdSummary(args []string) {
	symbol, start, end, err := parseRange(args)
	if err != nil {
		fmt.Printf("usage: summary SYMBOL START END (%v)\n", err)
		return
	}

	points := s.engine.ReadRange(symbol, start, end)
	summary, err := analytics.Summarize(points, analytics.DefaultAccuracy)
	if err != nil {
		fmt.Printf("summarize: %v\n", err)
		return
	}

	fmt.Printf("count: %d  avg: %g  min: %g  max: %g\n",
		summary.Count, summary.Avg, summary.Min, summary.Max)
	fmt.Printf("p50: %g  p90: %g  p95: %g  p99: %g\n",
		summary.P50, summary.P90, summary.P95, summary.P99)
}

func (s *shell) cmdExport(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: export SYMBOL")
		return
	}

	path := filepath.Join(s.cfg.ExportDir(), args[0]+".parquet")
	n, err := export.SnapshotSymbol(s.engine, args[0], path, s.cfg.Export.Compression)
	if err != nil {
		fmt.Printf("export: %v\n", err)
		return
	}
	fmt.Printf("wrote %d rows to %s\n", n, path)
}

func (s *shell) cmdSQL(stmt string) {
	if stmt == "" {
		fmt.Println("usage: sql STATEMENT")
		return
	}

	rows, err := s.query.ExecuteSQL(context.Background(), stmt)
	if err != nil {
		fmt.Printf("sql: %v\n", err)
		return
	}
	for _, row := range rows {
		fmt.Println(formatRow(row))
	}
	fmt.Printf("%d rows\n", len(rows))
}

func formatRow(row map[string]any) string {
	parts := make([]string, 0, len(row))
	for col, v := range row {
		parts = append(parts, fmt.Sprintf("%s=%v", col, v))
	}
	return strings.Join(parts, "  ")
}
