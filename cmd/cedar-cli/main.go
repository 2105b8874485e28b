package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/cedar/internal/logger"
	"github.com/cognicore/cedar/pkg/cedar"
	"github.com/cognicore/cedar/pkg/cedar/config"
	"github.com/cognicore/cedar/pkg/cedar/metrics"
	"github.com/cognicore/cedar/pkg/cedar/store"
	"github.com/cognicore/cedar/pkg/cedar/store/sqlite"
)

// constraints collects repeated -where key=value flags.
type constraints map[string]any

func (c constraints) String() string {
	parts := make([]string, 0, len(c))
	for k, v := range c {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ",")
}

func (c constraints) Set(s string) error {
	key, val, err := parseWhere(s)
	if err != nil {
		return err
	}
	c[key] = val
	return nil
}

func main() {
	where := constraints{}
	var (
		configPath  = flag.String("config", "", "YAML config file (optional)")
		seedPath    = flag.String("seed", "", "YAML seed file")
		rulesPath   = flag.String("rules", "", "Similarity rules file")
		dbPath      = flag.String("db", "", "SQLite seed database")
		builtin     = flag.Bool("builtin", true, "Include the built-in seed")
		sort        = flag.String("sort", "", "One-shot query sort (non-interactive mode)")
		minDegree   = flag.Float64("min", 0.01, "Minimum degree (inclusive)")
		showGraph   = flag.Bool("graph", false, "Print the similarity graph and exit")
		threshold   = flag.Float64("threshold", 0.3, "Graph link threshold")
		explain     = flag.String("explain", "", "Explain how an instance id scores against -sort")
		asJSON      = flag.Bool("json", false, "Print results as JSON")
		exportDB    = flag.String("export-db", "", "Write the loaded seed to a SQLite database and exit")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
		verbose     = flag.Bool("verbose", false, "Debug logging")
	)
	flag.Var(where, "where", "Feature constraint key=value (repeatable)")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	zl, err := logger.New(*verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			zl.Fatal("load config", zap.Error(err))
		}
	}
	applyFlags(&cfg, set, *seedPath, *rulesPath, *dbPath, *builtin, *minDegree, *threshold)

	ctx := context.Background()

	var rec metrics.Recorder = metrics.Noop()
	if *metricsAddr != "" {
		p := metrics.NewPrometheus()
		rec = p
		go serveMetrics(zl, *metricsAddr, p.Handler())
	}

	engine, comp, err := buildEngine(ctx, cfg, zl, rec)
	if err != nil {
		zl.Fatal("build engine", zap.Error(err))
	}

	out := printer{w: os.Stdout, json: *asJSON}

	switch {
	case *exportDB != "":
		if err := exportSeed(ctx, *exportDB, store.Snapshot(comp.KB, comp.Similarity)); err != nil {
			zl.Fatal("export", zap.Error(err))
		}
		zl.Info("seed exported", zap.String(logger.FieldPath, *exportDB))
		return
	case *showGraph:
		data, err := engine.Graph(&cfg.GraphThreshold)
		if err != nil {
			zl.Fatal("graph", zap.Error(err))
		}
		out.graph(data)
		return
	case *explain != "":
		ex, err := engine.Explain(*explain, *sort)
		if err != nil {
			zl.Fatal("explain", zap.Error(err))
		}
		fmt.Println(ex.String())
		return
	case *sort != "":
		req := cedar.AskRequest{Sort: *sort, Features: where}
		if err := executeQuery(ctx, engine, req, out); err != nil {
			zl.Fatal("query", zap.Error(err))
		}
		return
	}

	// Interactive mode
	fmt.Println("===========================================")
	fmt.Println("  Cedar CLI")
	fmt.Println("  Fuzzy sort queries: sort [key=value ...]")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Type a query (Ctrl+D to exit):")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		req, err := parseLine(line)
		if err != nil {
			fmt.Println("Error:", err)
			continue
		}
		if err := executeQuery(ctx, engine, req, out); err != nil {
			fmt.Println("Error:", err)
		}
	}

	fmt.Println("\nGoodbye!")
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cfg *config.Config, set map[string]bool, seed, rules, db string, builtin bool, minDegree, threshold float64) {
	if set["seed"] {
		cfg.Seed = seed
	}
	if set["rules"] {
		cfg.Rules = rules
	}
	if set["db"] {
		cfg.SQLite = db
	}
	if set["builtin"] {
		cfg.Builtin = builtin
	}
	if set["min"] {
		cfg.MinDegree = minDegree
	}
	if set["threshold"] {
		cfg.GraphThreshold = threshold
	}
}

func buildEngine(ctx context.Context, cfg config.Config, zl *zap.Logger, rec metrics.Recorder) (*cedar.Cedar, *config.Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	start := time.Now()
	comp, err := config.NewLoader(cfg).Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load seed: %w", err)
	}
	zl.Debug("seed loaded",
		zap.Int(logger.FieldCount, comp.KB.Len()),
		zap.Int("sorts", len(comp.KB.Sorts())),
		zap.Int("similarities", comp.Similarity.Len()),
		zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()),
	)

	engine, err := cedar.New(cedar.Options{
		KB:             comp.KB,
		Similarity:     comp.Similarity,
		Logger:         zl,
		Metrics:        rec,
		MinDegree:      cfg.MinDegree,
		GraphThreshold: cfg.GraphThreshold,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("new engine: %w", err)
	}
	return engine, comp, nil
}

func executeQuery(ctx context.Context, engine *cedar.Cedar, req cedar.AskRequest, out printer) error {
	ans, err := engine.Ask(ctx, req)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	out.answer(ans)
	return nil
}

// parseLine reads "sort key=value ...".
func parseLine(line string) (cedar.AskRequest, error) {
	fields := strings.Fields(line)
	req := cedar.AskRequest{Sort: fields[0]}
	for _, f := range fields[1:] {
		key, val, err := parseWhere(f)
		if err != nil {
			return cedar.AskRequest{}, err
		}
		if req.Features == nil {
			req.Features = make(map[string]any)
		}
		req.Features[key] = val
	}
	return req, nil
}

// parseWhere splits key=value. Unquoted numeric values become numbers;
// quoted values are always strings.
func parseWhere(s string) (string, any, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("expected key=value, got %q", s)
	}
	raw = strings.TrimSpace(raw)

	if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') && raw[len(raw)-1] == raw[0] {
		return key, raw[1 : len(raw)-1], nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return key, n, nil
	}
	return key, raw, nil
}

func exportSeed(ctx context.Context, path string, seed store.Seed) error {
	st, err := sqlite.OpenSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Save(ctx, seed)
}

func serveMetrics(zl *zap.Logger, addr string, h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	zl.Info("serving metrics", zap.String(logger.FieldAddress, addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		zl.Error("metrics server stopped", zap.Error(err))
	}
}

type printer struct {
	w    io.Writer
	json bool
}

func (p printer) answer(ans cedar.Answer) {
	if p.json {
		p.encode(ans)
		return
	}

	if len(ans.Matches) == 0 {
		fmt.Fprintln(p.w, "No matches.")
		fmt.Fprintln(p.w)
		return
	}

	fmt.Fprintf(p.w, "\n--- %s (min degree %.2f) ---\n", ans.Sort, ans.MinDegree)
	for i, m := range ans.Matches {
		fmt.Fprintf(p.w, "%2d. %-12s %.2f  %s\n", i+1, m.ID, m.Degree, m.Unifier)
	}
	fmt.Fprintln(p.w)
}

func (p printer) graph(v any) {
	p.encode(v)
}

func (p printer) encode(v any) {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(p.w, "Error:", err)
	}
}
