package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	clue "goa.design/clue/log"

	"goa.design/runledger/artifact"
	"goa.design/runledger/baseline"
	"goa.design/runledger/config"
	"goa.design/runledger/historystore"
	obslog "goa.design/runledger/obs/log"
	"goa.design/runledger/obs/metrics"
	"goa.design/runledger/regression"
	"goa.design/runledger/suite"
	"goa.design/runledger/summary"
	"goa.design/runledger/toolregistry"
	"goa.design/runledger/toolregistry/search"
)

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		suitePathF = fs.String("suite", "", "path to the suite manifest (required)")
		baselineF  = fs.String("baseline", "", "baseline summary.json to diff against (overrides the suite's baseline_path)")
		noFailF    = fs.Bool("no-fail-on-regression", false, "still exit 0 when a regression diff fails")
		dbgF       = fs.Bool("debug", false, "enable debug logging")
		metricsF   = fs.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090) for the duration of the run")
		mongoURIF  = fs.String("mongo-uri", "", "if set, archive the run summary to this MongoDB deployment after it completes")
		mongoDBF   = fs.String("mongo-database", "runledger", "database name used when -mongo-uri is set")
	)
	fs.Parse(args) // #nosec G104 -- ExitOnError handles parse failures

	if *suitePathF == "" {
		return fmt.Errorf("run: -suite is required")
	}

	format := clue.FormatJSON
	if clue.IsTerminal() {
		format = clue.FormatTerminal
	}
	ctx := clue.Context(context.Background(), clue.WithFormat(format))
	if *dbgF {
		ctx = clue.Context(ctx, clue.WithDebug())
	}
	logger := obslog.NewClue()

	cfg, cases, err := config.LoadSuite(*suitePathF)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	eng := &suite.Engine{
		Config:        cfg,
		Registry:      registry,
		OpenTransport: suite.OpenAgentTransport(cfg.ReceiveDeadlineMS),
	}

	rec, stopMetrics := startMetrics(*metricsF)
	defer stopMetrics()

	logger.Info(ctx, "suite starting", "suite", cfg.Name, "mode", string(cfg.Mode), "cases", len(cases))
	result := eng.Run(ctx, cases)
	logger.Info(ctx, "suite finished", "suite", cfg.Name, "cases_pass", result.CasesPass(), "cases_fail", result.CasesFail(), "cases_error", result.CasesError())

	for _, c := range result.Cases {
		rec.IncCases(c.Status())
		rec.ObserveCaseWallMS(float64(c.WallMS))
	}
	rec.SetPassRate(result.PassRate())

	runID := newRunID()
	sha, err := suiteConfigSHA(*suitePathF)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	sm := summary.SuiteMeta{
		Name:           cfg.Name,
		Path:           *suitePathF,
		Argv:           cfg.Argv,
		ToolMode:       string(cfg.Mode),
		SuiteConfigSHA: sha,
	}
	rm := summary.RunMeta{
		RunID:            runID,
		Mode:             string(cfg.Mode),
		GitCommit:        gitCommit(),
		CI:               os.Getenv("CI") != "",
		RunledgerVersion: runledgerVersion,
	}
	var policy *summary.PolicySnapshot
	if cfg.RegressionThresh != nil {
		policy = &summary.PolicySnapshot{
			MinPassRate:          cfg.RegressionThresh.MinPassRate,
			MaxAvgWallMSDeltaPct: cfg.RegressionThresh.MaxAvgWallMSDeltaPct,
			MaxP95WallMSDeltaPct: cfg.RegressionThresh.MaxP95WallMSDeltaPct,
		}
	}

	sum := summary.Build(result, sm, rm, time.Now().UTC().Format(time.RFC3339), policy)

	baselinePath := *baselineF
	if baselinePath == "" {
		baselinePath = cfg.BaselinePath
	}
	if baselinePath != "" {
		if _, err := os.Stat(baselinePath); err == nil {
			base, err := baseline.Load(baselinePath)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			diff := regression.Diff(baselinePath, base, sum, thresholdsFrom(cfg))
			sum.ApplyRegressionFailure(diff.Passed)
			logRegression(ctx, logger, diff)
		}
	}

	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = "runledger-out"
	}
	runDir := filepath.Join(outputDir, cfg.Name, runID)
	if err := writeRunDir(runDir, sum, result); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	logger.Info(ctx, "run directory written", "path", runDir)

	if *mongoURIF != "" {
		if err := archiveRun(ctx, *mongoURIF, *mongoDBF, sum); err != nil {
			logger.Warn(ctx, "run archival failed", "err", err.Error())
		} else {
			logger.Info(ctx, "run archived", "database", *mongoDBF, "run_id", runID)
		}
	}

	if sum.Run.ExitStatus != "success" && !*noFailF {
		os.Exit(1)
	}
	return nil
}

// startMetrics wires a Prometheus recorder and serves /metrics on addr when
// addr is non-empty; otherwise it returns a Noop recorder and a no-op
// stop function.
func startMetrics(addr string) (metrics.Recorder, func()) {
	if addr == "" {
		return metrics.Noop{}, func() {}
	}
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheus(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe() // #nosec G104 -- best-effort; scrape failures surface as empty /metrics
	return rec, func() { srv.Close() } // #nosec G104 -- shutdown best-effort on process exit
}

// archiveRun connects to uri, archives sum under database, and disconnects.
// Connection setup happens per invocation rather than holding a long-lived
// client: runledger runs a suite and exits, it doesn't stay resident.
func archiveRun(ctx context.Context, uri, database string, sum summary.Summary) error {
	mc, err := mongodriver.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer mc.Disconnect(ctx) // #nosec G104 -- best-effort on exit

	store, err := historystore.New(historystore.Options{Client: mc, Database: database})
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return store.UpsertRun(opCtx, sum)
}

func buildRegistry(cfg suite.Config) (*toolregistry.Registry, error) {
	if cfg.Mode == suite.ModeReplay {
		return nil, nil
	}
	builtin, err := search.BuiltinModule()
	if err != nil {
		return nil, err
	}
	return toolregistry.Resolve(cfg.AllowedTools, builtin, nil)
}

func writeRunDir(dir string, sum summary.Summary, result suite.SuiteResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := baseline.Write(filepath.Join(dir, "summary.json"), sum); err != nil {
		return err
	}
	if err := artifact.WriteRunJSONL(filepath.Join(dir, "run.jsonl"), result); err != nil {
		return err
	}
	if err := artifact.WriteJUnit(filepath.Join(dir, "junit.xml"), sum); err != nil {
		return err
	}
	if err := artifact.WriteHTMLReport(filepath.Join(dir, "report.html"), sum); err != nil {
		return err
	}
	return nil
}

func thresholdsFrom(cfg suite.Config) regression.Thresholds {
	if cfg.RegressionThresh == nil {
		return regression.Thresholds{}
	}
	return regression.Thresholds{
		MinPassRate:          cfg.RegressionThresh.MinPassRate,
		MaxAvgWallMSDeltaPct: cfg.RegressionThresh.MaxAvgWallMSDeltaPct,
		MaxP95WallMSDeltaPct: cfg.RegressionThresh.MaxP95WallMSDeltaPct,
	}
}

func logRegression(ctx context.Context, logger obslog.Logger, diff regression.Result) {
	for _, c := range diff.Checks {
		logger.Info(ctx, "regression check", "id", c.ID, "status", string(c.Status), "baseline", c.Baseline, "current", c.Current)
	}
	if !diff.Passed {
		logger.Warn(ctx, "regression diff failed", "baseline_path", diff.BaselinePath)
	}
}

func newRunID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102-150405Z"), strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func suiteConfigSHA(path string) (string, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- operator-supplied CLI path
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
