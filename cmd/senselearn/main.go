// Command senselearn learns sense distributions for a list of lemmas by
// running an external topic-model sampler over their usage corpora and
// aligning the learned topics against WordNet gloss distributions. It
// can also score the persisted results against a gold standard.
//
// Flags:
//
//	--mode            train, evaluate or all (required)
//	--config          path to YAML config file
//	--workers         override experiment.workers
//	--experiment      override experiment.kind (default, bootstrapping)
//	--bootstrap-size  override experiment.bootstrap_size
//	--backend         override wsi.backend (hca, hdp)
//	--skip-alignment  train topic models without sense alignment
//	--keep-wsi-data   leave sampler scratch files on disk
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/awbennett/LexSemTm/internal/app"
	"github.com/awbennett/LexSemTm/internal/config"
	"github.com/awbennett/LexSemTm/internal/domain"
	"github.com/awbennett/LexSemTm/internal/evaluate"
	"github.com/awbennett/LexSemTm/internal/experiment"
	"github.com/awbennett/LexSemTm/internal/prob"
	"github.com/awbennett/LexSemTm/internal/result"
	"github.com/awbennett/LexSemTm/internal/wsi"
)

const reportFile = "evaluation_results.csv"

func main() {
	modeFlag := flag.String("mode", "", "train, evaluate or all")
	configFlag := flag.String("config", "", "path to YAML config file")
	workersFlag := flag.Int("workers", 0, "override experiment.workers")
	experimentFlag := flag.String("experiment", "", "override experiment.kind")
	bootstrapSizeFlag := flag.Int("bootstrap-size", 0, "override experiment.bootstrap_size")
	backendFlag := flag.String("backend", "", "override wsi.backend")
	skipAlignmentFlag := flag.Bool("skip-alignment", false, "train topic models without sense alignment")
	keepWSIDataFlag := flag.Bool("keep-wsi-data", false, "leave sampler scratch files on disk")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	// CLI flags override config.
	if *workersFlag > 0 {
		cfg.Experiment.Workers = *workersFlag
	}
	if *experimentFlag != "" {
		cfg.Experiment.Kind = *experimentFlag
	}
	if *bootstrapSizeFlag > 0 {
		cfg.Experiment.BootstrapSize = *bootstrapSizeFlag
	}
	if *backendFlag != "" {
		cfg.WSI.Backend = *backendFlag
	}
	if *skipAlignmentFlag {
		cfg.Experiment.SkipAlignment = true
	}
	if *keepWSIDataFlag {
		cfg.Experiment.KeepWSIData = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch *modeFlag {
	case "train":
		err = runTrain(ctx, cfg, logger)
	case "evaluate":
		err = runEvaluate(cfg, logger)
	case "all":
		if err = runTrain(ctx, cfg, logger); err == nil {
			err = runEvaluate(cfg, logger)
		}
	default:
		logger.Error("--mode must be train, evaluate or all", slog.String("mode", *modeFlag))
		os.Exit(1)
	}
	if err != nil {
		logger.Error("run failed", slog.String("mode", *modeFlag), slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("completed", slog.String("mode", *modeFlag))
}

func runTrain(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	lemmas, err := loadLemmas(cfg.Paths.LemmasFile)
	if err != nil {
		return err
	}

	var flags map[string]string
	if cfg.Paths.WSIArgsFile != "" {
		if flags, err = wsi.LoadFlags(cfg.Paths.WSIArgsFile); err != nil {
			return err
		}
	}

	for _, dir := range []string{cfg.Paths.ScratchDir(), cfg.Paths.TMOutputDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create results directory %s: %w", dir, err)
		}
	}

	jobs := buildJobs(cfg, lemmas)
	logger.Info("starting experiment",
		slog.String("kind", cfg.Experiment.Kind),
		slog.String("backend", cfg.WSI.Backend),
		slog.Int("lemmas", len(lemmas)),
		slog.Int("jobs", len(jobs)),
		slog.Int("workers", cfg.Experiment.Workers))

	runner := experiment.NewRunner(experiment.Config{
		UsagesDir:      cfg.Paths.CorpusDir,
		ScratchDir:     cfg.Paths.ScratchDir(),
		ToolsDir:       cfg.Paths.ToolsDir,
		WNVersion:      cfg.WSI.WNVersion,
		Backend:        cfg.WSI.Backend,
		ExePath:        cfg.SamplerExePath(),
		Flags:          flags,
		Workers:        cfg.Experiment.Workers,
		SkipAlignment:  cfg.Experiment.SkipAlignment,
		KeepWSIData:    cfg.Experiment.KeepWSIData,
		MaxWSIAttempts: cfg.WSI.MaxAttempts,
		RetryBackoff:   cfg.WSI.RetryBackoff,
	}, result.NewStore(cfg.Paths.TMOutputDir()), logger, experiment.NewStatusPrinter(os.Stdout))

	return runner.Run(ctx, jobs)
}

func runEvaluate(cfg *config.Config, logger *slog.Logger) error {
	gold, err := evaluate.LoadGoldDists(cfg.Paths.GoldDistFile)
	if err != nil {
		return err
	}
	var baseline map[domain.Lemma]*prob.Distribution
	if cfg.Paths.BaselineDistFile != "" {
		if baseline, err = evaluate.LoadGoldDists(cfg.Paths.BaselineDistFile); err != nil {
			return err
		}
	}

	path := filepath.Join(cfg.Paths.ResultsDir, reportFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer f.Close()

	e := &evaluate.Evaluator{
		Store:    result.NewStore(cfg.Paths.TMOutputDir()),
		Gold:     gold,
		Baseline: baseline,
		Log:      logger,
	}
	if err := e.Run(f); err != nil {
		return err
	}
	logger.Info("wrote evaluation report", slog.String("path", path))
	return f.Close()
}

// loadLemmas reads one lemma per line, blank lines and '#' comments
// skipped.
func loadLemmas(path string) ([]domain.Lemma, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lemmas file: %w", err)
	}
	defer f.Close()

	var lemmas []domain.Lemma
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lemma, err := domain.ParseLemma(line)
		if err != nil {
			return nil, fmt.Errorf("lemmas file %s: %w", path, err)
		}
		lemmas = append(lemmas, lemma)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lemmas file %s: %w", path, err)
	}
	return lemmas, nil
}

// buildJobs turns the lemma list into jobs. A bootstrapping experiment
// makes bootstrap-size passes over the lemmas, numbering the replicates
// globally.
func buildJobs(cfg *config.Config, lemmas []domain.Lemma) []experiment.Job {
	if cfg.Experiment.Kind != "bootstrapping" {
		jobs := make([]experiment.Job, 0, len(lemmas))
		for _, lemma := range lemmas {
			jobs = append(jobs, experiment.NewJob(lemma))
		}
		return jobs
	}

	jobs := make([]experiment.Job, 0, len(lemmas)*cfg.Experiment.BootstrapSize)
	replicate := 0
	for pass := 0; pass < cfg.Experiment.BootstrapSize; pass++ {
		for _, lemma := range lemmas {
			jobs = append(jobs, experiment.NewReplicateJob(lemma, replicate))
			replicate++
		}
	}
	return jobs
}
