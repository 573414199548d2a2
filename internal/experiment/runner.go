package experiment

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/awbennett/LexSemTm/internal/align"
	"github.com/awbennett/LexSemTm/internal/corpus"
	"github.com/awbennett/LexSemTm/internal/domain"
	"github.com/awbennett/LexSemTm/internal/gloss"
	"github.com/awbennett/LexSemTm/internal/result"
	"github.com/awbennett/LexSemTm/internal/wsi"
)

// Bootstrap replicates draw at least this many usages, unless the
// lemma has fewer.
const minBootstrapSize = 500

const outputPrefix = "wsi_output"

// Config carries everything the worker pool needs for one experiment.
type Config struct {
	UsagesDir  string
	ScratchDir string
	ToolsDir   string
	WNVersion  string

	// Backend selects the sampler adapter: "hca" or "hdp".
	Backend string
	ExePath string
	Flags   map[string]string

	Workers       int
	SkipAlignment bool
	// KeepWSIData leaves each job's sampler input and output dir on
	// disk after the record is persisted.
	KeepWSIData bool

	// MaxWSIAttempts bounds sampler retries per job; zero or negative
	// retries without bound.
	MaxWSIAttempts int
	RetryBackoff   time.Duration
}

// Runner runs jobs over a pool of workers. Fatal job errors are logged
// and isolated; only context cancellation stops the pool.
type Runner struct {
	cfg    Config
	store  *result.Store
	log    *slog.Logger
	status *StatusPrinter
}

func NewRunner(cfg Config, store *result.Store, log *slog.Logger, status *StatusPrinter) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.Backend == "" {
		cfg.Backend = "hca"
	}
	return &Runner{cfg: cfg, store: store, log: log, status: status}
}

// Run feeds jobs to the worker pool and blocks until all are done or
// the context is cancelled. Channel close is the only termination
// signal the workers see.
func (r *Runner) Run(ctx context.Context, jobs []Job) error {
	ch := make(chan Job)
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < r.cfg.Workers; i++ {
		g.Go(func() error {
			return r.work(ctx, ch)
		})
	}
	g.Go(func() error {
		defer close(ch)
		for _, job := range jobs {
			select {
			case ch <- job:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	return g.Wait()
}

// workerState is per-worker: gloss distributions and stopword lists
// are computed once and reused across the worker's jobs.
type workerState struct {
	aligner       *align.Aligner
	stopwords     map[string]map[string]struct{}
	tools         gloss.ToolPaths
	toolsResolved bool
}

func (r *Runner) work(ctx context.Context, ch <-chan Job) error {
	ws := &workerState{
		aligner:   align.New(),
		stopwords: make(map[string]map[string]struct{}),
	}
	for job := range ch {
		if err := r.runJob(ctx, ws, job); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Error("job failed",
				"job", job.ID,
				"model", job.ModelName(),
				"fatal", domain.IsFatal(err),
				"err", err)
			continue
		}
		r.status.Printf("finished %s", job.ModelName())
	}
	return nil
}

func (r *Runner) runJob(ctx context.Context, ws *workerState, job Job) error {
	model := job.ModelName()
	r.status.Printf("processing %s", model)

	stopwords, err := r.stopwordsFor(ws, job.Lemma.Lang())
	if err != nil {
		return err
	}

	c := corpus.New([]domain.Lemma{job.Lemma}, r.cfg.UsagesDir, stopwords)
	if err := c.ScanLemmaUsages(job.Lemma); err != nil {
		return err
	}

	sampler, err := r.samplerFor(c)
	if err != nil {
		return err
	}
	op := wsi.NewOperator(sampler, wsi.Options{
		OutputPrefix: outputPrefix,
		ExePath:      r.cfg.ExePath,
		Flags:        r.cfg.Flags,
	})

	var usageCounts map[domain.Lemma]int
	if job.IsBootstrap() {
		usageCounts = map[domain.Lemma]int{
			job.Lemma: bootstrapSize(c.UsageCount(job.Lemma)),
		}
	}

	inputPath := filepath.Join(r.cfg.ScratchDir, model+".input.ldac")
	outputDir := filepath.Join(r.cfg.ScratchDir, model+".outdir")
	opts := wsi.Options{InputPath: inputPath, OutputDir: outputDir}

	tm, err := r.runWithRetry(ctx, op, opts, usageCounts, job)
	if err != nil {
		return err
	}
	tm.Lemma = job.Lemma.String()

	if !r.cfg.SkipAlignment {
		if err := r.ensureGlossDists(ctx, ws, job.Lemma, stopwords); err != nil {
			return err
		}
		senseDist, err := ws.aligner.Align(tm, job.Lemma)
		if err != nil {
			return err
		}
		tm.SenseDist = senseDist.Weights()
	}

	if err := r.store.Save(model, tm); err != nil {
		return err
	}
	if !r.cfg.KeepWSIData {
		cleanupAttempt(inputPath, outputDir)
	}
	return nil
}

// runWithRetry runs the sampler, repeating on retryable failures with
// the attempt's scratch files removed in between. An exhausted retry
// budget becomes fatal for the job.
func (r *Runner) runWithRetry(ctx context.Context, op *wsi.Operator, opts wsi.Options, usageCounts map[domain.Lemma]int, job Job) (*domain.TopicModel, error) {
	backoff := retry.NewConstant(r.cfg.RetryBackoff)
	if r.cfg.MaxWSIAttempts > 0 {
		backoff = retry.WithMaxRetries(uint64(r.cfg.MaxWSIAttempts-1), backoff)
	}

	var tm *domain.TopicModel
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		out, err := op.RunWSI(ctx, opts, usageCounts)
		if err != nil {
			if domain.IsRetryable(err) {
				cleanupAttempt(opts.InputPath, opts.OutputDir)
				r.log.Warn("sampler produced no usable output, repeating",
					"job", job.ID,
					"model", job.ModelName(),
					"attempt", attempt,
					"err", err)
				return retry.RetryableError(err)
			}
			return err
		}
		tm = out
		return nil
	})
	if err != nil {
		if domain.IsRetryable(err) && ctx.Err() == nil {
			return nil, domain.Fatalf("wsi attempts exhausted for %s after %d tries: %v", job.ModelName(), attempt, err)
		}
		return nil, err
	}
	return tm, nil
}

// ensureGlossDists computes the lemma's gloss distributions once per
// worker.
func (r *Runner) ensureGlossDists(ctx context.Context, ws *workerState, lemma domain.Lemma, stopwords map[string]struct{}) error {
	if ws.aligner.HasLemma(lemma) {
		return nil
	}
	if !ws.toolsResolved {
		tools, err := gloss.ResolveToolPaths(r.cfg.ToolsDir, r.cfg.WNVersion)
		if err != nil {
			return err
		}
		ws.tools = tools
		ws.toolsResolved = true
	}
	dists, err := gloss.LemmaDists(ctx, lemma, ws.tools, stopwords)
	if err != nil {
		return err
	}
	ws.aligner.AddLemmaGlossDists(lemma, dists)
	return nil
}

func (r *Runner) stopwordsFor(ws *workerState, lang string) (map[string]struct{}, error) {
	if words, ok := ws.stopwords[lang]; ok {
		return words, nil
	}
	path := filepath.Join(r.cfg.ToolsDir, "stopwords."+lang+".txt")
	words, err := corpus.LoadStopwords(path)
	if err != nil {
		return nil, err
	}
	ws.stopwords[lang] = words
	return words, nil
}

func (r *Runner) samplerFor(c wsi.Corpus) (wsi.Runner, error) {
	switch r.cfg.Backend {
	case "hca":
		return wsi.NewHCARunner(c), nil
	case "hdp":
		return wsi.NewHDPRunner(c), nil
	default:
		return nil, domain.Fatalf("unknown topic model backend %q", r.cfg.Backend)
	}
}

// bootstrapSize draws a replicate size uniformly between the minimum
// bootstrap size (capped at the usage count) and the usage count,
// inclusive.
func bootstrapSize(total int) int {
	lo := minBootstrapSize
	if total < lo {
		lo = total
	}
	return lo + rand.Intn(total-lo+1)
}

func cleanupAttempt(inputPath, outputDir string) {
	os.Remove(inputPath)
	os.RemoveAll(outputDir)
}
