package docxfill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch fills every template with every record, one output file per pair.
// Each worker owns its document from open to save; only the output
// directory is shared and every job gets a distinct file name up front.
type Batch struct {
	Workers     int    // 0 = runtime.NumCPU()
	OutputDir   string // created when missing
	NamePattern string // {template}, {index}, {timestamp}; ".docx" added when no extension
	Options     Options
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewBatch - batch from config
func NewBatch(cfg *Config, logger *zap.Logger) *Batch {
	return &Batch{
		Workers:     cfg.Workers,
		OutputDir:   cfg.OutputDir,
		NamePattern: cfg.NamePattern,
		Options:     cfg.Options(),
		Logger:      logger,
	}
}

// JobResult - outcome of one template x record pair
type JobResult struct {
	Template string
	Record   int // 1-based
	Output   string
	Report   *Report
	Skipped  bool
	Err      error
}

// BatchResult ..
type BatchResult struct {
	RunID     string
	Succeeded int
	Failed    int
	Skipped   int
	Jobs      []JobResult
	Errors    []error
}

// Err - failed jobs combined, nil when all succeeded
func (r *BatchResult) Err() error {
	return multierr.Combine(r.Errors...)
}

// Total ..
func (r *BatchResult) Total() int {
	return r.Succeeded + r.Failed + r.Skipped
}

// Run all jobs. Cancellation is seen only between documents: a job that
// started finishes, jobs not started yet are counted as skipped.
// One failing document never stops the others.
func (b *Batch) Run(ctx context.Context, templates []string, records []*Record) *BatchResult {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.Now
	if now == nil {
		now = time.Now
	}

	res := &BatchResult{RunID: uuid.NewString()}
	logger = logger.With(zap.String("run", res.RunID))

	jobs := b.plan(templates, records, now())
	res.Jobs = jobs
	if len(jobs) == 0 {
		return res
	}

	if b.OutputDir != "" {
		if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
			perr := &PlaceholderError{Kind: IOError, Part: b.OutputDir, Err: err}
			for i := range jobs {
				jobs[i].Err = perr
			}
			res.Failed = len(jobs)
			res.Errors = append(res.Errors, perr)
			logger.Error("output directory", zap.Error(err))
			return res
		}
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	filler := NewFiller(b.Options, logger)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range jobs {
		job := &jobs[i] // every worker writes only its own slot
		g.Go(func() error {
			if ctx.Err() != nil {
				job.Skipped = true
				return nil
			}
			job.Report, job.Err = filler.FillFile(job.Template, job.Output, records[job.Record-1])
			if job.Err != nil {
				logger.Error("document failed",
					zap.String("template", job.Template),
					zap.Int("record", job.Record),
					zap.Error(job.Err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, job := range jobs {
		switch {
		case job.Skipped:
			res.Skipped++
		case job.Err != nil:
			res.Failed++
			res.Errors = append(res.Errors, fmt.Errorf("%s #%d: %w", filepath.Base(job.Template), job.Record, job.Err))
		default:
			res.Succeeded++
		}
	}

	logger.Info("batch finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)
	return res
}

// plan builds job list with distinct output names
func (b *Batch) plan(templates []string, records []*Record, started time.Time) []JobResult {
	pattern := b.NamePattern
	if pattern == "" {
		pattern = DefaultNamePattern
	}

	seen := map[string]bool{}
	var jobs []JobResult
	for _, tpl := range templates {
		for i := range records {
			name := expandName(pattern, tpl, i+1, started)
			name = uniqueName(name, seen)
			jobs = append(jobs, JobResult{
				Template: tpl,
				Record:   i + 1,
				Output:   filepath.Join(b.OutputDir, name),
			})
		}
	}
	return jobs
}

func expandName(pattern, template string, index int, ts time.Time) string {
	name := strings.NewReplacer(
		"{template}", baseName(template),
		"{index}", strconv.Itoa(index),
		"{timestamp}", ts.Format("20060102_150405"),
	).Replace(pattern)
	if filepath.Ext(name) == "" {
		name += ".docx"
	}
	return name
}

// "a.docx" taken -> "a_2.docx", "a_3.docx", ...
func uniqueName(name string, seen map[string]bool) string {
	key := strings.ToLower(name)
	if !seen[key] {
		seen[key] = true
		return name
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		key := strings.ToLower(candidate)
		if !seen[key] {
			seen[key] = true
			return candidate
		}
	}
}
