package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-reamp/audiofile"
	"github.com/cwbudde/algo-reamp/chain"
	"github.com/cwbudde/algo-reamp/plugin"
	"github.com/cwbudde/algo-reamp/render"
)

// ErrInvalidJob is recorded for jobs missing an input or output path.
var ErrInvalidJob = errors.New("batch: invalid job")

// Job is one chain to render from InputPath to OutputPath.
type Job struct {
	ID         string             `json:"id,omitempty"`
	Name       string             `json:"name"`
	Chain      []chain.Descriptor `json:"chain"`
	InputPath  string             `json:"input"`
	OutputPath string             `json:"output"`
}

// JobResult reports how a job ended. Err is nil only for StatusDone.
type JobResult struct {
	Index    int
	Job      Job
	Status   Status
	Frames   int
	Duration time.Duration
	Train    *TrainResult
	Err      error
}

// Runner renders batches of jobs. Failures are isolated per job.
type Runner struct {
	host        plugin.Host
	log         logrus.FieldLogger
	concurrency int
	bitDepth    int
	store       StatusStore
	trainer     *Trainer
	builderOpts []chain.Option
	renderOpts  []render.Option
	onResult    func(JobResult)
	onProgress  func(job int, fraction float64)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger. It is also passed to the chain
// builder and renderer.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithConcurrency renders up to n jobs at once. The default is 1.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithBitDepth sets the output WAV bit depth.
func WithBitDepth(bits int) Option {
	return func(r *Runner) {
		r.bitDepth = bits
	}
}

// WithStatusStore records status transitions in s.
func WithStatusStore(s StatusStore) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithTrainer runs t on every successfully rendered output.
func WithTrainer(t *Trainer) Option {
	return func(r *Runner) {
		r.trainer = t
	}
}

// WithBuilderOptions passes options to every chain builder.
func WithBuilderOptions(opts ...chain.Option) Option {
	return func(r *Runner) {
		r.builderOpts = append(r.builderOpts, opts...)
	}
}

// WithRenderOptions passes options to every renderer.
func WithRenderOptions(opts ...render.Option) Option {
	return func(r *Runner) {
		r.renderOpts = append(r.renderOpts, opts...)
	}
}

// OnResult registers a callback run after each job. With concurrency above
// one it may be called from several goroutines.
func OnResult(fn func(JobResult)) Option {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// OnProgress registers a per-job progress callback.
func OnProgress(fn func(job int, fraction float64)) Option {
	return func(r *Runner) {
		r.onProgress = fn
	}
}

// NewRunner returns a runner instantiating plugins from host.
func NewRunner(host plugin.Host, opts ...Option) *Runner {
	r := &Runner{
		host:        host,
		log:         logrus.StandardLogger(),
		concurrency: 1,
		bitDepth:    audiofile.DefaultBitDepth,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Run renders jobs and returns one result per job in input order. A failed
// job does not stop the batch. The returned error is non-nil only when ctx
// ended; jobs that had not finished are then reported as cancelled.
//
// Jobs without an ID get a generated one, visible in JobResult.Job. The
// caller's slice is not modified.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]JobResult, error) {
	jobs = slices.Clone(jobs)
	results := make([]JobResult, len(jobs))

	for i := range jobs {
		if jobs[i].ID == "" {
			jobs[i].ID = uuid.NewString()
		}

		r.setStatus(ctx, jobs[i], StatusQueued, "")
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.RunJob(ctx, i, job)
			return nil
		})
	}

	_ = g.Wait()

	return results, ctx.Err()
}

// RunJob renders a single job and reports its result.
func (r *Runner) RunJob(ctx context.Context, index int, job Job) JobResult {
	start := time.Now()
	log := r.log.WithFields(logrus.Fields{"job": job.ID, "name": job.Name})

	res := r.runJob(ctx, index, job, log)
	res.Index = index
	res.Job = job
	res.Duration = time.Since(start)

	switch {
	case res.Err == nil:
		res.Status = StatusDone
		r.setStatus(ctx, job, StatusDone, job.OutputPath)
		log.WithFields(logrus.Fields{"frames": res.Frames, "duration": res.Duration}).Info("job done")
	case errors.Is(res.Err, render.ErrCancelled) || errors.Is(res.Err, context.Canceled) ||
		errors.Is(res.Err, context.DeadlineExceeded):
		res.Status = StatusCancelled
		r.setStatus(context.WithoutCancel(ctx), job, StatusCancelled, res.Err.Error())
		log.Info("job cancelled")
	default:
		res.Status = StatusFailed
		r.setStatus(ctx, job, StatusFailed, res.Err.Error())
		log.WithError(res.Err).Error("job failed")
	}

	if r.onResult != nil {
		r.onResult(res)
	}

	return res
}

func (r *Runner) runJob(ctx context.Context, index int, job Job, log logrus.FieldLogger) JobResult {
	if job.InputPath == "" || job.OutputPath == "" {
		return JobResult{Err: fmt.Errorf("%w: input and output paths are required", ErrInvalidJob)}
	}

	if err := ctx.Err(); err != nil {
		return JobResult{Err: err}
	}

	r.setStatus(ctx, job, StatusRendering, "")

	if _, err := os.Stat(job.InputPath); err != nil {
		return JobResult{Err: fmt.Errorf("%w: %s: %w", chain.ErrFileNotFound, job.InputPath, err)}
	}

	input, err := audiofile.Read(job.InputPath)
	if err != nil {
		return JobResult{Err: err}
	}

	builderOpts := append([]chain.Option{chain.WithLogger(log)}, r.builderOpts...)

	handles, err := chain.NewBuilder(r.host, builderOpts...).Build(ctx, input, job.Chain)
	if err != nil {
		return JobResult{Err: err}
	}

	renderOpts := append([]render.Option{render.WithLogger(log)}, r.renderOpts...)
	if r.onProgress != nil {
		renderOpts = append(renderOpts, render.WithProgress(func(p float64) {
			r.onProgress(index, p)
		}))
	}

	out, err := render.New(renderOpts...).Render(ctx, input, handles)
	if err != nil {
		return JobResult{Err: err}
	}

	if dir := filepath.Dir(job.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return JobResult{Err: fmt.Errorf("batch: create output dir: %w", err)}
		}
	}

	if err := audiofile.Write(job.OutputPath, out, r.bitDepth); err != nil {
		return JobResult{Err: err}
	}

	res := JobResult{Frames: out.Frames()}

	if r.trainer != nil {
		log.WithField("output", job.OutputPath).Info("starting training")

		res.Train, res.Err = r.trainer.Train(ctx, job.OutputPath)
	}

	return res
}

func (r *Runner) setStatus(ctx context.Context, job Job, status Status, detail string) {
	if r.store == nil {
		return
	}

	if err := r.store.SetStatus(ctx, job.ID, status, detail); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{"job": job.ID, "status": status}).
			Warn("recording job status failed")
	}
}
