package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ragline/features/job"
)

// JobStore is the queue surface the runner claims from and reports to.
type JobStore interface {
	PickNext(ctx context.Context, workerID string) (*job.Job, error)
	MarkDone(ctx context.Context, jobID string) error
	MarkRetry(ctx context.Context, jobID string, errMsg string) (deadLettered bool, err error)
}

// StageRunner executes a claimed job. *Pipeline is the production
// implementation.
type StageRunner interface {
	Run(ctx context.Context, j *job.Job) error
}

// Runner drives the claim-execute-settle cycle. One Runner serves one
// worker identity; concurrent workers each get their own.
type Runner struct {
	Jobs     JobStore
	Pipeline StageRunner
	workerID string
}

func NewRunner(jobs JobStore, pipeline StageRunner) *Runner {
	return &Runner{
		Jobs:     jobs,
		Pipeline: pipeline,
		workerID: "worker:" + strings.Split(uuid.NewString(), "-")[0],
	}
}

// RunOne claims the next visible job and executes its stage. A nil handler
// error settles the job DONE; any error, panics included, goes through
// MarkRetry so the attempt counter and backoff stay accurate.
func (r *Runner) RunOne(ctx context.Context) job.RunResult {
	j, err := r.Jobs.PickNext(ctx, r.workerID)
	if err != nil {
		slog.ErrorContext(ctx, "claim failed", "error", err)
		return job.RunResult{Status: job.StatusError, Error: err.Error()}
	}
	if j == nil {
		return job.RunResult{Status: job.StatusNoJobs}
	}

	res := job.RunResult{JobID: j.ID, Type: j.Type}

	runErr := r.runStage(ctx, j)
	if runErr == nil {
		if err := r.Jobs.MarkDone(ctx, j.ID); err != nil {
			slog.ErrorContext(ctx, "mark done failed", "job_id", j.ID, "error", err)
		}
		res.Status = job.StatusDone
		return res
	}

	slog.WarnContext(ctx, "stage failed", "job_id", j.ID, "type", j.Type, "attempt", j.Attempt, "error", runErr)
	dead, err := r.Jobs.MarkRetry(ctx, j.ID, runErr.Error())
	if err != nil {
		slog.ErrorContext(ctx, "mark retry failed", "job_id", j.ID, "error", err)
	}
	if dead {
		slog.ErrorContext(ctx, "job dead-lettered", "job_id", j.ID, "type", j.Type, "source_id", j.SourceID)
	}
	res.Status = job.StatusRetry
	res.Error = runErr.Error()
	return res
}

func (r *Runner) runStage(ctx context.Context, j *job.Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage panic: %v", rec)
		}
	}()
	return r.Pipeline.Run(ctx, j)
}

// Drain runs jobs back to back until the queue is empty, a claim fails, or
// maxJobs have been attempted. The trailing NO_JOBS result, when present,
// tells the caller the queue was observed empty; a trailing ERROR result
// means the queue state is unknown.
func (r *Runner) Drain(ctx context.Context, maxJobs int) []job.RunResult {
	results := make([]job.RunResult, 0, maxJobs)
	for i := 0; i < maxJobs; i++ {
		if ctx.Err() != nil {
			break
		}
		res := r.RunOne(ctx)
		results = append(results, res)
		if res.Status == job.StatusNoJobs || res.Status == job.StatusError {
			break
		}
	}
	return results
}
