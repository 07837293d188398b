package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner executes a fixed batch of simulation jobs through a bounded
// worker pool. It owns no state between runs; construct one per batch.
type Runner struct {
	plan   *RunPlan
	logger *zap.SugaredLogger

	mu     sync.Mutex
	active int
	peak   int
}

func NewRunner(plan *RunPlan, logger *zap.SugaredLogger) *Runner {
	return &Runner{
		plan:   plan,
		logger: logger,
	}
}

// Preflight verifies the executable and output directory before any job
// is dispatched. Failures here are fatal to the whole run.
func (r *Runner) Preflight() error {
	info, err := os.Stat(r.plan.Executable)
	if err != nil {
		return fmt.Errorf("simulation executable not found: %s", r.plan.Executable)
	}
	if info.IsDir() || info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("simulation executable is not executable: %s", r.plan.Executable)
	}

	if err := os.MkdirAll(r.plan.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", r.plan.OutputDir, err)
	}
	return nil
}

// RunAll runs every job in the plan through a pool of plan.PoolSize
// workers and returns one result per job, in plan order regardless of
// completion order. Individual job failures never abort the batch.
func (r *Runner) RunAll() ([]JobResult, error) {
	if err := r.Preflight(); err != nil {
		return nil, err
	}

	jobs := r.plan.Jobs()
	results := make([]JobResult, len(jobs))

	r.logger.Infof("Starting all simulations in parallel (pool size %d)", r.plan.PoolSize)

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.plan.PoolSize; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				r.enterSlot()
				results[i] = r.execute(jobs[i])
				r.leaveSlot()
			}
		}()
	}
	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	r.logger.Info("All simulations completed. Summary:")
	for _, res := range results {
		r.logger.Info(res.Summary())
	}
	return results, nil
}

// execute runs a single job to completion. A non-zero exit code is a
// normal Completed result carrying that code; only an OS-level launch
// fault becomes StatusLaunchError.
func (r *Runner) execute(job Job) JobResult {
	r.logger.Infof("Starting simulation for %s", job.Name)

	if _, err := os.Stat(job.InputPath); err != nil {
		r.logger.Errorf("Simulation file not found: %s", job.InputPath)
		return JobResult{Job: job, Status: StatusFileNotFound, Err: err}
	}

	cmd := exec.Command(r.plan.Executable, job.InputPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debugf("Executing command: %s %s", r.plan.Executable, job.InputPath)

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := JobResult{
		Job:      job,
		Status:   StatusCompleted,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			r.logger.Errorf("Exception occurred while running simulation %s: %v", job.Name, err)
			result.Status = StatusLaunchError
			result.Err = err
			return result
		}
		result.ExitCode = exitErr.ExitCode()
	}

	r.logger.Infof("Finished simulation for %s in %.2f seconds", job.Name, duration.Seconds())

	if err := WriteArtifact(r.plan.OutputDir, r.plan.Executable, job, result); err != nil {
		r.logger.Errorf("Error writing log file for %s: %v", job.Name, err)
	} else {
		r.logger.Debugf("Log details for %s written to %s", job.Name, ArtifactPath(r.plan.OutputDir, job))
	}

	return result
}

func (r *Runner) enterSlot() {
	r.mu.Lock()
	r.active++
	if r.active > r.peak {
		r.peak = r.active
	}
	r.mu.Unlock()
}

func (r *Runner) leaveSlot() {
	r.mu.Lock()
	r.active--
	r.mu.Unlock()
}

// PeakConcurrency reports the highest number of jobs that were in
// flight at the same time during RunAll.
func (r *Runner) PeakConcurrency() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}
