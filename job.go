package main

import (
	"fmt"
	"path/filepath"
	"time"
)

type JobStatus string

const (
	StatusCompleted    JobStatus = "Completed"
	StatusFileNotFound JobStatus = "FileNotFound"
	StatusLaunchError  JobStatus = "LaunchError"
)

// Job is one external-executable invocation against one input file.
type Job struct {
	Name      string `json:"name"`
	InputPath string `json:"input_path"`
}

func NewJob(inputPath string) Job {
	return Job{
		Name:      filepath.Base(inputPath),
		InputPath: inputPath,
	}
}

// JobResult records what happened to a single job. Exactly one is
// produced per job; it is immutable once handed back to the runner.
type JobResult struct {
	Job      Job           `json:"job"`
	Status   JobStatus     `json:"status"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Summary renders the one-line form used in the final summary block.
func (r JobResult) Summary() string {
	switch r.Status {
	case StatusFileNotFound:
		return fmt.Sprintf("%s: File not found", r.Job.Name)
	case StatusLaunchError:
		return fmt.Sprintf("%s: Exception occurred", r.Job.Name)
	default:
		return fmt.Sprintf("%s: Completed in %.2f seconds, Return Code: %d",
			r.Job.Name, r.Duration.Seconds(), r.ExitCode)
	}
}
