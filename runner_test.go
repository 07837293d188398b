package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeFakeExe(t *testing.T, dir, script string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-sim")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake executable: %v", err)
	}
	return path
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write input file: %v", err)
	}
	return path
}

func testPlan(t *testing.T, dir, exe string, sims []string) *RunPlan {
	t.Helper()
	return &RunPlan{
		Executable:  exe,
		Simulations: sims,
		PoolSize:    3,
		OutputDir:   filepath.Join(dir, "output"),
		LogFile:     filepath.Join(dir, "execution.log"),
		LogLevel:    "debug",
	}
}

func TestRunAll_ResultsInPlanOrder(t *testing.T) {
	dir := t.TempDir()

	// Each input file holds a sleep duration; earlier jobs sleep longer
	// so completion order inverts plan order.
	exe := writeFakeExe(t, dir, "#!/bin/sh\nsleep \"$(cat \"$1\")\"\necho \"ran $1\"\n")
	sims := []string{
		writeInput(t, dir, "sim1.prj", "0.4"),
		writeInput(t, dir, "sim2.prj", "0.3"),
		writeInput(t, dir, "sim3.prj", "0.2"),
		writeInput(t, dir, "sim4.prj", "0.1"),
		writeInput(t, dir, "sim5.prj", "0"),
	}

	runner := NewRunner(testPlan(t, dir, exe, sims), zap.NewNop().Sugar())
	results, err := runner.RunAll()
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	if len(results) != len(sims) {
		t.Fatalf("expected %d results, got %d", len(sims), len(results))
	}
	for i, res := range results {
		if res.Job.InputPath != sims[i] {
			t.Errorf("result %d: expected job %s, got %s", i, sims[i], res.Job.InputPath)
		}
		if res.Status != StatusCompleted {
			t.Errorf("result %d: expected Completed, got %s", i, res.Status)
		}
		if !strings.Contains(res.Stdout, "ran "+sims[i]) {
			t.Errorf("result %d: stdout %q does not match job input", i, res.Stdout)
		}
	}
}

func TestRunAll_BoundedConcurrency(t *testing.T) {
	dir := t.TempDir()

	exe := writeFakeExe(t, dir, "#!/bin/sh\nsleep 0.3\n")
	var sims []string
	for _, name := range []string{"a.prj", "b.prj", "c.prj", "d.prj", "e.prj"} {
		sims = append(sims, writeInput(t, dir, name, ""))
	}

	runner := NewRunner(testPlan(t, dir, exe, sims), zap.NewNop().Sugar())
	start := time.Now()
	results, err := runner.RunAll()
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	if peak := runner.PeakConcurrency(); peak != 3 {
		t.Errorf("expected peak concurrency 3, got %d", peak)
	}
	// 5 jobs at 0.3s through 3 slots: two waves, well under serial time.
	if elapsed < 600*time.Millisecond {
		t.Errorf("run finished in %v, faster than the pool bound allows", elapsed)
	}
	if elapsed >= 1500*time.Millisecond {
		t.Errorf("run took %v, looks serial rather than pooled", elapsed)
	}
}

func TestExecute_FileNotFoundSkipsLaunch(t *testing.T) {
	dir := t.TempDir()

	sentinel := filepath.Join(dir, "sentinel")
	exe := writeFakeExe(t, dir, "#!/bin/sh\ntouch "+sentinel+"\n")
	missing := filepath.Join(dir, "missing.prj")

	runner := NewRunner(testPlan(t, dir, exe, []string{missing}), zap.NewNop().Sugar())
	results, err := runner.RunAll()
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	if results[0].Status != StatusFileNotFound {
		t.Errorf("expected FileNotFound, got %s", results[0].Status)
	}
	if _, err := os.Stat(sentinel); !os.IsNotExist(err) {
		t.Error("executable was launched for a missing input file")
	}
}

func TestExecute_NonZeroExitIsCompleted(t *testing.T) {
	dir := t.TempDir()

	exe := writeFakeExe(t, dir, "#!/bin/sh\necho 'convergence failure' >&2\nexit 2\n")
	sim := writeInput(t, dir, "sim1.prj", "")

	runner := NewRunner(testPlan(t, dir, exe, []string{sim}), zap.NewNop().Sugar())
	results, err := runner.RunAll()
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	res := results[0]
	if res.Status != StatusCompleted {
		t.Errorf("expected Completed for non-zero exit, got %s", res.Status)
	}
	if res.ExitCode != 2 {
		t.Errorf("expected exit code 2, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "convergence failure") {
		t.Errorf("stderr not captured: %q", res.Stderr)
	}
	if !strings.Contains(res.Summary(), "Return Code: 2") {
		t.Errorf("summary should carry the exit code: %q", res.Summary())
	}
}

func TestExecute_LaunchFaultIsLaunchError(t *testing.T) {
	dir := t.TempDir()

	// Executable bit set but no shebang and not a binary: exec format error.
	exe := writeFakeExe(t, dir, "\x00not a program\n")
	sim := writeInput(t, dir, "sim1.prj", "")

	runner := NewRunner(testPlan(t, dir, exe, []string{sim}), zap.NewNop().Sugar())
	results, err := runner.RunAll()
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	if results[0].Status != StatusLaunchError {
		t.Errorf("expected LaunchError, got %s", results[0].Status)
	}
	if results[0].Err == nil {
		t.Error("expected launch error to be recorded")
	}
	if !strings.Contains(results[0].Summary(), "Exception occurred") {
		t.Errorf("unexpected summary: %q", results[0].Summary())
	}
}

func TestRunAll_MissingExecutableIsFatal(t *testing.T) {
	dir := t.TempDir()

	sentinelDir := filepath.Join(dir, "output")
	sim := writeInput(t, dir, "sim1.prj", "")
	plan := testPlan(t, dir, filepath.Join(dir, "no-such-exe"), []string{sim})
	plan.OutputDir = sentinelDir

	runner := NewRunner(plan, zap.NewNop().Sugar())
	if _, err := runner.RunAll(); err == nil {
		t.Fatal("expected error for missing executable")
	}
}

func TestExecute_ArtifactWriteFailureKeepsStatus(t *testing.T) {
	dir := t.TempDir()

	exe := writeFakeExe(t, dir, "#!/bin/sh\necho OK\n")
	sim := writeInput(t, dir, "sim1.prj", "")
	plan := testPlan(t, dir, exe, []string{sim})

	// Occupy the artifact path with a directory so the write fails.
	if err := os.MkdirAll(filepath.Join(plan.OutputDir, "sim1.log"), 0755); err != nil {
		t.Fatalf("failed to occupy artifact path: %v", err)
	}

	runner := NewRunner(plan, zap.NewNop().Sugar())
	results, err := runner.RunAll()
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	res := results[0]
	if res.Status != StatusCompleted {
		t.Errorf("artifact write failure changed status to %s", res.Status)
	}
	if res.ExitCode != 0 {
		t.Errorf("artifact write failure changed exit code to %d", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "OK") {
		t.Errorf("captured stdout lost: %q", res.Stdout)
	}
}

func TestRunAll_WritesArtifact(t *testing.T) {
	dir := t.TempDir()

	exe := writeFakeExe(t, dir, "#!/bin/sh\necho OK\n")
	sim := writeInput(t, dir, "sim1.prj", "")
	plan := testPlan(t, dir, exe, []string{sim})

	runner := NewRunner(plan, zap.NewNop().Sugar())
	if _, err := runner.RunAll(); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(plan.OutputDir, "sim1.log"))
	if err != nil {
		t.Fatalf("artifact file not written: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "OK") {
		t.Error("artifact missing captured stdout")
	}
	if !strings.Contains(content, "Return Code: 0") {
		t.Error("artifact missing return code")
	}
	if !strings.Contains(content, "Command: "+exe+" "+sim) {
		t.Error("artifact missing command line")
	}
}
