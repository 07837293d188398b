package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactPath returns the per-job artifact file path: the job name
// with its extension replaced by ".log", under the output directory.
func ArtifactPath(outputDir string, job Job) string {
	name := strings.TrimSuffix(job.Name, filepath.Ext(job.Name)) + ".log"
	return filepath.Join(outputDir, name)
}

// WriteArtifact writes the per-job artifact file: the exact command
// line, elapsed time, return code, and the captured output streams.
// The file is overwritten on rerun.
func WriteArtifact(outputDir, executable string, job Job, result JobResult) error {
	details := fmt.Sprintf(
		"Command: %s %s\n"+
			"Elapsed Time: %.2f seconds\n"+
			"Return Code: %d\n"+
			"STDOUT:\n%s\n"+
			"STDERR:\n%s\n",
		executable, job.InputPath,
		result.Duration.Seconds(),
		result.ExitCode,
		result.Stdout,
		result.Stderr,
	)

	if err := os.WriteFile(ArtifactPath(outputDir, job), []byte(details), 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}
