package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "simbatch.yaml"

// RunPlan is the full configuration for one batch run. It is loaded
// once at startup and handed to the Runner; nothing mutates it after
// that.
type RunPlan struct {
	Executable  string   `yaml:"executable"`
	Simulations []string `yaml:"simulations"`
	PoolSize    int      `yaml:"pool_size"`
	OutputDir   string   `yaml:"output_dir"`
	LogFile     string   `yaml:"log_file"`
	LogLevel    string   `yaml:"log_level"`
}

func DefaultRunPlan() *RunPlan {
	return &RunPlan{
		Executable: "./contamx3",
		Simulations: []string{
			filepath.Join("simulations", "sim1.prj"),
			filepath.Join("simulations", "sim2.prj"),
			filepath.Join("simulations", "sim3.prj"),
		},
		PoolSize:  3,
		OutputDir: "output",
		LogFile:   "execution.log",
		LogLevel:  "debug",
	}
}

// LoadRunPlan reads the YAML run plan at path. A missing file is not an
// error: the compiled-in defaults are returned instead. Fields omitted
// from the file keep their default values.
func LoadRunPlan(path string) (*RunPlan, error) {
	plan := DefaultRunPlan()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return plan, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, plan); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (p *RunPlan) Validate() error {
	if p.Executable == "" {
		return fmt.Errorf("executable must not be empty")
	}
	if len(p.Simulations) == 0 {
		return fmt.Errorf("at least one simulation file is required")
	}
	if p.PoolSize < 1 {
		return fmt.Errorf("pool_size must be at least 1, got %d", p.PoolSize)
	}
	return nil
}

// Jobs builds the job list in plan order.
func (p *RunPlan) Jobs() []Job {
	jobs := make([]Job, 0, len(p.Simulations))
	for _, sim := range p.Simulations {
		jobs = append(jobs, NewJob(sim))
	}
	return jobs
}

// GetDataDir returns the directory holding the history database:
// $SIMBATCH_DATA_DIR if set, otherwise "data" next to the executable,
// falling back to the working directory.
func GetDataDir() (string, error) {
	if envDir := os.Getenv("SIMBATCH_DATA_DIR"); envDir != "" {
		return envDir, nil
	}
	execPath, err := os.Executable()
	if err != nil {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return filepath.Join(wd, "data"), nil
	}
	return filepath.Join(filepath.Dir(execPath), "data"), nil
}
