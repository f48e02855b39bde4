package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// OutputPlaceholder is replaced by the rendered file's path in trainer
// arguments.
const OutputPlaceholder = "{output}"

// ErrNoCommand is returned for an empty training command.
var ErrNoCommand = errors.New("batch: empty training command")

// TrainResult holds the training command's output.
type TrainResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Trainer hands rendered files to an external training executable.
type Trainer struct {
	Command string
	Args    []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the process environment.
	Env []string
}

// NewTrainer returns a trainer running command with args.
func NewTrainer(command string, args ...string) *Trainer {
	return &Trainer{Command: command, Args: args}
}

// ParseTrainer splits a whitespace-separated command line such as
// "nam-train --output {output}".
func ParseTrainer(line string) (*Trainer, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrNoCommand
	}

	return NewTrainer(fields[0], fields[1:]...), nil
}

// Arguments returns the argument list for outputPath. The path is appended
// when no argument contains OutputPlaceholder.
func (t *Trainer) Arguments(outputPath string) []string {
	args := make([]string, 0, len(t.Args)+1)
	templated := false

	for _, a := range t.Args {
		if strings.Contains(a, OutputPlaceholder) {
			templated = true
			a = strings.ReplaceAll(a, OutputPlaceholder, outputPath)
		}

		args = append(args, a)
	}

	if !templated {
		args = append(args, outputPath)
	}

	return args
}

// Train runs the command for outputPath and waits for it to exit.
func (t *Trainer) Train(ctx context.Context, outputPath string) (*TrainResult, error) {
	if t.Command == "" {
		return nil, ErrNoCommand
	}

	cmd := exec.CommandContext(ctx, t.Command, t.Arguments(outputPath)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = t.Dir

	if len(t.Env) > 0 {
		cmd.Env = append(os.Environ(), t.Env...)
	}

	start := time.Now()
	err := cmd.Run()

	result := &TrainResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}

	if err != nil {
		return result, fmt.Errorf("batch: train %s: %w\nstderr: %s", outputPath, err, result.Stderr)
	}

	return result, nil
}
