package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-reamp/batch"
	"github.com/cwbudde/algo-reamp/chain"
)

var errEmptyManifest = errors.New("manifest has no jobs")

// descriptorJSON mirrors chain.Descriptor with an optional enabled flag so
// omitted stages default to enabled.
type descriptorJSON struct {
	Kind     chain.Kind `json:"kind"`
	Identity string     `json:"identity"`
	File     string     `json:"file"`
	State    []byte     `json:"state"`
	Enabled  *bool      `json:"enabled"`
	Bypassed bool       `json:"bypassed"`
	Name     string     `json:"name"`
}

func (d descriptorJSON) descriptor(baseDir string) chain.Descriptor {
	enabled := true
	if d.Enabled != nil {
		enabled = *d.Enabled
	}

	return chain.Descriptor{
		Kind:     d.Kind,
		Identity: d.Identity,
		FilePath: resolvePath(baseDir, d.File),
		State:    d.State,
		Enabled:  enabled,
		Bypassed: d.Bypassed,
		Name:     d.Name,
	}
}

type chainFileJSON struct {
	Stages []descriptorJSON `json:"stages"`
}

type jobJSON struct {
	Name      string           `json:"name"`
	Input     string           `json:"input"`
	Output    string           `json:"output"`
	Chain     []descriptorJSON `json:"chain"`
	ChainFile string           `json:"chain_file"`
}

type manifestJSON struct {
	Jobs []jobJSON `json:"jobs"`
}

// resolvePath makes relative paths relative to baseDir.
func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}

	return filepath.Join(baseDir, p)
}

// loadChain reads a chain file: either {"stages": [...]} or a bare array of
// stages. Relative stage paths resolve against the file's directory.
func loadChain(path string) ([]chain.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain file: %w", err)
	}

	descs, err := parseChain(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("parse chain file %s: %w", path, err)
	}

	return descs, nil
}

func parseChain(data []byte, baseDir string) ([]chain.Descriptor, error) {
	var stages []descriptorJSON

	if err := json.Unmarshal(data, &stages); err != nil {
		var file chainFileJSON
		if err2 := json.Unmarshal(data, &file); err2 != nil {
			return nil, err2
		}

		stages = file.Stages
	}

	out := make([]chain.Descriptor, len(stages))
	for i, s := range stages {
		out[i] = s.descriptor(baseDir)
	}

	return out, nil
}

// loadManifest reads a batch manifest. Jobs give their chain inline or as
// chain_file; relative paths resolve against the manifest's directory.
func loadManifest(path string) ([]batch.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m manifestJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errEmptyManifest)
	}

	baseDir := filepath.Dir(path)
	jobs := make([]batch.Job, len(m.Jobs))

	for i, j := range m.Jobs {
		job := batch.Job{
			Name:       j.Name,
			InputPath:  resolvePath(baseDir, j.Input),
			OutputPath: resolvePath(baseDir, j.Output),
		}

		if job.Name == "" {
			job.Name = fmt.Sprintf("job-%d", i+1)
		}

		if j.ChainFile != "" {
			descs, err := loadChain(resolvePath(baseDir, j.ChainFile))
			if err != nil {
				return nil, fmt.Errorf("job %q: %w", job.Name, err)
			}

			job.Chain = descs
		} else {
			for _, s := range j.Chain {
				job.Chain = append(job.Chain, s.descriptor(baseDir))
			}
		}

		jobs[i] = job
	}

	return jobs, nil
}
