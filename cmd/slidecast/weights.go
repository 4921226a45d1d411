package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// stageWeights is the share of the overall percentage each pipeline stage
// gets. The defaults reflect that script generation dominates wall time.
type stageWeights struct {
	Split   float64 `yaml:"split"`
	Scripts float64 `yaml:"scripts"`
	Audio   float64 `yaml:"audio"`
}

func defaultWeights() stageWeights {
	return stageWeights{Split: 25, Scripts: 50, Audio: 25}
}

type weightsFile struct {
	Weights stageWeights `yaml:"weights"`
}

// loadWeights reads a YAML override file. Omitted stages keep their default
// weight; the sum is validated later when the pipeline is built.
func loadWeights(path string) (stageWeights, error) {
	w := defaultWeights()
	if path == "" {
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read weights file: %w", err)
	}
	var file weightsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return w, fmt.Errorf("parse weights file: %w", err)
	}

	if file.Weights.Split > 0 {
		w.Split = file.Weights.Split
	}
	if file.Weights.Scripts > 0 {
		w.Scripts = file.Weights.Scripts
	}
	if file.Weights.Audio > 0 {
		w.Audio = file.Weights.Audio
	}
	return w, nil
}
