package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/weihanchu/slidecast/pkg/models"
	"github.com/weihanchu/slidecast/pkg/watch"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var weightsPath string
	var fromStage string

	cmd := &cobra.Command{
		Use:   "generate PROJECT_ID",
		Short: "Run the full generation pipeline (split, scripts, audio)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			weights, err := loadWeights(weightsPath)
			if err != nil {
				return err
			}
			stages, err := pipelineStages(opts, projectID, weights, fromStage)
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), opts, stages)
		},
	}
	cmd.Flags().StringVar(&weightsPath, "weights", "", "YAML file overriding stage weights")
	cmd.Flags().StringVar(&fromStage, "from", "split", "first stage to run: split, scripts, or audio")
	return cmd
}

// pipelineStages builds the stage list starting at fromStage, re-spreading
// the configured weights over the stages that actually run.
func pipelineStages(opts *rootOptions, projectID uuid.UUID, weights stageWeights, fromStage string) ([]watch.Stage, error) {
	c := opts.client()
	all := []watch.Stage{
		{Name: "split", Weight: weights.Split, Start: func(ctx context.Context) (uuid.UUID, error) {
			return startJob(c.SplitPages(ctx, projectID))
		}},
		{Name: "scripts", Weight: weights.Scripts, Start: func(ctx context.Context) (uuid.UUID, error) {
			return startJob(c.GenerateScripts(ctx, projectID))
		}},
		{Name: "audio", Weight: weights.Audio, Start: func(ctx context.Context) (uuid.UUID, error) {
			return startJob(c.GenerateAudio(ctx, projectID))
		}},
	}

	start := -1
	for i, st := range all {
		if st.Name == fromStage {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("unknown stage %q", fromStage)
	}

	stages := all[start:]
	var sum float64
	for _, st := range stages {
		sum += st.Weight
	}
	for i := range stages {
		stages[i].Weight = stages[i].Weight / sum * 100
	}
	return stages, nil
}

func startJob(job *models.Job, err error) (uuid.UUID, error) {
	if err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

// runPipeline drives the stages through a monitor, persisting progress for
// crash recovery and rendering a single-line progress readout.
func runPipeline(ctx context.Context, opts *rootOptions, stages []watch.Stage) error {
	monitor := watch.NewMonitor(opts.client())

	sf, err := opts.stateFile()
	if err != nil {
		return err
	}
	watch.TrackState(monitor, sf)

	pipeline := watch.NewPipeline(monitor)
	done, err := pipeline.Run(ctx, stages)
	if err != nil {
		return err
	}
	// Registered after Run so the readout reflects the value the pipeline
	// just folded the event into.
	monitor.AddListener(func(ev watch.ProgressEvent) {
		fmt.Printf("\r%-8s %3.0f%% (step %d/%d)   ", ev.Status, pipeline.Overall(), ev.CurrentStep, ev.TotalSteps)
	})

	select {
	case runErr := <-done:
		fmt.Println()
		if runErr != nil {
			return runErr
		}
		fmt.Println("generation complete")
		return nil
	case <-ctx.Done():
		pipeline.Abort()
		<-done
		fmt.Println()
		return ctx.Err()
	}
}
