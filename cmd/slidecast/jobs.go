package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/weihanchu/slidecast/pkg/models"
	"github.com/weihanchu/slidecast/pkg/watch"
)

func newJobsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and cancel generation jobs",
	}
	cmd.AddCommand(newJobsListCmd(opts), newJobsCancelCmd(opts))
	return cmd
}

func newJobsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := opts.client().RunningJobs(cmd.Context())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("no running jobs")
				return nil
			}
			for _, job := range jobs {
				fmt.Println(formatJob(job))
			}
			return nil
		},
	}
}

func newJobsCancelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			c := opts.client()
			monitor := watch.NewMonitor(c)
			registry := watch.NewRegistry(c, monitor)
			if err := registry.Cancel(cmd.Context(), jobID); err != nil {
				return err
			}
			fmt.Printf("cancelled job %s\n", jobID)
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch JOB_ID",
		Short: "Watch a job until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return watchJob(cmd, opts, jobID)
		},
	}
}

func newResumeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Re-attach to the job this client was watching before it exited",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := opts.stateFile()
			if err != nil {
				return err
			}

			monitor := watch.NewMonitor(opts.client())
			terminal := attachPrinter(monitor, sf)

			jobID, resumed, err := watch.Resume(monitor, sf)
			if err != nil {
				return err
			}
			if !resumed {
				fmt.Println("nothing to resume")
				return nil
			}
			fmt.Printf("resuming job %s\n", jobID)
			return waitTerminal(cmd, monitor, terminal)
		},
	}
}

// watchJob attaches the monitor to jobID and blocks until the terminal
// event, persisting progress along the way so a crash can resume.
func watchJob(cmd *cobra.Command, opts *rootOptions, jobID uuid.UUID) error {
	sf, err := opts.stateFile()
	if err != nil {
		return err
	}

	monitor := watch.NewMonitor(opts.client())
	terminal := attachPrinter(monitor, sf)
	monitor.Start(jobID)

	return waitTerminal(cmd, monitor, terminal)
}

// attachPrinter wires progress printing and state persistence, returning a
// channel that receives the terminal event.
func attachPrinter(monitor *watch.Monitor, sf *watch.StateFile) <-chan watch.ProgressEvent {
	terminal := make(chan watch.ProgressEvent, 1)
	watch.TrackState(monitor, sf)
	monitor.AddListener(func(ev watch.ProgressEvent) {
		fmt.Printf("\r%-8s %3.0f%% (step %d/%d)   ", ev.Status, ev.Fraction*100, ev.CurrentStep, ev.TotalSteps)
		if ev.Finished {
			terminal <- ev
		}
	})
	return terminal
}

func waitTerminal(cmd *cobra.Command, monitor *watch.Monitor, terminal <-chan watch.ProgressEvent) error {
	select {
	case ev := <-terminal:
		fmt.Println()
		if ev.Failed() {
			return fmt.Errorf("job failed: %s", ev.ErrorMessage)
		}
		fmt.Println("job completed")
		return nil
	case <-cmd.Context().Done():
		monitor.Stop()
		fmt.Println()
		return nil
	}
}

func formatJob(job *models.Job) string {
	return fmt.Sprintf("%s  %-18s %-9s %3.0f%%  project %s",
		job.ID, job.Type, job.Status, job.Progress*100, job.ProjectID)
}
