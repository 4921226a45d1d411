// Command slidecast is the terminal client for the slidecast server: it
// creates projects, kicks off the generation pipeline, and watches jobs.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/weihanchu/slidecast/pkg/client"
	"github.com/weihanchu/slidecast/pkg/watch"
)

var version = "0.1.0"

type rootOptions struct {
	server  string
	timeout time.Duration
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.server, o.timeout)
}

func (o *rootOptions) stateFile() (*watch.StateFile, error) {
	path, err := watch.DefaultStatePath()
	if err != nil {
		return nil, err
	}
	return watch.NewStateFile(path), nil
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "slidecast",
		Short:         "Turn slide decks into narrated audio lectures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "server base URL")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-request timeout")

	rootCmd.AddCommand(
		newProjectsCmd(opts),
		newGenerateCmd(opts),
		newJobsCmd(opts),
		newWatchCmd(opts),
		newResumeCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("slidecast version %s\n", version)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
