package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newProjectsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage slide-deck projects",
	}
	cmd.AddCommand(
		newProjectsListCmd(opts),
		newProjectsCreateCmd(opts),
		newProjectsUploadCmd(opts),
	)
	return cmd
}

func newProjectsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := opts.client().Projects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Println("no projects")
				return nil
			}
			for _, p := range projects {
				pdf := "no pdf"
				if p.PDFPath != nil {
					pdf = fmt.Sprintf("%d pages", p.PageCount)
				}
				fmt.Printf("%s  %-30s  %s\n", p.ID, p.Name, pdf)
			}
			return nil
		},
	}
}

func newProjectsCreateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			project, err := opts.client().CreateProject(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Printf("created project %s (%s)\n", project.Name, project.ID)
			return nil
		},
	}
}

func newProjectsUploadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload PROJECT_ID FILE",
		Short: "Upload the project's slide-deck PDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			project, err := opts.client().UploadPDF(cmd.Context(), projectID, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("uploaded %s to project %s\n", args[1], project.Name)
			return nil
		},
	}
}
