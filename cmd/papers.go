package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/db-inlee/paper-digest-agent/internal/artifact"
	"github.com/db-inlee/paper-digest-agent/internal/model"
	"github.com/db-inlee/paper-digest-agent/internal/report"
	"github.com/db-inlee/paper-digest-agent/internal/store"
	"github.com/db-inlee/paper-digest-agent/pkg/arxiv"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Inspect analyzed papers and job history",
}

var papersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analyzed papers, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		artifacts, err := artifact.NewStore(cfg.Data.Dir)
		if err != nil {
			return err
		}
		for _, slug := range artifacts.ListSlugs() {
			fmt.Println(slug)
		}
		return nil
	},
}

var papersShowJSON bool

var papersShowCmd = &cobra.Command{
	Use:   "show <arxiv-id-or-url>",
	Short: "Show the digest for one paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := arxiv.NormalizeID(args[0])
		if err != nil {
			return err
		}
		artifacts, err := artifact.NewStore(cfg.Data.Dir)
		if err != nil {
			return err
		}

		if papersShowJSON {
			rec, err := report.NewAssembler(artifacts).Assemble(id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		md, err := artifacts.Report(id)
		if err != nil {
			return err
		}
		fmt.Print(md)
		return nil
	},
}

var jobsState string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent pipeline jobs from history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		history, err := store.New(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer history.Close()

		jobs, err := history.ListJobs(ctx, store.JobFilter{
			State: model.JobState(jobsState),
			Limit: 50,
		})
		if err != nil {
			return err
		}
		for _, job := range jobs {
			line := fmt.Sprintf("%-10s %-12s %s", job.State, job.ArxivID, job.StartedAt.Format("2006-01-02 15:04"))
			if job.RetryCount > 0 {
				line += fmt.Sprintf(" retries=%d", job.RetryCount)
			}
			if job.Error != "" {
				line += "  " + job.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	papersShowCmd.Flags().BoolVar(&papersShowJSON, "json", false, "print the assembled record as JSON instead of markdown")
	jobsCmd.Flags().StringVar(&jobsState, "state", "", "filter by state (running, completed, error)")

	papersCmd.AddCommand(papersListCmd)
	papersCmd.AddCommand(papersShowCmd)
	rootCmd.AddCommand(papersCmd)
	rootCmd.AddCommand(jobsCmd)
}
