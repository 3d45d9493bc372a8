package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runForce bool

var runCmd = &cobra.Command{
	Use:   "run <arxiv-id-or-url>",
	Short: "Run the deep analysis pipeline for one paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		paper, err := env.Arxiv.Resolve(ctx, args[0])
		if err != nil {
			return err
		}

		if !runForce && env.Artifacts.HasReport(paper.ArxivID) {
			fmt.Printf("Report already exists for %s, use --force to rerun.\n", paper.ArxivID)
			return nil
		}

		date := time.Now().UTC().Format("2006-01-02")
		res, err := env.Orchestrator.RunOne(ctx, *paper, date)
		if err != nil {
			return err
		}

		fmt.Printf("Completed %s (%s)\n", res.Slug, paper.Title)
		if res.Scoring != nil {
			fmt.Printf("Verdict: %s (%d/15)\n", res.Scoring.Recommendation.Label(), res.Scoring.Total())
		}
		if res.Degraded {
			fmt.Printf("Warning: verification stayed below high reliability after %d correction pass(es).\n", res.RetryCount)
		}
		zap.L().Info("run complete",
			zap.String("arxiv_id", paper.ArxivID),
			zap.String("state", string(res.State)),
			zap.Bool("degraded", res.Degraded),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "rerun even if a report exists")
	rootCmd.AddCommand(runCmd)
}
