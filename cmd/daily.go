package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/db-inlee/paper-digest-agent/internal/model"
	"github.com/db-inlee/paper-digest-agent/internal/pipeline"
)

var (
	dailyFile  string
	dailyDate  string
	dailyForce bool
)

var dailyCmd = &cobra.Command{
	Use:   "daily [arxiv-id-or-url...]",
	Short: "Run the deep analysis pipeline for a batch of papers",
	Long:  "Analyzes the given papers with bounded concurrency, skipping any that already have a report. Ids come from arguments or from a file with one reference per line.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		refs := args
		if dailyFile != "" {
			fileRefs, err := readRefsFile(dailyFile)
			if err != nil {
				return err
			}
			refs = append(refs, fileRefs...)
		}
		if len(refs) == 0 {
			return eris.New("no papers given, pass ids as arguments or --file")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		date := dailyDate
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		papers := make([]model.Paper, 0, len(refs))
		for _, ref := range refs {
			paper, err := env.Arxiv.Resolve(ctx, ref)
			if err != nil {
				zap.L().Warn("skipping unresolvable reference",
					zap.String("ref", ref), zap.Error(err))
				continue
			}
			paper.Date = date
			papers = append(papers, *paper)
		}
		if len(papers) == 0 {
			return eris.New("no papers resolved")
		}

		summary, err := env.Orchestrator.RunBatch(ctx, papers, pipeline.BatchOptions{Date: date, Force: dailyForce})
		if err != nil {
			return err
		}

		fmt.Printf("Batch %s: %d completed (%d degraded), %d failed, %d skipped of %d\n",
			date, summary.Completed, summary.Degraded, summary.Failed, summary.Skipped, summary.Total)
		for _, res := range summary.Results {
			switch {
			case res.State == pipeline.StateFailed:
				fmt.Printf("  FAILED  %s: %v\n", res.Paper.ArxivID, res.StageErr)
			case res.Scoring != nil:
				fmt.Printf("  %-13s %s (%d/15)\n", res.Scoring.Recommendation.Label(), res.Slug, res.Scoring.Total())
			}
		}
		if summary.Failed > 0 {
			return eris.Errorf("%d papers failed", summary.Failed)
		}
		return nil
	},
}

// readRefsFile reads one arXiv reference per line, skipping blanks and
// #-comments.
func readRefsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open refs file %s", path)
	}
	defer f.Close()

	var refs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	return refs, eris.Wrapf(scanner.Err(), "read refs file %s", path)
}

func init() {
	dailyCmd.Flags().StringVar(&dailyFile, "file", "", "file with one arXiv id or URL per line")
	dailyCmd.Flags().StringVar(&dailyDate, "date", "", "run date label (default today, YYYY-MM-DD)")
	dailyCmd.Flags().BoolVar(&dailyForce, "force", false, "rerun papers that already have a report")
	rootCmd.AddCommand(dailyCmd)
}
