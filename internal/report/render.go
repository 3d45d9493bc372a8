// Package report assembles and renders per-paper deep-analysis output.
package report

import (
	"fmt"
	"strings"

	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// Input carries everything Render needs for one paper's markdown report.
type Input struct {
	Paper        model.Paper
	Extraction   *model.Extraction
	Delta        *model.Delta
	Scoring      *model.Scoring
	Verification *model.Verification
	Degraded     bool
	RetryCount   int
}

// Render produces the deep.md markdown report. Output is deterministic for
// a given set of artifacts; every section degrades to a placeholder when
// its artifact is absent.
func Render(in Input) string {
	var b strings.Builder

	title := in.Paper.Title
	if in.Extraction != nil && in.Extraction.Title != "" {
		title = in.Extraction.Title
	}
	fmt.Fprintf(&b, "# Deep Analysis: %s\n\n", title)
	fmt.Fprintf(&b, "arXiv: [%s](https://arxiv.org/abs/%s)\n\n", in.Paper.ArxivID, in.Paper.ArxivID)

	if in.Degraded {
		fmt.Fprintf(&b, "> **Degraded result**: verification stayed below high reliability after %d correction pass(es). Treat specific claims with care.\n\n", in.RetryCount)
	}

	writeVerdict(&b, in.Scoring)
	writeDelta(&b, in.Delta)
	writeExtraction(&b, in.Extraction)
	writeVerification(&b, in.Verification)

	return b.String()
}

func writeVerdict(b *strings.Builder, s *model.Scoring) {
	b.WriteString("## Verdict\n")
	if s == nil {
		b.WriteString("Not scored.\n\n")
		return
	}
	fmt.Fprintf(b, "**%s** (%d/15)\n\n", s.Recommendation.Label(), s.Total())
	fmt.Fprintf(b, "- Practicality: %d/5\n", s.Practicality)
	fmt.Fprintf(b, "- Codeability: %d/5\n", s.Codeability)
	fmt.Fprintf(b, "- Signal: %d/5\n\n", s.Signal)
	if s.Reasoning != "" {
		fmt.Fprintf(b, "%s\n\n", s.Reasoning)
	}
	if s.KeyStrength != "" {
		fmt.Fprintf(b, "- Key strength: %s\n", s.KeyStrength)
	}
	if s.MainConcern != "" {
		fmt.Fprintf(b, "- Main concern: %s\n", s.MainConcern)
	}
	if s.KeyStrength != "" || s.MainConcern != "" {
		b.WriteString("\n")
	}
}

func writeDelta(b *strings.Builder, d *model.Delta) {
	b.WriteString("## What's New\n")
	if d == nil {
		b.WriteString("No differentiation analysis.\n\n")
		return
	}
	if d.OneLineTakeaway != "" {
		fmt.Fprintf(b, "%s\n\n", d.OneLineTakeaway)
	}
	for _, cd := range d.CoreDeltas {
		fmt.Fprintf(b, "### %s\n", cd.Axis)
		fmt.Fprintf(b, "- Before: %s\n", cd.OldApproach)
		fmt.Fprintf(b, "- After: %s\n", cd.NewApproach)
		fmt.Fprintf(b, "- Why it matters: %s\n\n", cd.WhyBetter)
	}
	if len(d.Tradeoffs) > 0 {
		b.WriteString("### Tradeoffs\n")
		for _, t := range d.Tradeoffs {
			fmt.Fprintf(b, "- **%s**: %s, at the cost of %s", t.Aspect, t.Benefit, t.Cost)
			if t.WhenAcceptable != "" {
				fmt.Fprintf(b, " (acceptable when %s)", t.WhenAcceptable)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if d.WhenToUse != "" {
		fmt.Fprintf(b, "**Use when**: %s\n\n", d.WhenToUse)
	}
	if d.WhenNotToUse != "" {
		fmt.Fprintf(b, "**Avoid when**: %s\n\n", d.WhenNotToUse)
	}
}

func writeExtraction(b *strings.Builder, e *model.Extraction) {
	b.WriteString("## Method\n")
	if e == nil {
		b.WriteString("No extraction available.\n\n")
		return
	}
	if e.ExtractionMode == model.ExtractionLite {
		b.WriteString("_Abstract-only analysis; full text was unavailable._\n\n")
	}
	if e.ProblemDefinition.Statement != "" {
		b.WriteString("### Problem\n")
		fmt.Fprintf(b, "%s\n\n", e.ProblemDefinition.Statement)
		if e.ProblemDefinition.StructuralLimitation != "" {
			fmt.Fprintf(b, "Prior-work limitation: %s\n\n", e.ProblemDefinition.StructuralLimitation)
		}
	}
	if len(e.MethodComponents) > 0 {
		b.WriteString("### Components\n")
		for _, c := range e.MethodComponents {
			fmt.Fprintf(b, "- **%s**", c.Name)
			if c.Role != "" {
				fmt.Fprintf(b, " (%s)", c.Role)
			}
			fmt.Fprintf(b, ": %s\n", c.Description)
			if c.ImplementationHint != "" {
				fmt.Fprintf(b, "  - Implementation: %s\n", c.ImplementationHint)
			}
		}
		b.WriteString("\n")
	}
	if len(e.Baselines) > 0 {
		b.WriteString("### Baselines\n")
		for _, bl := range e.Baselines {
			fmt.Fprintf(b, "- **%s**: %s", bl.Name, bl.Description)
			if bl.Limitation != "" {
				fmt.Fprintf(b, " (limitation: %s)", bl.Limitation)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if e.Benchmark != nil && e.Benchmark.Dataset != "" {
		b.WriteString("### Benchmark\n")
		fmt.Fprintf(b, "Dataset: %s", e.Benchmark.Dataset)
		if len(e.Benchmark.Metrics) > 0 {
			fmt.Fprintf(b, " (%s)", strings.Join(e.Benchmark.Metrics, ", "))
		}
		b.WriteString("\n\n")
	}
	if len(e.Claims) > 0 {
		b.WriteString("### Claims\n")
		for _, c := range e.Claims {
			fmt.Fprintf(b, "- [%s] %s (%s, confidence %.2f)\n", c.ClaimID, c.Text, c.ClaimType, c.Confidence)
		}
		b.WriteString("\n")
	}
}

func writeVerification(b *strings.Builder, v *model.Verification) {
	b.WriteString("## Verification\n")
	if v == nil {
		b.WriteString("Not verified.\n")
		return
	}
	fmt.Fprintf(b, "Reliability: **%s**. %d/%d claims verified (%.0f%%), %d unverified, %d contradicted.\n\n",
		v.OverallReliability, v.VerifiedCount, v.TotalClaims, v.VerificationRate()*100,
		v.UnverifiedCount, v.ContradictedCount)
	if v.Summary != "" {
		fmt.Fprintf(b, "%s\n\n", v.Summary)
	}
	flagged := false
	for _, r := range v.Results {
		if r.Status == model.ClaimVerified {
			continue
		}
		if !flagged {
			b.WriteString("Flagged claims:\n")
			flagged = true
		}
		fmt.Fprintf(b, "- [%s] %s: %s", r.ClaimID, r.Status, r.ClaimText)
		if r.Notes != "" {
			fmt.Fprintf(b, " (%s)", r.Notes)
		}
		b.WriteString("\n")
	}
}
