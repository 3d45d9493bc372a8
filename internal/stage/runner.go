// Package stage invokes single analysis stages against the inference
// capability. The runner marshals typed input, runs one structured
// completion, and validates the decoded output against the stage's schema.
// It performs no business branching; sequencing and retries belong to the
// pipeline state machine.
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/db-inlee/paper-digest-agent/internal/llm"
	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// Stage names, used in errors and logs.
const (
	StageExtract = "extract"
	StageDelta   = "delta"
	StageScore   = "score"
	StageVerify  = "verify"
	StageCorrect = "correct"
)

// maxSourceChars caps the source-text block injected into prompts.
const maxSourceChars = 60000

// Runner executes analysis stages on an llm.Client.
type Runner struct {
	client    llm.Client
	prompts   *PromptSet
	maxTokens int
}

// NewRunner builds a Runner. prompts may be nil for the defaults.
func NewRunner(client llm.Client, prompts *PromptSet) *Runner {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Runner{client: client, prompts: prompts, maxTokens: 8192}
}

// invoke runs one structured completion and decodes it into T. Transport
// failures become Unavailable errors; decode and validation failures become
// SchemaViolation.
func invoke[T any](ctx context.Context, r *Runner, stageName, system, prompt, schema string, validate func(*T) error) (*T, error) {
	resp, err := r.client.CompleteStructured(ctx, llm.Request{
		System:    system,
		Prompt:    prompt,
		Schema:    schema,
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return nil, NewUnavailable(stageName, err)
	}

	zap.L().Debug("stage completion",
		zap.String("stage", stageName),
		zap.String("model", resp.Model),
		zap.Int64("input_tokens", resp.InputTokens),
		zap.Int64("output_tokens", resp.OutputTokens),
	)

	var out T
	raw := llm.ExtractJSON(resp.Text)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, NewSchemaViolation(stageName, eris.Wrap(err, "decode output"))
	}
	if validate != nil {
		if err := validate(&out); err != nil {
			return nil, NewSchemaViolation(stageName, err)
		}
	}
	return &out, nil
}

// ExtractInput is the Extraction stage input. On correction-loop re-entry
// RevisedDraft and Corrections carry the corrected material so the stage
// starts from it instead of from scratch.
type ExtractInput struct {
	Paper        model.Paper
	Doc          *model.ParsedDoc
	RevisedDraft *model.Extraction
	Corrections  []string
}

// Extract pulls the structured read of a paper out of its parsed text.
func (r *Runner) Extract(ctx context.Context, in ExtractInput) (*model.Extraction, error) {
	fullText := in.Doc.FullText()
	mode := model.ExtractionFull
	textBlock := ""
	if fullText != "" {
		textBlock = "Full text:\n" + truncate(fullText, maxSourceChars) + "\n\n"
	} else {
		mode = model.ExtractionLite
	}

	correctionBlock := ""
	if in.RevisedDraft != nil {
		draft, err := json.Marshal(in.RevisedDraft)
		if err != nil {
			return nil, NewSchemaViolation(StageExtract, eris.Wrap(err, "marshal revised draft"))
		}
		correctionBlock = fmt.Sprintf("A previous draft was revised after verification. Start from it and keep its corrections:\n%s\n\nOutstanding corrections:\n%s\n\n",
			draft, bulletList(in.Corrections))
	}

	prompt := fmt.Sprintf(r.prompts.Extract.User,
		in.Paper.ArxivID, in.Paper.Title, in.Paper.Abstract, textBlock, correctionBlock)

	out, err := invoke(ctx, r, StageExtract, r.prompts.Extract.System, prompt, extractionSchema,
		func(e *model.Extraction) error {
			e.ArxivID = in.Paper.ArxivID
			if e.Title == "" {
				e.Title = in.Paper.Title
			}
			e.ExtractionMode = mode
			return e.Validate()
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delta derives the differentiation record from an extraction.
func (r *Runner) Delta(ctx context.Context, extraction *model.Extraction) (*model.Delta, error) {
	raw, err := json.Marshal(extraction)
	if err != nil {
		return nil, NewSchemaViolation(StageDelta, eris.Wrap(err, "marshal extraction"))
	}
	prompt := fmt.Sprintf(r.prompts.Delta.User, raw)

	out, invErr := invoke(ctx, r, StageDelta, r.prompts.Delta.System, prompt, deltaSchema,
		func(d *model.Delta) error {
			d.ArxivID = extraction.ArxivID
			return d.Validate(extraction)
		})
	if invErr != nil {
		return nil, invErr
	}
	return out, nil
}

// ScoreInput is the Scoring stage input.
type ScoreInput struct {
	Extraction *model.Extraction
	Delta      *model.Delta
}

// Score rates the paper along the fixed axes.
func (r *Runner) Score(ctx context.Context, in ScoreInput) (*model.Scoring, error) {
	extRaw, err := json.Marshal(in.Extraction)
	if err != nil {
		return nil, NewSchemaViolation(StageScore, eris.Wrap(err, "marshal extraction"))
	}
	deltaRaw, err := json.Marshal(in.Delta)
	if err != nil {
		return nil, NewSchemaViolation(StageScore, eris.Wrap(err, "marshal delta"))
	}
	prompt := fmt.Sprintf(r.prompts.Score.User, extRaw, deltaRaw)

	out, invErr := invoke(ctx, r, StageScore, r.prompts.Score.System, prompt, scoringSchema,
		func(s *model.Scoring) error {
			s.ArxivID = in.Extraction.ArxivID
			return s.Validate()
		})
	if invErr != nil {
		return nil, invErr
	}
	return out, nil
}

// VerifyInput is the Verification stage input.
type VerifyInput struct {
	Paper      model.Paper
	Doc        *model.ParsedDoc
	Extraction *model.Extraction
}

// Verify checks the extraction's claims against the source text.
func (r *Runner) Verify(ctx context.Context, in VerifyInput) (*model.Verification, error) {
	claimsRaw, err := json.Marshal(in.Extraction.Claims)
	if err != nil {
		return nil, NewSchemaViolation(StageVerify, eris.Wrap(err, "marshal claims"))
	}

	source := in.Doc.FullText()
	if source == "" {
		source = in.Paper.Abstract
	}
	prompt := fmt.Sprintf(r.prompts.Verify.User, claimsRaw, truncate(source, maxSourceChars))

	out, invErr := invoke(ctx, r, StageVerify, r.prompts.Verify.System, prompt, verificationSchema,
		func(v *model.Verification) error {
			v.ArxivID = in.Extraction.ArxivID
			return v.Validate(in.Extraction)
		})
	if invErr != nil {
		return nil, invErr
	}
	return out, nil
}

// CorrectInput is the Correction stage input.
type CorrectInput struct {
	Paper        model.Paper
	Doc          *model.ParsedDoc
	Extraction   *model.Extraction
	Delta        *model.Delta
	Verification *model.Verification
}

// CorrectOutput is the revised draft the correction loop feeds back into
// extraction.
type CorrectOutput struct {
	Extraction model.Extraction `json:"extraction"`
	Delta      model.Delta      `json:"delta"`
}

// Correct produces a revised extraction and delta guided by the verifier's
// corrections_needed list.
func (r *Runner) Correct(ctx context.Context, in CorrectInput) (*CorrectOutput, error) {
	extRaw, err := json.Marshal(in.Extraction)
	if err != nil {
		return nil, NewSchemaViolation(StageCorrect, eris.Wrap(err, "marshal extraction"))
	}
	deltaRaw, err := json.Marshal(in.Delta)
	if err != nil {
		return nil, NewSchemaViolation(StageCorrect, eris.Wrap(err, "marshal delta"))
	}

	source := in.Doc.FullText()
	if source == "" {
		source = in.Paper.Abstract
	}
	prompt := fmt.Sprintf(r.prompts.Correct.User,
		extRaw, deltaRaw, bulletList(in.Verification.CorrectionsNeeded), truncate(source, maxSourceChars))

	out, invErr := invoke(ctx, r, StageCorrect, r.prompts.Correct.System, prompt, correctionSchema,
		func(c *CorrectOutput) error {
			c.Extraction.ArxivID = in.Extraction.ArxivID
			c.Delta.ArxivID = in.Extraction.ArxivID
			if err := c.Extraction.Validate(); err != nil {
				return err
			}
			return c.Delta.Validate(&c.Extraction)
		})
	if invErr != nil {
		return nil, invErr
	}
	return out, nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "\n[...truncated]"
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (none)"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
