package stage

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Prompt holds the system and user templates for one stage. User templates
// are fmt format strings; each stage documents its argument order.
type Prompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// PromptSet holds the prompt templates for every analysis stage. A yaml
// file can override any subset of them for prompt iteration without a
// rebuild.
type PromptSet struct {
	Extract Prompt `yaml:"extract"`
	Delta   Prompt `yaml:"delta"`
	Score   Prompt `yaml:"score"`
	Verify  Prompt `yaml:"verify"`
	Correct Prompt `yaml:"correct"`
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() *PromptSet {
	return &PromptSet{
		Extract: Prompt{
			System: "You are a research analyst reading machine-learning papers. Extract only what the text supports and attach evidence locators (page, section, quote) to every item. Use claim ids c1, c2, ... unique within the paper.",
			// args: arxiv_id, title, abstract, full text block, correction block
			User: `arXiv ID: %s
Title: %s
Abstract: %s

%s%s
Extract the problem definition, baselines, method components (at least two), benchmark results, and the paper's key claims. Every claim needs a stable claim_id, a claim_type (method, result, comparison, limitation, architecture, efficiency, ablation), a confidence in [0,1], and evidence.`,
		},
		Delta: Prompt{
			System: "You are a research analyst articulating how a paper differs from prior work. Only reference baselines and components present in the provided extraction.",
			// args: extraction json
			User: `Extraction:
%s

State the one-line takeaway, the core structural deltas (axis, old approach, new approach, why better, evidence), tradeoffs, and when to use / not use this method.`,
		},
		Score: Prompt{
			System: "You are a pragmatic research engineer scoring papers for implementation value. Each axis is an integer 0-5.",
			// args: extraction json, delta json
			User: `Extraction:
%s

Delta:
%s

Score practicality, codeability, and signal (0-5 each), pick a recommendation (must_read, worth_reading, skim, skip), and explain the reasoning, key strength, and main concern.`,
		},
		Verify: Prompt{
			System: "You are a fact checker verifying extracted claims against the paper's own text. Mark each claim verified, unverified, or contradicted; never invent evidence. Keep counts consistent with the result list.",
			// args: extraction json, source text block
			User: `Claims to verify:
%s

Source text:
%s

For every claim return a verdict with confidence, the evidence found, and a correction hint when the claim overstates the source. Summarize overall reliability as high, medium, or low and list corrections_needed.`,
		},
		Correct: Prompt{
			System: "You are revising an over- or mis-stated paper analysis. Apply only the requested corrections; keep claim ids stable where the claim survives.",
			// args: extraction json, delta json, corrections list, source text block
			User: `Current extraction:
%s

Current delta:
%s

Corrections needed:
%s

Source text:
%s

Return revised extraction and delta with the corrections applied.`,
		},
	}
}

// LoadPrompts reads a yaml override file and merges it over the defaults.
// Empty fields in the file keep their default value.
func LoadPrompts(path string) (*PromptSet, error) {
	base := DefaultPrompts()
	if path == "" {
		return base, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "stage: read prompts %s", path)
	}
	var override PromptSet
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, eris.Wrapf(err, "stage: parse prompts %s", path)
	}

	merge := func(dst *Prompt, src Prompt) {
		if src.System != "" {
			dst.System = src.System
		}
		if src.User != "" {
			dst.User = src.User
		}
	}
	merge(&base.Extract, override.Extract)
	merge(&base.Delta, override.Delta)
	merge(&base.Score, override.Score)
	merge(&base.Verify, override.Verify)
	merge(&base.Correct, override.Correct)
	return base, nil
}
