package stage

// JSON schemas embedded in the structured-completion system prompt. The
// decoded output is additionally validated in Go; the schema text exists to
// steer the model, not to be authoritative.

const evidenceSchema = `{"page": int|null, "section": string|null, "quote": string|null, "type": "quote"|"table"|"figure"|"equation"}`

const extractionSchema = `{
  "arxiv_id": string,
  "title": string,
  "problem_definition": {"statement": string, "baseline_methods": [string], "structural_limitation": string, "evidence": [` + evidenceSchema + `]},
  "baselines": [{"name": string, "description": string, "limitation": string, "evidence": [` + evidenceSchema + `]}],
  "method_components": [{"name": string, "description": string, "inputs": [string], "outputs": [string], "implementation_hint": string|null, "role": "novel"|"adapted"|"standard", "evidence": [` + evidenceSchema + `]}],
  "benchmark": {"dataset": string, "metrics": [string], "baseline_results": {string: string}, "proposed_results": {string: string}, "evidence": [` + evidenceSchema + `]}|null,
  "claims": [{"claim_id": string, "text": string, "claim_type": "method"|"result"|"comparison"|"limitation"|"architecture"|"efficiency"|"ablation", "confidence": number, "evidence": [` + evidenceSchema + `]}],
  "extraction_mode": "full"|"lite"
}`

const deltaSchema = `{
  "arxiv_id": string,
  "one_line_takeaway": string,
  "core_deltas": [{"axis": string, "old_approach": string, "new_approach": string, "why_better": string, "evidence": ` + evidenceSchema + `}],
  "tradeoffs": [{"aspect": string, "benefit": string, "cost": string, "when_acceptable": string|null, "evidence": ` + evidenceSchema + `}],
  "when_to_use": string,
  "when_not_to_use": string
}`

const scoringSchema = `{
  "arxiv_id": string,
  "practicality": int,
  "codeability": int,
  "signal": int,
  "recommendation": "must_read"|"worth_reading"|"skim"|"skip",
  "reasoning": string,
  "key_strength": string,
  "main_concern": string
}`

const verificationSchema = `{
  "arxiv_id": string,
  "total_claims": int,
  "verified_count": int,
  "unverified_count": int,
  "contradicted_count": int,
  "overall_reliability": "high"|"medium"|"low",
  "results": [{"claim_id": string, "claim_text": string, "status": "verified"|"unverified"|"contradicted", "confidence": number, "evidence_found": string|null, "notes": string, "correction_hint": string|null}],
  "summary": string,
  "corrections_needed": [string]
}`

const correctionSchema = `{
  "extraction": ` + extractionSchema + `,
  "delta": ` + deltaSchema + `
}`
