package domain

// SearchFilter scopes a lexical or vector search to a work and/or section.
type SearchFilter struct {
	Granth  string
	Prakran string
}

// RetrievalResult pairs a unit with a stage-local relevance score. Scores
// from different stages (BM25-derived, cosine-derived, fused, blended) are
// only comparable within the same stage.
type RetrievalResult struct {
	Unit  RetrievedUnit `json:"unit"`
	Score float64       `json:"score"`
}

// VectorHit is a raw similarity-index hit before unit resolution.
type VectorHit struct {
	UnitID string
	Score  float64
}

// RetrievalOutcome is the engine's final answer to one retrieval request.
// Failure modes are data, not errors: a constrained request that matched
// nothing keeps Constrained true with empty Results, and an unanchored
// numeric reference spanning multiple works sets Ambiguous.
type RetrievalOutcome struct {
	Results     []RetrievalResult
	Constrained bool
	Ambiguous   bool
}

// ReferenceLookup describes an exact structural lookup against the corpus
// store, independent of lexical or vector matching.
type ReferenceLookup struct {
	GranthName    string
	ChopaiNumber  *int
	PrakranNumber *int
	PrakranRange  *[2]int
	Limit         int
}

// QueryPlan is the planner's expansion of a raw question into retrieval
// sub-queries. A failed planner call degrades to an empty plan.
type QueryPlan struct {
	Intent        string   `json:"intent"`
	SubQueries    []string `json:"sub_queries"`
	RequiredFacts []string `json:"required_facts"`
}

// Citation is a retrieved unit presented to the end user as evidence,
// enriched with neighboring page context.
type Citation struct {
	CitationID  string   `json:"citation_id"`
	GranthName  string   `json:"granth_name"`
	PrakranName string   `json:"prakran_name"`
	ChopaiLines []string `json:"chopai_lines"`
	MeaningText string   `json:"meaning_text"`
	PageNumber  int      `json:"page_number"`
	PDFPath     string   `json:"pdf_path"`
	Score       float64  `json:"score"`
	PrevContext string   `json:"prev_context,omitempty"`
	NextContext string   `json:"next_context,omitempty"`
}
