package domain

// RetrievedUnit is one indexed scripture passage. Units are created during
// ingestion and are immutable afterwards; the retrieval engine only reads
// them through the corpus store.
type RetrievedUnit struct {
	ID         string `json:"id"`
	GranthName string `json:"granth_name"`

	// PrakranName is the section heading as extracted from the source page.
	// PrakranNumber is the structural section number when ingestion could
	// infer one; PrakranConfidence records how sure that inference was,
	// since section numbers are often recovered from free text.
	PrakranName       string  `json:"prakran_name"`
	PrakranNumber     *int    `json:"prakran_number,omitempty"`
	PrakranConfidence float64 `json:"prakran_confidence"`

	// ChopaiNumber is kept as a string because verse numbering is not always
	// numeric in the source texts. PrakranChopaiIndex is the verse position
	// within its prakran, when known.
	ChopaiNumber       string `json:"chopai_number,omitempty"`
	PrakranChopaiIndex *int   `json:"prakran_chopai_index,omitempty"`

	ChopaiLines    []string `json:"chopai_lines"`
	MeaningText    string   `json:"meaning_text"`
	LanguageScript string   `json:"language_script"`
	PageNumber     int      `json:"page_number"`
	PDFPath        string   `json:"pdf_path"`
	SourceSet      string   `json:"source_set"`

	// Matching variants produced at ingestion time.
	NormalizedText string `json:"normalized_text"`
	TranslitHiLatn string `json:"translit_hi_latn"`
	TranslitGuLatn string `json:"translit_gu_latn"`

	ChunkText string `json:"chunk_text"`
	ChunkType string `json:"chunk_type"`
}
