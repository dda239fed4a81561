package domain

// Intent labels assigned by the reference parser, in classification order.
const (
	IntentGeneralQA           = "general_qa"
	IntentCountChopai         = "count_chopai"
	IntentSpecificChopai      = "specific_chopai"
	IntentPrakranRangeSummary = "prakran_range_summary"
	IntentPrakranSummary      = "prakran_summary"
)

// DefaultPrakranMaxSpan caps how many sections a single range request may
// expand into.
const DefaultPrakranMaxSpan = 20

// QueryContext is the parsed structural view of one user turn. It is derived
// fresh per request and never persisted directly; only its resolved fields
// feed the next turn's SessionContextState.
//
// Invariant: PrakranNumber and the range pair are never both set.
type QueryContext struct {
	Intent     string `json:"intent"`
	GranthName string `json:"granth_name,omitempty"`

	PrakranNumber     *int `json:"prakran_number,omitempty"`
	PrakranRangeStart *int `json:"prakran_range_start,omitempty"`
	PrakranRangeEnd   *int `json:"prakran_range_end,omitempty"`
	ChopaiNumber      *int `json:"chopai_number,omitempty"`

	RequiresSummary bool `json:"requires_summary"`
	RequiresCount   bool `json:"requires_count"`
	ContextCarried  bool `json:"context_carried"`

	// Notes are diagnostic only and safe to expose in debug payloads.
	Notes []string `json:"notes,omitempty"`
}

// HasPrakranConstraint reports whether the context pins one or more sections.
func (q QueryContext) HasPrakranConstraint() bool {
	return q.PrakranNumber != nil || (q.PrakranRangeStart != nil && q.PrakranRangeEnd != nil)
}

// HasReferenceConstraint reports whether any explicit structural constraint
// (work, section, or verse) is present.
func (q QueryContext) HasReferenceConstraint() bool {
	return q.HasPrakranConstraint() || q.ChopaiNumber != nil || q.GranthName != ""
}

// PrakranNumbers expands the section constraint into an ordered list of
// section numbers, capped at maxSpan sections past the range start.
func (q QueryContext) PrakranNumbers(maxSpan int) []int {
	if q.PrakranNumber != nil {
		return []int{*q.PrakranNumber}
	}
	if q.PrakranRangeStart == nil || q.PrakranRangeEnd == nil {
		return nil
	}
	if maxSpan <= 0 {
		maxSpan = DefaultPrakranMaxSpan
	}

	start, end := *q.PrakranRangeStart, *q.PrakranRangeEnd
	if end < start {
		start, end = end, start
	}
	if end-start > maxSpan {
		end = start + maxSpan
	}

	out := make([]int, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, n)
	}
	return out
}

// SessionContextState is the durable per-conversation carry-over record:
// the last known work, section, range, and verse references.
type SessionContextState struct {
	GranthName        string `json:"granth_name,omitempty"`
	PrakranNumber     *int   `json:"prakran_number,omitempty"`
	PrakranRangeStart *int   `json:"prakran_range_start,omitempty"`
	PrakranRangeEnd   *int   `json:"prakran_range_end,omitempty"`
	ChopaiNumber      *int   `json:"chopai_number,omitempty"`
}

// NextSessionContext merges the freshly parsed context over the prior state:
// new non-null fields overwrite, null fields inherit.
func NextSessionContext(prior SessionContextState, current QueryContext) SessionContextState {
	next := SessionContextState{
		GranthName:        prior.GranthName,
		PrakranNumber:     prior.PrakranNumber,
		PrakranRangeStart: prior.PrakranRangeStart,
		PrakranRangeEnd:   prior.PrakranRangeEnd,
		ChopaiNumber:      prior.ChopaiNumber,
	}
	if current.GranthName != "" {
		next.GranthName = current.GranthName
	}
	if current.PrakranNumber != nil {
		next.PrakranNumber = current.PrakranNumber
	}
	if current.PrakranRangeStart != nil {
		next.PrakranRangeStart = current.PrakranRangeStart
	}
	if current.PrakranRangeEnd != nil {
		next.PrakranRangeEnd = current.PrakranRangeEnd
	}
	if current.ChopaiNumber != nil {
		next.ChopaiNumber = current.ChopaiNumber
	}
	return next
}
