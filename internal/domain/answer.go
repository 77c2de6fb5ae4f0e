package domain

// SynthesizedAnswer is the structured answer returned for a query. All fields
// are always populated; see usecase.NormalizeAnswer.
type SynthesizedAnswer struct {
	OrganismName      string            `json:"organism_name"`
	Condition         string            `json:"condition"`
	Description       string            `json:"description"`
	ScientificDetails ScientificDetails `json:"scientific_details"`
	RelevantChunks    []string          `json:"relevant_chunks"`

	// FallbackReason names the degrade path that produced the answer, or is
	// empty when the model reply was parsed.
	FallbackReason string `json:"-"`
}

type ScientificDetails struct {
	Classification       string   `json:"classification"`
	ResponseMechanisms   []string `json:"response_mechanisms"`
	ExperimentalFindings string   `json:"experimental_findings"`
	Applications         string   `json:"applications"`
}

// IsFallback reports whether the answer came from a degrade path.
func (a SynthesizedAnswer) IsFallback() bool {
	return a.FallbackReason != ""
}
