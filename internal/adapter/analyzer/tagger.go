package analyzer

import (
	"regexp"
	"strings"
)

const (
	UnknownOrganism = "Unknown"
	NoCondition     = "Not specified"
)

// Tags are the subject tags inferred for a document.
type Tags struct {
	OrganismName string
	Condition    string
}

// TagInferrer guesses the studied organism and experimental condition of a
// document from its text. It is best-effort enrichment of chunk metadata;
// retrieval correctness does not depend on it.
type TagInferrer struct {
	organisms  []*regexp.Regexp
	conditions []*regexp.Regexp
}

// NewTagInferrer creates a TagInferrer with the built-in model organisms and
// space-biology conditions.
func NewTagInferrer() *TagInferrer {
	organisms := []string{
		`(?i)(Saccharomyces cerevisiae)`,
		`(?i)(Drosophila melanogaster)`,
		`(?i)(Arabidopsis thaliana)`,
		`(?i)(Caenorhabditis elegans)`,
		`(?i)(Danio rerio)`,
		`(?i)(Mus musculus)`,
		`(?i)(Escherichia coli)`,
		`(?i)\b(E\.? ?coli)\b`,
		// Binomial names are capitalized genus + lowercase epithet; matched
		// case-sensitively so ordinary word pairs are not taken for species.
		`\b([A-Z][a-z]{2,} [a-z]{3,})\b`,
	}
	conditions := []string{
		`microgravity`,
		`radiation`,
		`temperature`,
		`hypoxia`,
		`hypergravity`,
		`space environment`,
		`zero gravity`,
		`cosmic radiation`,
		`thermal stress`,
		`oxidative stress`,
	}

	t := &TagInferrer{}
	for _, p := range organisms {
		t.organisms = append(t.organisms, regexp.MustCompile(p))
	}
	for _, c := range conditions {
		t.conditions = append(t.conditions, regexp.MustCompile(`(?i)(`+c+`)`))
	}
	return t
}

// Infer returns the first organism and first condition pattern that match,
// in priority order, or the Unknown / Not specified defaults.
func (t *TagInferrer) Infer(text string) Tags {
	tags := Tags{
		OrganismName: UnknownOrganism,
		Condition:    NoCondition,
	}

	for _, re := range t.organisms {
		if m := re.FindStringSubmatch(text); m != nil {
			tags.OrganismName = m[1]
			break
		}
	}

	for _, re := range t.conditions {
		if m := re.FindStringSubmatch(text); m != nil {
			tags.Condition = strings.ToLower(m[1])
			break
		}
	}

	return tags
}
