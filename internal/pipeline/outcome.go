package pipeline

import (
	"github.com/reelfeed/reelfeed/internal/domain"
)

// OutcomeKind classifies what happened to one candidate.
type OutcomeKind int

// Outcome kinds.
const (
	OutcomeOK       OutcomeKind = iota // normalized and passed the filter
	OutcomeFiltered                    // unusable payload or policy rejection
	OutcomeNotFound                    // upstream 404: skipped, not an error
	OutcomeFailed                      // fetch failed after retries
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one candidate. Exactly one of Doc,
// Reason or Err is meaningful depending on Kind.
type Outcome struct {
	Candidate domain.Candidate
	Kind      OutcomeKind
	Doc       *domain.Document
	Reason    string
	Err       error
}

// Tally accumulates outcome counts into a job result.
func Tally(r *domain.JobResult, outcomes []Outcome) {
	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeOK:
			r.Fetched++
		case OutcomeFiltered:
			r.Fetched++
			r.Filtered++
			if r.FilterReasons == nil {
				r.FilterReasons = make(map[string]int)
			}
			r.FilterReasons[o.Reason]++
		case OutcomeNotFound:
			r.NotFound++
		case OutcomeFailed:
			r.ErrorsCount++
		}
	}
}

// Documents returns the documents of OK outcomes in candidate order.
func Documents(outcomes []Outcome) []*domain.Document {
	var docs []*domain.Document
	for _, o := range outcomes {
		if o.Kind == OutcomeOK && o.Doc != nil {
			docs = append(docs, o.Doc)
		}
	}
	return docs
}
