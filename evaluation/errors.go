package evaluation

import (
	"github.com/nvr-ai/go-eval/common"
	"github.com/nvr-ai/go-eval/matching"
)

// ErrorType keys the four-way error taxonomy exposed to the debugging UI.
type ErrorType string

const (
	// ErrorTypeTP is a prediction matched to same-category ground truth.
	ErrorTypeTP ErrorType = "tp"
	// ErrorTypeHardFP is a confident prediction with no overlapping
	// ground truth of any category.
	ErrorTypeHardFP ErrorType = "hard_fp"
	// ErrorTypeLabelError is correct localization with the wrong category.
	ErrorTypeLabelError ErrorType = "label_error"
	// ErrorTypeFN is ground truth no prediction claimed.
	ErrorTypeFN ErrorType = "fn"
)

// MaxExemplarSamples caps the sample-id exemplar list kept per error
// type. Exemplars drive the debugging UI; the full counts are exact.
const MaxExemplarSamples = 50

// ErrorSummary holds the four taxonomy counts.
type ErrorSummary struct {
	TruePositives      int `json:"true_positives"`
	HardFalsePositives int `json:"hard_false_positives"`
	LabelErrors        int `json:"label_errors"`
	FalseNegatives     int `json:"false_negatives"`
}

// ErrorReport is the error-analysis payload: overall counts, per-class
// roll-ups, and bounded exemplar sample ids per error type.
type ErrorReport struct {
	Summary       ErrorSummary            `json:"summary"`
	PerClass      map[string]ErrorSummary `json:"per_class"`
	SamplesByType map[ErrorType][]string  `json:"samples_by_type"`
	IoUThreshold  float32                 `json:"iou_threshold"`
	ConfThreshold float32                 `json:"conf_threshold"`
}

// CategorizeErrors buckets every prediction and ground-truth box at one
// operating point. Predictions below the confidence threshold are
// dropped, then a single cross-category greedy matching pass runs per
// image; considering other-category ground truth is what separates
// "wrong label here" from "nothing here".
//
// Per-class accounting: true positives, label errors, and false
// negatives roll up under the ground-truth category; hard false
// positives under the predicted category. Every non-crowd ground truth
// and every non-ignored kept prediction lands in exactly one bucket.
//
// Arguments:
// - groundTruths: All ground-truth boxes in deterministic order.
// - predictions: All predictions of the evaluated source.
// - params: The (iou_threshold, conf_threshold) operating point.
//
// Returns:
// - The error report. Recomputed from scratch per call; nothing persists.
func CategorizeErrors(groundTruths []common.GroundTruth, predictions []common.Prediction, params Params) *ErrorReport {
	report := &ErrorReport{
		PerClass: map[string]ErrorSummary{},
		SamplesByType: map[ErrorType][]string{
			ErrorTypeTP:         {},
			ErrorTypeHardFP:     {},
			ErrorTypeLabelError: {},
			ErrorTypeFN:         {},
		},
		IoUThreshold:  params.IoUThreshold,
		ConfThreshold: params.ConfThreshold,
	}

	kept := make([]common.Prediction, 0, len(predictions))
	for _, p := range predictions {
		if p.Confidence >= params.ConfThreshold {
			kept = append(kept, p)
		}
	}

	res := matching.Greedy(groundTruths, kept, matching.Options{
		IoUThreshold: params.IoUThreshold,
		Mode:         matching.AnyCategory,
	})

	seen := map[ErrorType]map[string]bool{
		ErrorTypeTP:         {},
		ErrorTypeHardFP:     {},
		ErrorTypeLabelError: {},
		ErrorTypeFN:         {},
	}

	for _, m := range res.Matches {
		switch {
		case m.Ignored:
			// Crowd-absorbed: neither a hit nor an error.
		case m.GroundTruth == nil:
			report.Summary.HardFalsePositives++
			cls := report.PerClass[m.Prediction.Category]
			cls.HardFalsePositives++
			report.PerClass[m.Prediction.Category] = cls
			report.addExemplar(seen, ErrorTypeHardFP, m.Prediction.SampleID)
		case m.GroundTruth.Category == m.Prediction.Category:
			report.Summary.TruePositives++
			cls := report.PerClass[m.GroundTruth.Category]
			cls.TruePositives++
			report.PerClass[m.GroundTruth.Category] = cls
			report.addExemplar(seen, ErrorTypeTP, m.Prediction.SampleID)
		default:
			report.Summary.LabelErrors++
			cls := report.PerClass[m.GroundTruth.Category]
			cls.LabelErrors++
			report.PerClass[m.GroundTruth.Category] = cls
			report.addExemplar(seen, ErrorTypeLabelError, m.Prediction.SampleID)
		}
	}

	for _, g := range res.Unmatched {
		report.Summary.FalseNegatives++
		cls := report.PerClass[g.Category]
		cls.FalseNegatives++
		report.PerClass[g.Category] = cls
		report.addExemplar(seen, ErrorTypeFN, g.SampleID)
	}

	return report
}

// addExemplar records a sample id for an error type, deduplicated and
// capped at MaxExemplarSamples in first-seen order.
func (r *ErrorReport) addExemplar(seen map[ErrorType]map[string]bool, t ErrorType, sampleID string) {
	if seen[t][sampleID] || len(r.SamplesByType[t]) >= MaxExemplarSamples {
		return
	}
	seen[t][sampleID] = true
	r.SamplesByType[t] = append(r.SamplesByType[t], sampleID)
}
