// Package matching - Greedy assignment of predictions to ground truth.
package matching

import (
	"sort"

	"github.com/nvr-ai/go-eval/common"
)

// Mode selects which ground-truth boxes are candidates for a prediction.
type Mode int

const (
	// SameCategory restricts candidates to ground truth of the
	// prediction's own category. Used for PR-curve and mAP evaluation.
	SameCategory Mode = iota

	// AnyCategory considers ground truth of every category, which lets
	// error analysis separate "wrong label here" from "nothing here".
	AnyCategory
)

// Options configures a matching pass.
type Options struct {
	// IoUThreshold is the minimum overlap for a prediction to consume a
	// ground-truth box.
	IoUThreshold float32

	// Mode selects same-category or cross-category candidate search.
	Mode Mode
}

// Match pairs one prediction with at most one ground-truth box.
// GroundTruth is nil when the prediction found no candidate at or above
// the threshold.
type Match struct {
	Prediction  common.Prediction
	GroundTruth *common.GroundTruth
	IoU         float32

	// Ignored marks a prediction absorbed by a same-category crowd
	// region. Ignored predictions count as neither TP nor FP.
	Ignored bool
}

// Result holds the outcome of one matching pass.
type Result struct {
	// Matches has exactly one entry per prediction, ordered by
	// descending confidence with original input order as tie-break.
	Matches []Match

	// Unmatched lists every non-crowd ground-truth box that no
	// prediction consumed. These are the false-negative candidates.
	Unmatched []common.GroundTruth
}

// Greedy assigns predictions to ground truth per image in confidence order.
//
// Predictions are visited by descending confidence, breaking ties on
// original input order so that repeated runs over the same rows produce
// identical assignments. Each prediction takes the maximum-IoU unconsumed
// ground-truth box in its own image; if that overlap meets the threshold
// both sides are consumed. This is the standard greedy detection-evaluation
// convention, not a globally optimal assignment.
//
// Crowd ground truth never enters the one-to-one assignment. A prediction
// that fails normal matching but overlaps a same-category crowd region at
// or above the threshold is marked Ignored, and crowd regions are never
// reported as unmatched.
//
// Arguments:
// - groundTruths: Ground-truth boxes, any mix of images and categories.
// - predictions: Predicted boxes for the same image set.
// - opts: Threshold and candidate mode.
//
// Returns:
// - A Result with one Match per prediction plus leftover ground truth.
func Greedy(groundTruths []common.GroundTruth, predictions []common.Prediction, opts Options) Result {
	order := make([]int, len(predictions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return predictions[order[i]].Confidence > predictions[order[j]].Confidence
	})

	consumed := make([]bool, len(groundTruths))
	matches := make([]Match, 0, len(predictions))

	for _, pi := range order {
		pred := predictions[pi]

		bestIdx := -1
		var bestIoU float32
		for gi := range groundTruths {
			gt := &groundTruths[gi]
			if consumed[gi] || gt.IsCrowd || gt.SampleID != pred.SampleID {
				continue
			}
			if opts.Mode == SameCategory && gt.Category != pred.Category {
				continue
			}
			iou := pred.Box.IoU(gt.Box)
			if iou > bestIoU {
				bestIoU = iou
				bestIdx = gi
			}
		}

		if bestIdx >= 0 && bestIoU >= opts.IoUThreshold {
			consumed[bestIdx] = true
			matches = append(matches, Match{
				Prediction:  pred,
				GroundTruth: &groundTruths[bestIdx],
				IoU:         bestIoU,
			})
			continue
		}

		if crowd, iou := crowdCandidate(groundTruths, pred, opts.IoUThreshold); crowd != nil {
			matches = append(matches, Match{
				Prediction:  pred,
				GroundTruth: crowd,
				IoU:         iou,
				Ignored:     true,
			})
			continue
		}

		matches = append(matches, Match{Prediction: pred, IoU: bestIoU})
	}

	var unmatched []common.GroundTruth
	for gi, gt := range groundTruths {
		if !consumed[gi] && !gt.IsCrowd {
			unmatched = append(unmatched, gt)
		}
	}

	return Result{Matches: matches, Unmatched: unmatched}
}

// crowdCandidate finds a same-category crowd region overlapping the
// prediction at or above the threshold. Crowd regions absorb any number
// of predictions, so they are never consumed.
func crowdCandidate(groundTruths []common.GroundTruth, pred common.Prediction, threshold float32) (*common.GroundTruth, float32) {
	bestIdx := -1
	var bestIoU float32
	for gi := range groundTruths {
		gt := &groundTruths[gi]
		if !gt.IsCrowd || gt.SampleID != pred.SampleID || gt.Category != pred.Category {
			continue
		}
		iou := pred.Box.IoU(gt.Box)
		if iou >= threshold && iou > bestIoU {
			bestIoU = iou
			bestIdx = gi
		}
	}
	if bestIdx < 0 {
		return nil, 0
	}
	return &groundTruths[bestIdx], bestIoU
}
