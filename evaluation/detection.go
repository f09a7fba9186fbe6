package evaluation

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-eval/common"
	"github.com/nvr-ai/go-eval/matching"
)

// recallGridSize is the number of recall points AP is interpolated onto,
// the standard 101-point grid (0, 0.01, ..., 1.00).
const recallGridSize = 101

// PRPoint is one point on a precision-recall curve, with the confidence
// at which that operating point is reached.
type PRPoint struct {
	Recall     float64 `json:"recall"`
	Precision  float64 `json:"precision"`
	Confidence float64 `json:"confidence"`
}

// PRCurve is one class's interpolated precision-recall curve. Points are
// non-decreasing in recall and the precision forms a non-increasing
// envelope after interpolation.
type PRCurve struct {
	ClassName string    `json:"class_name"`
	Points    []PRPoint `json:"points"`
	AP        float64   `json:"ap"`
}

// APMetrics are the dataset-level mean average precision values. Each is
// the unweighted mean of per-class AP over classes with at least one
// ground-truth instance; zero-GT classes are excluded from the mean
// rather than scored 0.
type APMetrics struct {
	MAP50   float64 `json:"map50"`
	MAP75   float64 `json:"map75"`
	MAP5095 float64 `json:"map50_95"`
}

// ClassMetrics carries one class's AP values plus precision/recall/F1 at
// the requested operating point.
type ClassMetrics struct {
	AP50         float64 `json:"ap50"`
	AP75         float64 `json:"ap75"`
	AP5095       float64 `json:"ap50_95"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1"`
	GroundTruths int     `json:"ground_truths"`
	Predictions  int     `json:"predictions"`
}

// DetectionResult is the detection evaluation payload exposed to the UI.
type DetectionResult struct {
	// PRCurves is keyed by class name plus the synthesized "all" curve.
	PRCurves        map[string]PRCurve      `json:"pr_curves"`
	APMetrics       APMetrics               `json:"ap_metrics"`
	PerClass        map[string]ClassMetrics `json:"per_class_metrics"`
	ConfusionMatrix [][]int                 `json:"confusion_matrix"`
	ConfusionLabels []string                `json:"confusion_matrix_labels"`
	IoUThreshold    float32                 `json:"iou_threshold"`
	ConfThreshold   float32                 `json:"conf_threshold"`
}

// AllCurveName keys the synthesized aggregate curve in PRCurves. It backs
// a single plot line and never participates in mAP.
const AllCurveName = "all"

// EvaluateDetection builds PR curves, AP metrics, operating-point metrics,
// and the detection confusion matrix for one prediction run.
//
// For every class and IoU threshold the greedy matcher runs once across
// all images, predictions are walked by descending confidence
// accumulating TP/FP, and the cumulative precision/recall pairs are
// interpolated onto the 101-point recall grid. The exposed per-class
// curves are the ones at the operating IoU threshold.
//
// Arguments:
// - groundTruths: All ground-truth boxes in deterministic order.
// - predictions: All predictions of the evaluated source, unfiltered by
//   confidence (PR curves sweep it).
// - categories: The dataset's full category set; zero-instance classes
//   stay reportable.
// - params: Thresholds and the mAP sweep.
//
// Returns:
// - The detection result. Degenerate data yields zero-valued metrics,
//   never an error.
func EvaluateDetection(groundTruths []common.GroundTruth, predictions []common.Prediction, categories []string, params Params) *DetectionResult {
	sweep := params.IoUSweep
	if len(sweep) == 0 {
		sweep = DefaultIoUSweep()
	}
	thresholds := withRequiredThresholds(sweep, 0.5, 0.75, params.IoUThreshold)

	classes := classList(categories, groundTruths, predictions)
	gtByClass := map[string][]common.GroundTruth{}
	for _, g := range groundTruths {
		gtByClass[g.Category] = append(gtByClass[g.Category], g)
	}
	predByClass := map[string][]common.Prediction{}
	for _, p := range predictions {
		predByClass[p.Category] = append(predByClass[p.Category], p)
	}

	result := &DetectionResult{
		PRCurves:      map[string]PRCurve{},
		PerClass:      map[string]ClassMetrics{},
		IoUThreshold:  params.IoUThreshold,
		ConfThreshold: params.ConfThreshold,
	}

	var scored []PRCurve
	var sum50, sum75, sum5095 float64
	scoredClasses := 0

	for _, class := range classes {
		classGTs := gtByClass[class]
		classPreds := predByClass[class]
		npos := countNonCrowd(classGTs)

		metrics := ClassMetrics{
			GroundTruths: npos,
			Predictions:  len(classPreds),
		}

		aps := make([]float64, len(thresholds))
		var operating PRCurve
		for ti, thr := range thresholds {
			curve := classCurve(class, classGTs, classPreds, npos, thr)
			aps[ti] = curve.AP
			if approxEqual(thr, params.IoUThreshold) {
				operating = curve
			}
		}

		metrics.AP50 = apAt(thresholds, aps, 0.5)
		metrics.AP75 = apAt(thresholds, aps, 0.75)
		metrics.AP5095 = meanAP(thresholds, aps, sweep)
		metrics.Precision, metrics.Recall, metrics.F1 =
			operatingPoint(classGTs, classPreds, params)

		result.PRCurves[class] = operating
		result.PerClass[class] = metrics

		if npos > 0 {
			scored = append(scored, operating)
			sum50 += metrics.AP50
			sum75 += metrics.AP75
			sum5095 += metrics.AP5095
			scoredClasses++
		}
	}

	if scoredClasses > 0 {
		result.APMetrics = APMetrics{
			MAP50:   sum50 / float64(scoredClasses),
			MAP75:   sum75 / float64(scoredClasses),
			MAP5095: sum5095 / float64(scoredClasses),
		}
	}
	result.PRCurves[AllCurveName] = SynthesizeAllCurve(scored)

	matrix := detectionConfusion(groundTruths, predictions, classes, params)
	result.ConfusionMatrix = matrix.Rows()
	result.ConfusionLabels = matrix.Labels()

	return result
}

// classCurve computes one class's interpolated PR curve at one IoU
// threshold. Classes with no ground truth get an all-zero curve.
func classCurve(class string, groundTruths []common.GroundTruth, predictions []common.Prediction, npos int, threshold float32) PRCurve {
	if npos == 0 {
		return zeroCurve(class)
	}

	res := matching.Greedy(groundTruths, predictions, matching.Options{
		IoUThreshold: threshold,
		Mode:         matching.SameCategory,
	})

	var precisions, recalls, confidences []float64
	tp, fp := 0, 0
	for _, m := range res.Matches {
		if m.Ignored {
			continue
		}
		if m.GroundTruth != nil {
			tp++
		} else {
			fp++
		}
		precisions = append(precisions, float64(tp)/float64(tp+fp))
		recalls = append(recalls, float64(tp)/float64(npos))
		confidences = append(confidences, float64(m.Prediction.Confidence))
	}

	points, ap := interpolate101(precisions, recalls, confidences)
	return PRCurve{ClassName: class, Points: points, AP: ap}
}

// interpolate101 projects cumulative precision/recall pairs onto the
// 101-point recall grid. At each grid recall the interpolated precision is
// the maximum precision at any recall at or beyond it, which makes the
// sequence a non-increasing envelope, matching standard 101-point AP.
func interpolate101(precisions, recalls, confidences []float64) ([]PRPoint, float64) {
	// Monotone envelope from the right.
	for i := len(precisions) - 2; i >= 0; i-- {
		if precisions[i] < precisions[i+1] {
			precisions[i] = precisions[i+1]
		}
	}

	points := make([]PRPoint, recallGridSize)
	sum := 0.0
	for k := 0; k < recallGridSize; k++ {
		r := float64(k) / float64(recallGridSize-1)
		idx := sort.SearchFloat64s(recalls, r)
		point := PRPoint{Recall: r}
		if idx < len(precisions) {
			point.Precision = precisions[idx]
			point.Confidence = confidences[idx]
		}
		points[k] = point
		sum += point.Precision
	}
	return points, sum / float64(recallGridSize)
}

// SynthesizeAllCurve averages per-class curves into the single aggregate
// plot line: mean precision and mean confidence at each grid point, mean
// AP overall. It feeds one chart and never participates in mAP.
func SynthesizeAllCurve(curves []PRCurve) PRCurve {
	if len(curves) == 0 {
		return zeroCurve(AllCurveName)
	}

	points := make([]PRPoint, recallGridSize)
	apSum := 0.0
	for k := 0; k < recallGridSize; k++ {
		var psum, csum float64
		for _, c := range curves {
			psum += c.Points[k].Precision
			csum += c.Points[k].Confidence
		}
		points[k] = PRPoint{
			Recall:     float64(k) / float64(recallGridSize-1),
			Precision:  psum / float64(len(curves)),
			Confidence: csum / float64(len(curves)),
		}
	}
	for _, c := range curves {
		apSum += c.AP
	}
	return PRCurve{
		ClassName: AllCurveName,
		Points:    points,
		AP:        apSum / float64(len(curves)),
	}
}

// operatingPoint computes precision/recall/F1 for one class at the
// requested (iou, conf) operating point.
func operatingPoint(groundTruths []common.GroundTruth, predictions []common.Prediction, params Params) (precision, recall, f1 float64) {
	kept := make([]common.Prediction, 0, len(predictions))
	for _, p := range predictions {
		if p.Confidence >= params.ConfThreshold {
			kept = append(kept, p)
		}
	}

	res := matching.Greedy(groundTruths, kept, matching.Options{
		IoUThreshold: params.IoUThreshold,
		Mode:         matching.SameCategory,
	})

	tp, fp := 0, 0
	for _, m := range res.Matches {
		if m.Ignored {
			continue
		}
		if m.GroundTruth != nil {
			tp++
		} else {
			fp++
		}
	}
	fn := len(res.Unmatched)

	precision = safeDiv(float64(tp), float64(tp+fp))
	recall = safeDiv(float64(tp), float64(tp+fn))
	f1 = safeDiv(2*precision*recall, precision+recall)
	return precision, recall, f1
}

// detectionConfusion builds the category confusion matrix from the
// operating-point cross-category matching: diagonal on true positives,
// off-diagonal on label errors. Unmatched boxes stay outside the matrix.
func detectionConfusion(groundTruths []common.GroundTruth, predictions []common.Prediction, classes []string, params Params) *ConfusionMatrix {
	matrix := NewConfusionMatrix(classes)

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
	for _, m := range res.Matches {
		if m.Ignored || m.GroundTruth == nil {
			continue
		}
		matrix.Add(m.GroundTruth.Category, m.Prediction.Category)
	}
	return matrix
}

func zeroCurve(class string) PRCurve {
	points := make([]PRPoint, recallGridSize)
	for k := range points {
		points[k].Recall = float64(k) / float64(recallGridSize-1)
	}
	return PRCurve{ClassName: class, Points: points}
}

func countNonCrowd(groundTruths []common.GroundTruth) int {
	n := 0
	for _, g := range groundTruths {
		if !g.IsCrowd {
			n++
		}
	}
	return n
}

// classList merges the declared category set with any category found in
// the data, preserving declared order and sorting the rest.
func classList(categories []string, groundTruths []common.GroundTruth, predictions []common.Prediction) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	var extra []string
	for _, g := range groundTruths {
		if !seen[g.Category] {
			seen[g.Category] = true
			extra = append(extra, g.Category)
		}
	}
	for _, p := range predictions {
		if !seen[p.Category] {
			seen[p.Category] = true
			extra = append(extra, p.Category)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// withRequiredThresholds appends thresholds the evaluator always reports
// (0.50, 0.75 and the operating threshold) if the sweep lacks them.
func withRequiredThresholds(sweep []float32, required ...float32) []float32 {
	out := append([]float32(nil), sweep...)
	for _, req := range required {
		found := false
		for _, t := range out {
			if approxEqual(t, req) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, req)
		}
	}
	return out
}

func apAt(thresholds []float32, aps []float64, target float32) float64 {
	for i, t := range thresholds {
		if approxEqual(t, target) {
			return aps[i]
		}
	}
	return 0
}

// meanAP averages the AP values belonging to the sweep thresholds.
func meanAP(thresholds []float32, aps []float64, sweep []float32) float64 {
	sum, n := 0.0, 0
	for _, s := range sweep {
		for i, t := range thresholds {
			if approxEqual(t, s) {
				sum += aps[i]
				n++
				break
			}
		}
	}
	return safeDiv(sum, float64(n))
}

// approxEqual compares float32 thresholds with a tolerance well below the
// 0.05 sweep step, so float accumulation never splits a threshold in two.
func approxEqual(a, b float32) bool {
	return math32.Abs(a-b) < 1e-4
}

// safeDiv is the single place ratio division-by-zero is defined as 0.
func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
