package evaluation

import (
	"github.com/nvr-ai/go-eval/common"
)

// ClassificationClassMetrics carries one class's precision, recall, F1,
// and support (the number of actual instances).
type ClassificationClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationResult is the classification evaluation payload.
type ClassificationResult struct {
	Accuracy        float64                               `json:"accuracy"`
	MacroF1         float64                               `json:"macro_f1"`
	WeightedF1      float64                               `json:"weighted_f1"`
	PerClass        map[string]ClassificationClassMetrics `json:"per_class_metrics"`
	ConfusionMatrix [][]int                               `json:"confusion_matrix"`
	ConfusionLabels []string                              `json:"confusion_matrix_labels"`
	ConfThreshold   float32                               `json:"conf_threshold"`

	// Unscored counts samples whose predictions all fell below the
	// confidence threshold; they stay outside the matrix.
	Unscored int `json:"unscored"`
}

// EvaluateClassification evaluates single-label predictions directly from
// (ground-truth label, predicted label) pairs. No geometry is involved;
// the box fields on the rows are ignored.
//
// Each sample contributes at most one pair: its ground-truth label
// against the highest-confidence prediction at or above the confidence
// threshold, breaking ties on input order. Per-class precision is
// diagonal over column sum, recall diagonal over row sum, F1 their
// harmonic mean; zero-support classes yield 0, never NaN.
func EvaluateClassification(groundTruths []common.GroundTruth, predictions []common.Prediction, categories []string, params Params) *ClassificationResult {
	labels := classList(categories, groundTruths, predictions)
	matrix := NewConfusionMatrix(labels)

	actualBySample := map[string]string{}
	var sampleOrder []string
	for _, g := range groundTruths {
		if _, ok := actualBySample[g.SampleID]; !ok {
			actualBySample[g.SampleID] = g.Category
			sampleOrder = append(sampleOrder, g.SampleID)
		}
	}

	predictedBySample := map[string]common.Prediction{}
	for _, p := range predictions {
		if p.Confidence < params.ConfThreshold {
			continue
		}
		best, ok := predictedBySample[p.SampleID]
		if !ok || p.Confidence > best.Confidence {
			predictedBySample[p.SampleID] = p
		}
	}

	unscored := 0
	for _, sample := range sampleOrder {
		pred, ok := predictedBySample[sample]
		if !ok {
			unscored++
			continue
		}
		matrix.Add(actualBySample[sample], pred.Category)
	}

	result := &ClassificationResult{
		PerClass:        map[string]ClassificationClassMetrics{},
		ConfusionMatrix: matrix.Rows(),
		ConfusionLabels: matrix.Labels(),
		ConfThreshold:   params.ConfThreshold,
		Unscored:        unscored,
	}

	total := matrix.Total()
	result.Accuracy = safeDiv(float64(matrix.Trace()), float64(total))

	var macroSum, weightedSum float64
	for _, label := range labels {
		diag := float64(matrix.Count(label, label))
		support := matrix.RowSum(label)

		m := ClassificationClassMetrics{Support: support}
		m.Precision = safeDiv(diag, float64(matrix.ColSum(label)))
		m.Recall = safeDiv(diag, float64(support))
		m.F1 = safeDiv(2*m.Precision*m.Recall, m.Precision+m.Recall)
		result.PerClass[label] = m

		macroSum += m.F1
		weightedSum += m.F1 * float64(support)
	}
	result.MacroF1 = safeDiv(macroSum, float64(len(labels)))
	result.WeightedF1 = safeDiv(weightedSum, float64(total))

	return result
}
