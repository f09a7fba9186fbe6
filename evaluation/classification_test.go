package evaluation

import (
	"testing"

	"github.com/nvr-ai/go-eval/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func label(sample, category string) common.GroundTruth {
	return common.GroundTruth{SampleID: sample, Category: category}
}

func predicted(sample, category string, conf float32) common.Prediction {
	return common.Prediction{SampleID: sample, Category: category, Confidence: conf}
}

// TestEvaluateClassificationBasic verifies the canonical three-sample
// case: GT [cat, dog, cat] against predictions [cat, cat, cat].
func TestEvaluateClassificationBasic(t *testing.T) {
	gts := []common.GroundTruth{
		label("s1", "cat"),
		label("s2", "dog"),
		label("s3", "cat"),
	}
	preds := []common.Prediction{
		predicted("s1", "cat", 0.9),
		predicted("s2", "cat", 0.8),
		predicted("s3", "cat", 0.7),
	}

	result := EvaluateClassification(gts, preds, []string{"cat", "dog"}, DefaultParams())

	require.Equal(t, []string{"cat", "dog"}, result.ConfusionLabels)
	assert.Equal(t, []int{2, 0}, result.ConfusionMatrix[0], "cat row")
	assert.Equal(t, []int{1, 0}, result.ConfusionMatrix[1], "dog row")

	assert.InDelta(t, 2.0/3.0, result.Accuracy, 1e-9)
	assert.InDelta(t, 0.0, result.PerClass["dog"].Recall, 1e-9)
	assert.InDelta(t, 0.0, result.PerClass["dog"].Precision, 1e-9,
		"zero-denominator precision is defined as 0, never NaN")
	assert.Equal(t, 1, result.PerClass["dog"].Support)
	assert.Equal(t, 2, result.PerClass["cat"].Support)
}

// TestEvaluateClassificationRowSumIsSupport verifies the matrix row-sum
// identity for every class.
func TestEvaluateClassificationRowSumIsSupport(t *testing.T) {
	gts := []common.GroundTruth{
		label("s1", "cat"), label("s2", "cat"), label("s3", "dog"),
		label("s4", "bird"), label("s5", "bird"), label("s6", "bird"),
	}
	preds := []common.Prediction{
		predicted("s1", "cat", 0.9), predicted("s2", "dog", 0.9),
		predicted("s3", "dog", 0.9), predicted("s4", "bird", 0.9),
		predicted("s5", "cat", 0.9), predicted("s6", "bird", 0.9),
	}

	result := EvaluateClassification(gts, preds, []string{"bird", "cat", "dog"}, DefaultParams())

	for i, class := range result.ConfusionLabels {
		rowSum := 0
		for _, v := range result.ConfusionMatrix[i] {
			rowSum += v
		}
		assert.Equal(t, result.PerClass[class].Support, rowSum,
			"row %s sum must equal its support", class)
	}
}

// TestEvaluateClassificationF1Aggregates verifies macro F1 averages all
// classes equally while weighted F1 follows support.
func TestEvaluateClassificationF1Aggregates(t *testing.T) {
	gts := []common.GroundTruth{
		label("s1", "cat"), label("s2", "cat"), label("s3", "cat"),
		label("s4", "dog"),
	}
	preds := []common.Prediction{
		predicted("s1", "cat", 0.9), predicted("s2", "cat", 0.9),
		predicted("s3", "cat", 0.9), predicted("s4", "dog", 0.9),
	}

	result := EvaluateClassification(gts, preds, []string{"cat", "dog"}, DefaultParams())

	// Both classes are perfect here.
	assert.InDelta(t, 1.0, result.MacroF1, 1e-9)
	assert.InDelta(t, 1.0, result.WeightedF1, 1e-9)
	assert.InDelta(t, 1.0, result.Accuracy, 1e-9)
}

// TestEvaluateClassificationTopConfidenceWins verifies that the highest
// confidence prediction represents its sample.
func TestEvaluateClassificationTopConfidenceWins(t *testing.T) {
	gts := []common.GroundTruth{label("s1", "cat")}
	preds := []common.Prediction{
		predicted("s1", "dog", 0.4),
		predicted("s1", "cat", 0.8),
	}

	result := EvaluateClassification(gts, preds, []string{"cat", "dog"}, DefaultParams())

	assert.InDelta(t, 1.0, result.Accuracy, 1e-9)
}

// TestEvaluateClassificationUnscoredSamples verifies that samples whose
// predictions all fall below the confidence threshold stay outside the
// matrix and are surfaced as a count.
func TestEvaluateClassificationUnscoredSamples(t *testing.T) {
	gts := []common.GroundTruth{label("s1", "cat"), label("s2", "dog")}
	preds := []common.Prediction{
		predicted("s1", "cat", 0.9),
		predicted("s2", "dog", 0.05),
	}

	result := EvaluateClassification(gts, preds, []string{"cat", "dog"}, DefaultParams())

	assert.Equal(t, 1, result.Unscored)
	assert.Equal(t, 0, result.PerClass["dog"].Support)
	assert.InDelta(t, 1.0, result.Accuracy, 1e-9)
}

// TestEvaluateClassificationZeroSupportSafe verifies a class with no
// samples at all yields all-zero metrics, never NaN.
func TestEvaluateClassificationZeroSupportSafe(t *testing.T) {
	gts := []common.GroundTruth{label("s1", "cat")}
	preds := []common.Prediction{predicted("s1", "cat", 0.9)}

	result := EvaluateClassification(gts, preds, []string{"cat", "ghost"}, DefaultParams())

	ghost := result.PerClass["ghost"]
	assert.Zero(t, ghost.Precision)
	assert.Zero(t, ghost.Recall)
	assert.Zero(t, ghost.F1)
	assert.Zero(t, ghost.Support)
	assert.False(t, result.MacroF1 != result.MacroF1, "macro F1 must not be NaN")
}
