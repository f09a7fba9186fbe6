package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectionResultForReport(t *testing.T) *Result {
	t.Helper()
	result, err := Run(detectionInput())
	require.NoError(t, err)
	return result
}

// TestGenerateMarkdownDetection verifies the detection report carries the
// headline metrics, the per-class table, and the confusion grid.
func TestGenerateMarkdownDetection(t *testing.T) {
	md := GenerateMarkdown(detectionResultForReport(t))

	assert.Contains(t, md, "# Detection Evaluation")
	assert.Contains(t, md, "mAP@50")
	assert.Contains(t, md, "| cat |")
	assert.Contains(t, md, "Confusion matrix")
}

// TestGenerateMarkdownClassification verifies the classification report.
func TestGenerateMarkdownClassification(t *testing.T) {
	input := detectionInput()
	input.Type = TypeClassification
	result, err := Run(input)
	require.NoError(t, err)

	md := GenerateMarkdown(result)

	assert.Contains(t, md, "# Classification Evaluation")
	assert.Contains(t, md, "Accuracy")
	assert.Contains(t, md, "Macro F1")
	assert.Contains(t, md, "| cat |")
}

// TestGenerateCSV verifies the CSV layout for both result shapes.
func TestGenerateCSV(t *testing.T) {
	csv := GenerateCSV(detectionResultForReport(t))
	assert.Contains(t, csv, "map50,1.000000")
	assert.Contains(t, csv, "class,ap50")

	input := detectionInput()
	input.Type = TypeClassification
	result, err := Run(input)
	require.NoError(t, err)
	csv = GenerateCSV(result)
	assert.Contains(t, csv, "accuracy,1.000000")
	assert.Contains(t, csv, "class,precision")
}

// TestExport verifies file export round-trips and rejects unsupported
// formats.
func TestExport(t *testing.T) {
	result := detectionResultForReport(t)
	dir := t.TempDir()

	tests := []struct {
		format  string
		wantErr bool
	}{
		{format: "json"},
		{format: "csv"},
		{format: "markdown"},
		{format: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path := filepath.Join(dir, "report."+tt.format)
			err := Export(result, tt.format, path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotEmpty(t, data)
		})
	}
}

// TestGenerateErrorsMarkdown verifies the error-analysis report layout.
func TestGenerateErrorsMarkdown(t *testing.T) {
	report, err := RunErrors(detectionInput())
	require.NoError(t, err)

	md := GenerateErrorsMarkdown(report)

	assert.Contains(t, md, "# Error Analysis")
	assert.Contains(t, md, "True positives | 1")
	assert.Contains(t, md, "| cat | 1 | 0 | 0 | 0 |")
}
