package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Export writes an evaluation result to a file in the requested format.
//
// Arguments:
// - result: Evaluation result to export.
// - format: Export format ("json", "csv", "markdown").
// - filepath: Destination file path.
//
// Returns:
// - Error if the format is unsupported or the write fails, nil otherwise.
//
// @example
// err := evaluation.Export(result, "markdown", "./reports/eval.md")
func Export(result *Result, format, filepath string) error {
	var data []byte
	var err error

	switch strings.ToLower(format) {
	case "json":
		data, err = json.MarshalIndent(result, "", "  ")
	case "csv":
		data = []byte(GenerateCSV(result))
	case "markdown":
		data = []byte(GenerateMarkdown(result))
	default:
		return errors.Errorf("unsupported format: %s", format)
	}

	if err != nil {
		return errors.Wrapf(err, "failed to generate %s", format)
	}

	return os.WriteFile(filepath, data, 0o644)
}

// GenerateMarkdown creates a Markdown representation of the result.
func GenerateMarkdown(result *Result) string {
	var md strings.Builder

	switch result.Type {
	case TypeDetection:
		writeDetectionMarkdown(&md, result.Detection)
	case TypeClassification:
		writeClassificationMarkdown(&md, result.Classification)
	}

	return md.String()
}

func writeDetectionMarkdown(md *strings.Builder, det *DetectionResult) {
	md.WriteString("# Detection Evaluation\n\n")
	md.WriteString(fmt.Sprintf("**Operating point:** IoU %.2f, confidence %.2f\n\n",
		det.IoUThreshold, det.ConfThreshold))

	md.WriteString("## mAP\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| mAP@50 | %.4f |\n", det.APMetrics.MAP50))
	md.WriteString(fmt.Sprintf("| mAP@75 | %.4f |\n", det.APMetrics.MAP75))
	md.WriteString(fmt.Sprintf("| mAP@50:95 | %.4f |\n\n", det.APMetrics.MAP5095))

	md.WriteString("## Per-class metrics\n\n")
	md.WriteString("| Class | AP@50 | AP@75 | AP@50:95 | Precision | Recall | F1 | GT | Pred |\n")
	md.WriteString("|-------|-------|-------|----------|-----------|--------|----|----|------|\n")
	for _, class := range sortedMetricClasses(det.PerClass) {
		m := det.PerClass[class]
		md.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f | %d | %d |\n",
			class, m.AP50, m.AP75, m.AP5095, m.Precision, m.Recall, m.F1,
			m.GroundTruths, m.Predictions))
	}
	md.WriteString("\n")

	writeConfusionMarkdown(md, det.ConfusionLabels, det.ConfusionMatrix)
}

func writeClassificationMarkdown(md *strings.Builder, cls *ClassificationResult) {
	md.WriteString("# Classification Evaluation\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Accuracy | %.4f |\n", cls.Accuracy))
	md.WriteString(fmt.Sprintf("| Macro F1 | %.4f |\n", cls.MacroF1))
	md.WriteString(fmt.Sprintf("| Weighted F1 | %.4f |\n\n", cls.WeightedF1))

	md.WriteString("## Per-class metrics\n\n")
	md.WriteString("| Class | Precision | Recall | F1 | Support |\n")
	md.WriteString("|-------|-----------|--------|----|--------|\n")
	classes := make([]string, 0, len(cls.PerClass))
	for c := range cls.PerClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	for _, class := range classes {
		m := cls.PerClass[class]
		md.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %.4f | %d |\n",
			class, m.Precision, m.Recall, m.F1, m.Support))
	}
	md.WriteString("\n")

	writeConfusionMarkdown(md, cls.ConfusionLabels, cls.ConfusionMatrix)
}

// writeConfusionMarkdown renders the matrix as a grid with actual
// classes on rows and predicted classes on columns.
func writeConfusionMarkdown(md *strings.Builder, labels []string, matrix [][]int) {
	if len(labels) == 0 {
		return
	}
	md.WriteString("## Confusion matrix (rows=actual, cols=predicted)\n\n")
	md.WriteString("| |")
	for _, label := range labels {
		md.WriteString(fmt.Sprintf(" %s |", label))
	}
	md.WriteString("\n|---|")
	for range labels {
		md.WriteString("---|")
	}
	md.WriteString("\n")
	for i, label := range labels {
		md.WriteString(fmt.Sprintf("| **%s** |", label))
		for j := range labels {
			md.WriteString(fmt.Sprintf(" %d |", matrix[i][j]))
		}
		md.WriteString("\n")
	}
	md.WriteString("\n")
}

// GenerateCSV creates a CSV representation of the result's headline and
// per-class metrics.
func GenerateCSV(result *Result) string {
	var csv strings.Builder

	switch result.Type {
	case TypeDetection:
		det := result.Detection
		csv.WriteString("metric,value\n")
		csv.WriteString(fmt.Sprintf("map50,%.6f\n", det.APMetrics.MAP50))
		csv.WriteString(fmt.Sprintf("map75,%.6f\n", det.APMetrics.MAP75))
		csv.WriteString(fmt.Sprintf("map50_95,%.6f\n", det.APMetrics.MAP5095))
		csv.WriteString("\nclass,ap50,ap75,ap50_95,precision,recall,f1,ground_truths,predictions\n")
		for _, class := range sortedMetricClasses(det.PerClass) {
			m := det.PerClass[class]
			csv.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%d,%d\n",
				class, m.AP50, m.AP75, m.AP5095, m.Precision, m.Recall, m.F1,
				m.GroundTruths, m.Predictions))
		}
	case TypeClassification:
		cls := result.Classification
		csv.WriteString("metric,value\n")
		csv.WriteString(fmt.Sprintf("accuracy,%.6f\n", cls.Accuracy))
		csv.WriteString(fmt.Sprintf("macro_f1,%.6f\n", cls.MacroF1))
		csv.WriteString(fmt.Sprintf("weighted_f1,%.6f\n", cls.WeightedF1))
		csv.WriteString("\nclass,precision,recall,f1,support\n")
		classes := make([]string, 0, len(cls.PerClass))
		for c := range cls.PerClass {
			classes = append(classes, c)
		}
		sort.Strings(classes)
		for _, class := range classes {
			m := cls.PerClass[class]
			csv.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.6f,%d\n",
				class, m.Precision, m.Recall, m.F1, m.Support))
		}
	}

	return csv.String()
}

// GenerateErrorsMarkdown creates a Markdown representation of an error
// report for the debugging workflow.
func GenerateErrorsMarkdown(report *ErrorReport) string {
	var md strings.Builder

	md.WriteString("# Error Analysis\n\n")
	md.WriteString(fmt.Sprintf("**Operating point:** IoU %.2f, confidence %.2f\n\n",
		report.IoUThreshold, report.ConfThreshold))

	md.WriteString("| Error type | Count |\n")
	md.WriteString("|------------|-------|\n")
	md.WriteString(fmt.Sprintf("| True positives | %d |\n", report.Summary.TruePositives))
	md.WriteString(fmt.Sprintf("| Hard false positives | %d |\n", report.Summary.HardFalsePositives))
	md.WriteString(fmt.Sprintf("| Label errors | %d |\n", report.Summary.LabelErrors))
	md.WriteString(fmt.Sprintf("| False negatives | %d |\n\n", report.Summary.FalseNegatives))

	md.WriteString("## Per-class breakdown\n\n")
	md.WriteString("| Class | TP | Hard FP | Label errors | FN |\n")
	md.WriteString("|-------|----|---------|--------------|----|\n")
	classes := make([]string, 0, len(report.PerClass))
	for c := range report.PerClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	for _, class := range classes {
		s := report.PerClass[class]
		md.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n",
			class, s.TruePositives, s.HardFalsePositives, s.LabelErrors, s.FalseNegatives))
	}

	return md.String()
}

func sortedMetricClasses(perClass map[string]ClassMetrics) []string {
	classes := make([]string, 0, len(perClass))
	for c := range perClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}
