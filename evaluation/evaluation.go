// Package evaluation - Detection and classification evaluation against
// ground-truth annotations: PR curves, mAP, error taxonomy, confusion
// matrices, and derived class-filtered views.
package evaluation

import (
	"sort"

	"github.com/nvr-ai/go-eval/common"
	"github.com/pkg/errors"
)

// Type discriminates the two evaluation shapes behind the single entry
// point. The implementations are independent; Run branches exactly once.
type Type string

const (
	// TypeDetection evaluates predicted boxes with geometric matching.
	TypeDetection Type = "detection"
	// TypeClassification evaluates single-label predictions, no geometry.
	TypeClassification Type = "classification"
)

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrNoGroundTruth indicates the input carried no ground-truth rows.
	ErrNoGroundTruth = errors.New("evaluation: no ground truth provided")

	// ErrNoPredictions indicates no prediction rows survived source filtering.
	ErrNoPredictions = errors.New("evaluation: no predictions provided")

	// ErrThresholdOutOfRange indicates a threshold outside [0, 1].
	ErrThresholdOutOfRange = errors.New("evaluation: threshold out of range")

	// ErrUnknownType indicates an unrecognized evaluation type tag.
	ErrUnknownType = errors.New("evaluation: unknown evaluation type")
)

// Params holds the tunable knobs for one evaluation run. Out-of-range
// values fail validation; they are never silently clamped.
type Params struct {
	// Source selects which prediction run to evaluate when multiple runs
	// share the dataset. Empty means all prediction rows.
	Source string `json:"source"`

	// IoUThreshold is the operating-point overlap threshold for error
	// analysis and the exposed PR curves.
	IoUThreshold float32 `json:"iou_threshold"`

	// ConfThreshold drops predictions below this confidence at the
	// operating point. PR curves sweep confidence and ignore it.
	ConfThreshold float32 `json:"conf_threshold"`

	// IoUSweep lists the thresholds averaged into map50_95.
	IoUSweep []float32 `json:"iou_sweep,omitempty"`
}

// DefaultIoUSweep returns the standard 0.50:0.05:0.95 threshold range.
func DefaultIoUSweep() []float32 {
	sweep := make([]float32, 10)
	for i := range sweep {
		sweep[i] = 0.5 + 0.05*float32(i)
	}
	return sweep
}

// DefaultParams returns evaluation parameters with conventional defaults.
func DefaultParams() Params {
	return Params{
		IoUThreshold:  0.5,
		ConfThreshold: 0.25,
		IoUSweep:      DefaultIoUSweep(),
	}
}

// ParamsBuilder builds evaluation parameters with a fluent API.
type ParamsBuilder struct {
	params Params
}

// NewParamsBuilder creates a builder seeded with defaults.
func NewParamsBuilder() *ParamsBuilder {
	return &ParamsBuilder{params: DefaultParams()}
}

// WithSource sets the prediction-run source filter.
func (pb *ParamsBuilder) WithSource(source string) *ParamsBuilder {
	pb.params.Source = source
	return pb
}

// WithIoUThreshold sets the operating-point IoU threshold.
func (pb *ParamsBuilder) WithIoUThreshold(threshold float32) *ParamsBuilder {
	pb.params.IoUThreshold = threshold
	return pb
}

// WithConfThreshold sets the operating-point confidence threshold.
func (pb *ParamsBuilder) WithConfThreshold(threshold float32) *ParamsBuilder {
	pb.params.ConfThreshold = threshold
	return pb
}

// WithIoUSweep sets the mAP threshold range.
func (pb *ParamsBuilder) WithIoUSweep(sweep []float32) *ParamsBuilder {
	pb.params.IoUSweep = sweep
	return pb
}

// Build returns the configured parameters.
func (pb *ParamsBuilder) Build() Params {
	return pb.params
}

// Input is one immutable evaluation request: ground truth and prediction
// snapshots keyed by sample id, the dataset's full category set (so
// zero-instance classes stay orderable), and the run parameters.
type Input struct {
	Type        Type
	GroundTruth map[string][]common.GroundTruth
	Predictions map[string][]common.Prediction
	Categories  []string
	Params      Params
}

// Result is the tagged union exposed to the UI layer. Exactly one of
// Detection and Classification is set, matching Type.
type Result struct {
	Type           Type                  `json:"evaluation_type"`
	Detection      *DetectionResult      `json:"detection,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty"`
}

// Run validates the input and dispatches to the detection or the
// classification evaluator.
//
// Arguments:
// - input: Immutable annotation snapshots plus parameters.
//
// Returns:
// - The evaluation result for the requested type.
// - An error for invalid requests; degenerate data is not an error.
func Run(input Input) (*Result, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	groundTruths := flattenGroundTruth(input.GroundTruth)
	predictions := flattenPredictions(input.Predictions, input.Params.Source)
	if len(predictions) == 0 {
		return nil, errors.Wrapf(ErrNoPredictions, "source %q", input.Params.Source)
	}

	switch input.Type {
	case TypeDetection:
		detection := EvaluateDetection(groundTruths, predictions, input.Categories, input.Params)
		return &Result{Type: TypeDetection, Detection: detection}, nil
	case TypeClassification:
		classification := EvaluateClassification(groundTruths, predictions, input.Categories, input.Params)
		return &Result{Type: TypeClassification, Classification: classification}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", input.Type)
	}
}

// RunErrors validates the input and runs the error categorizer at the
// input's operating point. It is the error-analysis counterpart of Run,
// always detection-shaped.
func RunErrors(input Input) (*ErrorReport, error) {
	input.Type = TypeDetection
	if err := input.validate(); err != nil {
		return nil, err
	}

	groundTruths := flattenGroundTruth(input.GroundTruth)
	predictions := flattenPredictions(input.Predictions, input.Params.Source)
	if len(predictions) == 0 {
		return nil, errors.Wrapf(ErrNoPredictions, "source %q", input.Params.Source)
	}

	return CategorizeErrors(groundTruths, predictions, input.Params), nil
}

// validate reports structural input errors per the error taxonomy:
// missing data and out-of-range thresholds are caller mistakes.
func (in Input) validate() error {
	if in.Type != TypeDetection && in.Type != TypeClassification {
		return errors.Wrapf(ErrUnknownType, "%q", in.Type)
	}
	if len(in.GroundTruth) == 0 {
		return ErrNoGroundTruth
	}
	if err := checkThreshold("iou_threshold", in.Params.IoUThreshold); err != nil {
		return err
	}
	if err := checkThreshold("conf_threshold", in.Params.ConfThreshold); err != nil {
		return err
	}
	for _, t := range in.Params.IoUSweep {
		if err := checkThreshold("iou_sweep", t); err != nil {
			return err
		}
	}
	return nil
}

func checkThreshold(name string, value float32) error {
	if value < 0 || value > 1 {
		return errors.Wrapf(ErrThresholdOutOfRange, "%s=%v", name, value)
	}
	return nil
}

// flattenGroundTruth flattens the sample map in sorted sample order.
// Deterministic ordering keeps tie-breaks, and therefore AP values,
// reproducible across runs.
func flattenGroundTruth(bySample map[string][]common.GroundTruth) []common.GroundTruth {
	var flat []common.GroundTruth
	for _, sample := range sortedKeysGT(bySample) {
		flat = append(flat, bySample[sample]...)
	}
	return flat
}

// flattenPredictions flattens predictions in sorted sample order,
// keeping only rows from the requested source when one is set.
func flattenPredictions(bySample map[string][]common.Prediction, source string) []common.Prediction {
	var flat []common.Prediction
	for _, sample := range sortedKeysPred(bySample) {
		for _, p := range bySample[sample] {
			if source != "" && p.Source != source {
				continue
			}
			flat = append(flat, p)
		}
	}
	return flat
}

func sortedKeysGT(m map[string][]common.GroundTruth) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysPred(m map[string][]common.Prediction) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
