// Command evalcli evaluates prediction runs against ground-truth
// annotations and prints or exports the resulting metrics.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nvr-ai/go-eval/dataset"
	"github.com/nvr-ai/go-eval/evaluation"
	"github.com/spf13/cobra"
)

type options struct {
	annotations   string
	source        string
	split         string
	iouThreshold  float32
	confThreshold float32
	format        string
	output        string
	verbose       bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "evalcli",
		Short:         "Evaluate object detections or classifications against ground truth",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.annotations, "annotations", "", "Path to annotation rows (JSON file or directory)")
	flags.StringVar(&opts.source, "source", "", "Prediction run to evaluate (empty: all prediction rows)")
	flags.StringVar(&opts.split, "split", "", "Dataset split to evaluate (empty: all rows)")
	flags.Float32Var(&opts.iouThreshold, "iou", 0.5, "Operating-point IoU threshold")
	flags.Float32Var(&opts.confThreshold, "conf", 0.25, "Operating-point confidence threshold")
	flags.StringVar(&opts.format, "format", "markdown", "Output format: markdown, csv, or json")
	flags.StringVarP(&opts.output, "output", "o", "", "Write the report to a file instead of stdout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	_ = root.MarkPersistentFlagRequired("annotations")

	root.AddCommand(newDetectCommand(opts))
	root.AddCommand(newClassifyCommand(opts))
	root.AddCommand(newErrorsCommand(opts))
	return root
}

func newDetectCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Compute PR curves, mAP, and the detection confusion matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runEvaluation(opts, evaluation.TypeDetection)
			if err != nil {
				return err
			}
			return emit(opts, result)
		},
	}
}

func newClassifyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify",
		Short: "Compute accuracy, F1, and the classification confusion matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runEvaluation(opts, evaluation.TypeClassification)
			if err != nil {
				return err
			}
			return emit(opts, result)
		},
	}
}

func newErrorsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "errors",
		Short: "Bucket predictions into TP / hard FP / label error / FN",
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, params, err := loadInputs(opts)
			if err != nil {
				return err
			}

			start := time.Now()
			report, err := evaluation.RunErrors(evaluation.Input{
				GroundTruth: collection.GroundTruth(opts.split),
				Predictions: collection.Predictions(opts.source, opts.split),
				Categories:  collection.Categories(),
				Params:      params,
			})
			if err != nil {
				return err
			}
			slog.Debug("error analysis complete", "duration", time.Since(start))

			return writeOut(opts, evaluation.GenerateErrorsMarkdown(report))
		},
	}
}

func runEvaluation(opts *options, evalType evaluation.Type) (*evaluation.Result, error) {
	collection, params, err := loadInputs(opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := evaluation.Run(evaluation.Input{
		Type:        evalType,
		GroundTruth: collection.GroundTruth(opts.split),
		Predictions: collection.Predictions(opts.source, opts.split),
		Categories:  collection.Categories(),
		Params:      params,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("evaluation complete", "type", string(evalType), "duration", time.Since(start))
	return result, nil
}

func loadInputs(opts *options) (*dataset.Collection, evaluation.Params, error) {
	info, err := os.Stat(opts.annotations)
	if err != nil {
		return nil, evaluation.Params{}, err
	}

	var collection *dataset.Collection
	if info.IsDir() {
		collection, err = dataset.LoadDirectory(opts.annotations)
	} else {
		collection, err = dataset.Load(opts.annotations)
	}
	if err != nil {
		return nil, evaluation.Params{}, err
	}
	slog.Info("annotations loaded",
		"rows", collection.Len(),
		"categories", len(collection.Categories()),
		"sources", collection.Sources())

	params := evaluation.NewParamsBuilder().
		WithSource(opts.source).
		WithIoUThreshold(opts.iouThreshold).
		WithConfThreshold(opts.confThreshold).
		Build()
	return collection, params, nil
}

func emit(opts *options, result *evaluation.Result) error {
	if opts.output != "" {
		return evaluation.Export(result, opts.format, opts.output)
	}
	switch opts.format {
	case "csv":
		fmt.Print(evaluation.GenerateCSV(result))
	default:
		fmt.Print(evaluation.GenerateMarkdown(result))
	}
	return nil
}

func writeOut(opts *options, report string) error {
	if opts.output != "" {
		return os.WriteFile(opts.output, []byte(report), 0o644)
	}
	fmt.Print(report)
	return nil
}
