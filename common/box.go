// Package common - Shared annotation types for evaluation.
package common

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Box represents an axis-aligned bounding box in pixel coordinates,
// stored as top-left corner plus width and height.
type Box struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	W float32 `json:"w"`
	H float32 `json:"h"`
}

// GroundTruth is one annotated ground-truth box for a sample.
type GroundTruth struct {
	SampleID string `json:"sample_id"`
	Category string `json:"category"`
	Box      Box    `json:"bbox"`
	IsCrowd  bool   `json:"is_crowd"`
}

// Prediction is one predicted box for a sample, tagged with the
// prediction run it came from.
type Prediction struct {
	SampleID   string  `json:"sample_id"`
	Category   string  `json:"category"`
	Box        Box     `json:"bbox"`
	Confidence float32 `json:"confidence"`
	Source     string  `json:"source"`
}

// Area returns the area of the box in pixels. Boxes with non-positive
// width or height have zero area.
func (b Box) Area() float32 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// String formats the box for display.
func (b Box) String() string {
	return fmt.Sprintf("(%.2f, %.2f) %0.2fx%0.2f", b.X, b.Y, b.W, b.H)
}

// IoU calculates the Intersection over Union between two bounding boxes.
//
// The result is the overlap area divided by the combined area (inclusion-
// exclusion), a value between 0 and 1 where 1 means identical boxes and 0
// means no overlap. Degenerate boxes with zero area always score 0, never
// NaN, so downstream ratio math stays finite.
//
// Arguments:
// - other: The other bounding box to compare against.
//
// Returns:
// - The IoU value between 0 and 1 as float32.
//
// @example
// a := Box{X: 0, Y: 0, W: 10, H: 10}
// b := Box{X: 5, Y: 5, W: 10, H: 10}
// iou := a.IoU(b) // Returns ~0.143 (25/175)
func (b Box) IoU(other Box) float32 {
	// Intersection corners: the overlap starts at the maximum of the two
	// top-left corners and ends at the minimum of the two bottom-right
	// corners.
	ix1 := math32.Max(b.X, other.X)
	iy1 := math32.Max(b.Y, other.Y)
	ix2 := math32.Min(b.X+b.W, other.X+other.W)
	iy2 := math32.Min(b.Y+b.H, other.Y+other.H)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH

	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
