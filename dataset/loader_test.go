package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRows = `[
  {"sample_id": "img1", "category": "cat", "bbox": {"x": 0, "y": 0, "w": 10, "h": 10}, "source": "ground_truth", "split": "val"},
  {"sample_id": "img1", "category": "dog", "bbox": {"x": 30, "y": 30, "w": 10, "h": 10}, "source": "ground_truth", "split": "val", "is_crowd": true},
  {"sample_id": "img2", "category": "cat", "bbox": {"x": 5, "y": 5, "w": 8, "h": 8}, "source": "ground_truth", "split": "train"},
  {"sample_id": "img1", "category": "cat", "bbox": {"x": 1, "y": 1, "w": 10, "h": 10}, "confidence": 0.9, "source": "model-a", "split": "val"},
  {"sample_id": "img1", "category": "bird", "bbox": {"x": 60, "y": 60, "w": 5, "h": 5}, "confidence": 0.4, "source": "model-b", "split": "val"}
]`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "annotations.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleRows), 0o644))
	return path
}

// TestLoad verifies basic row loading and the derived category and
// source sets.
func TestLoad(t *testing.T) {
	c, err := Load(writeSample(t))
	require.NoError(t, err)

	assert.Equal(t, 5, c.Len())
	assert.Equal(t, []string{"bird", "cat", "dog"}, c.Categories())
	assert.Equal(t, []string{"model-a", "model-b"}, c.Sources())
}

// TestLoadMissingFile verifies a wrapped error for a missing path.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/annotations.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading annotations")
}

// TestLoadMalformed verifies a wrapped decode error.
func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding annotations")
}

// TestGroundTruthSplitFilter verifies split filtering and crowd-flag
// passthrough on the ground-truth view.
func TestGroundTruthSplitFilter(t *testing.T) {
	c, err := Load(writeSample(t))
	require.NoError(t, err)

	val := c.GroundTruth("val")
	require.Len(t, val, 1)
	require.Len(t, val["img1"], 2)
	assert.False(t, val["img1"][0].IsCrowd)
	assert.True(t, val["img1"][1].IsCrowd)

	all := c.GroundTruth("")
	assert.Len(t, all, 2, "empty split keeps every row")
}

// TestPredictionsSourceFilter verifies source selection on the
// prediction view.
func TestPredictionsSourceFilter(t *testing.T) {
	c, err := Load(writeSample(t))
	require.NoError(t, err)

	modelA := c.Predictions("model-a", "val")
	require.Len(t, modelA["img1"], 1)
	assert.Equal(t, "cat", modelA["img1"][0].Category)
	assert.InDelta(t, 0.9, float64(modelA["img1"][0].Confidence), 1e-6)

	both := c.Predictions("", "")
	assert.Len(t, both["img1"], 2, "empty source keeps every prediction row")
}

// TestLoadDirectory verifies merging multiple annotation files.
func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(sampleRows), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(sampleRows), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644))

	c, err := LoadDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Len())
}
