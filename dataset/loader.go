// Package dataset - Annotation-row ingestion for evaluation runs.
package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/nvr-ai/go-eval/common"
	"github.com/pkg/errors"
)

// SourceGroundTruth is the source label marking ground-truth rows.
// Any other source value identifies an imported prediction run sharing
// the same row schema.
const SourceGroundTruth = "ground_truth"

// Row is one annotation row as stored by the query layer. Ground truth
// and prediction runs share the schema; Source discriminates them.
type Row struct {
	SampleID   string     `json:"sample_id"`
	Category   string     `json:"category"`
	Box        common.Box `json:"bbox"`
	Confidence float32    `json:"confidence"`
	Source     string     `json:"source"`
	IsCrowd    bool       `json:"is_crowd,omitempty"`
	Split      string     `json:"split,omitempty"`
}

// Collection is an immutable snapshot of annotation rows for one
// dataset, ready to be sliced into evaluation inputs.
type Collection struct {
	rows []Row
}

// NewCollection wraps rows supplied directly by a query layer.
func NewCollection(rows []Row) *Collection {
	return &Collection{rows: rows}
}

// Load reads a JSON file holding an array of annotation rows.
//
// Arguments:
// - path: Path to the annotation file.
//
// Returns:
// - *Collection: The loaded annotation snapshot.
// - error: Error if reading or decoding fails.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading annotations %s", path)
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrapf(err, "decoding annotations %s", path)
	}
	return &Collection{rows: rows}, nil
}

// LoadDirectory reads every .json annotation file in a directory and
// merges the rows, in file-name order.
func LoadDirectory(dir string) (*Collection, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading annotation directory %s", dir)
	}

	var rows []Row
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		c, err := Load(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		rows = append(rows, c.rows...)
	}
	return &Collection{rows: rows}, nil
}

// Len returns the number of rows in the collection.
func (c *Collection) Len() int {
	return len(c.rows)
}

// Categories returns the sorted set of category names across every row,
// so zero-instance classes stay orderable and reportable.
func (c *Collection) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range c.rows {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Sources returns the sorted set of prediction-run sources.
func (c *Collection) Sources() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range c.rows {
		if r.Source == SourceGroundTruth || seen[r.Source] {
			continue
		}
		seen[r.Source] = true
		out = append(out, r.Source)
	}
	sort.Strings(out)
	return out
}

// GroundTruth returns the ground-truth boxes keyed by sample id,
// restricted to one split when split is non-empty.
func (c *Collection) GroundTruth(split string) map[string][]common.GroundTruth {
	out := map[string][]common.GroundTruth{}
	for _, r := range c.rows {
		if r.Source != SourceGroundTruth {
			continue
		}
		if split != "" && r.Split != split {
			continue
		}
		out[r.SampleID] = append(out[r.SampleID], common.GroundTruth{
			SampleID: r.SampleID,
			Category: r.Category,
			Box:      r.Box,
			IsCrowd:  r.IsCrowd,
		})
	}
	return out
}

// Predictions returns prediction boxes keyed by sample id, restricted to
// one source run and optionally one split. An empty source keeps every
// prediction row.
func (c *Collection) Predictions(source, split string) map[string][]common.Prediction {
	out := map[string][]common.Prediction{}
	for _, r := range c.rows {
		if r.Source == SourceGroundTruth {
			continue
		}
		if source != "" && r.Source != source {
			continue
		}
		if split != "" && r.Split != split {
			continue
		}
		out[r.SampleID] = append(out[r.SampleID], common.Prediction{
			SampleID:   r.SampleID,
			Category:   r.Category,
			Box:        r.Box,
			Confidence: r.Confidence,
			Source:     r.Source,
		})
	}
	return out
}
