package evaluation

import (
	"gorgonia.org/tensor"
)

// ConfusionMatrix is a square category-by-category count matrix with a
// stable label order. Rows are actual categories, columns are predicted
// categories. Counts are held in a dense integer tensor.
type ConfusionMatrix struct {
	labels []string
	index  map[string]int
	counts *tensor.Dense
}

// NewConfusionMatrix creates a zeroed matrix over the given label order.
// Labels the data never mentions simply keep zero rows and columns, which
// keeps zero-instance classes reportable.
func NewConfusionMatrix(labels []string) *ConfusionMatrix {
	m := &ConfusionMatrix{
		labels: append([]string(nil), labels...),
		index:  make(map[string]int, len(labels)),
	}
	for i, label := range m.labels {
		m.index[label] = i
	}
	if len(labels) > 0 {
		m.counts = tensor.New(tensor.WithShape(len(labels), len(labels)), tensor.Of(tensor.Int))
	}
	return m
}

// Labels returns the matrix's label order.
func (m *ConfusionMatrix) Labels() []string {
	return append([]string(nil), m.labels...)
}

// Size returns the number of labels.
func (m *ConfusionMatrix) Size() int {
	return len(m.labels)
}

// Add increments the (actual, predicted) cell. Unknown labels are
// dropped; the label set is fixed at construction.
func (m *ConfusionMatrix) Add(actual, predicted string) {
	row, ok := m.index[actual]
	if !ok {
		return
	}
	col, ok := m.index[predicted]
	if !ok {
		return
	}
	m.addAt(row, col)
}

func (m *ConfusionMatrix) addAt(row, col int) {
	v, err := m.counts.At(row, col)
	if err != nil {
		panic(err)
	}
	if err := m.counts.SetAt(v.(int)+1, row, col); err != nil {
		panic(err)
	}
}

// Count returns the (actual, predicted) cell value, 0 for unknown labels.
func (m *ConfusionMatrix) Count(actual, predicted string) int {
	row, okR := m.index[actual]
	col, okC := m.index[predicted]
	if !okR || !okC {
		return 0
	}
	return m.at(row, col)
}

func (m *ConfusionMatrix) at(row, col int) int {
	v, err := m.counts.At(row, col)
	if err != nil {
		panic(err)
	}
	return v.(int)
}

// Rows exports the counts as a row-major slice-of-slices for the UI and
// for JSON serialization.
func (m *ConfusionMatrix) Rows() [][]int {
	rows := make([][]int, len(m.labels))
	for i := range rows {
		rows[i] = make([]int, len(m.labels))
		for j := range rows[i] {
			rows[i][j] = m.at(i, j)
		}
	}
	return rows
}

// RowSum returns the total instances of an actual class, its support.
func (m *ConfusionMatrix) RowSum(label string) int {
	row, ok := m.index[label]
	if !ok {
		return 0
	}
	sum := 0
	for j := range m.labels {
		sum += m.at(row, j)
	}
	return sum
}

// ColSum returns the total predictions of a class.
func (m *ConfusionMatrix) ColSum(label string) int {
	col, ok := m.index[label]
	if !ok {
		return 0
	}
	sum := 0
	for i := range m.labels {
		sum += m.at(i, col)
	}
	return sum
}

// Trace returns the sum of the diagonal, the agreement count.
func (m *ConfusionMatrix) Trace() int {
	sum := 0
	for i := range m.labels {
		sum += m.at(i, i)
	}
	return sum
}

// Total returns the sum of every cell.
func (m *ConfusionMatrix) Total() int {
	sum := 0
	for i := range m.labels {
		for j := range m.labels {
			sum += m.at(i, j)
		}
	}
	return sum
}
