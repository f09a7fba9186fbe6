package evaluation

import (
	"sort"
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

// View wraps one detection result and serves class-filtered derivations
// of it. Filtered results are memoized per exclusion set, so toggling
// class visibility in the UI is O(1) after the first visit to a
// combination. The cache belongs to this view alone and is flushed
// wholesale whenever the source result is replaced; it is never shared
// process-wide.
type View struct {
	source *DetectionResult
	cache  *gocache.Cache
}

// NewView creates a view over one detection result.
func NewView(source *DetectionResult) *View {
	return &View{
		source: source,
		cache:  gocache.New(gocache.NoExpiration, 0),
	}
}

// Source returns the unfiltered result the view derives from.
func (v *View) Source() *DetectionResult {
	return v.source
}

// Replace swaps the source result and invalidates every cached
// derivation.
func (v *View) Replace(source *DetectionResult) {
	v.source = source
	v.cache.Flush()
}

// Filter returns the source result with the excluded classes removed,
// memoized by the canonicalized exclusion key.
func (v *View) Filter(excluded []string) *DetectionResult {
	key := exclusionKey(excluded)
	if key == "" {
		return v.source
	}
	if hit, ok := v.cache.Get(key); ok {
		return hit.(*DetectionResult)
	}
	derived := FilterResult(v.source, excluded)
	v.cache.Set(key, derived, gocache.NoExpiration)
	return derived
}

// FilterResult removes the excluded classes from a detection result and
// recomputes the aggregates, without re-running any matching. Per-class
// metrics and curves are dropped, both confusion-matrix axes shrink
// symmetrically, the mAP values become means over the remaining classes
// with ground truth, and the "all" curve is resynthesized from the
// remaining per-class curves. The source result is never mutated.
func FilterResult(source *DetectionResult, excluded []string) *DetectionResult {
	if len(excluded) == 0 {
		return source
	}
	drop := map[string]bool{}
	for _, c := range excluded {
		drop[c] = true
	}

	out := &DetectionResult{
		PRCurves:      map[string]PRCurve{},
		PerClass:      map[string]ClassMetrics{},
		IoUThreshold:  source.IoUThreshold,
		ConfThreshold: source.ConfThreshold,
	}

	var scored []PRCurve
	var sum50, sum75, sum5095 float64
	scoredClasses := 0

	for class, metrics := range source.PerClass {
		if drop[class] {
			continue
		}
		out.PerClass[class] = metrics
		curve, hasCurve := source.PRCurves[class]
		if hasCurve {
			out.PRCurves[class] = curve
		}
		if metrics.GroundTruths > 0 {
			if hasCurve {
				scored = append(scored, curve)
			}
			sum50 += metrics.AP50
			sum75 += metrics.AP75
			sum5095 += metrics.AP5095
			scoredClasses++
		}
	}

	if scoredClasses > 0 {
		out.APMetrics = APMetrics{
			MAP50:   sum50 / float64(scoredClasses),
			MAP75:   sum75 / float64(scoredClasses),
			MAP5095: sum5095 / float64(scoredClasses),
		}
	}
	out.PRCurves[AllCurveName] = SynthesizeAllCurve(scored)

	out.ConfusionLabels, out.ConfusionMatrix = filterConfusion(
		source.ConfusionLabels, source.ConfusionMatrix, drop)

	return out
}

// filterConfusion removes the dropped labels from both axes.
func filterConfusion(labels []string, matrix [][]int, drop map[string]bool) ([]string, [][]int) {
	var keep []int
	var outLabels []string
	for i, label := range labels {
		if !drop[label] {
			keep = append(keep, i)
			outLabels = append(outLabels, label)
		}
	}
	outMatrix := make([][]int, len(keep))
	for oi, i := range keep {
		outMatrix[oi] = make([]int, len(keep))
		for oj, j := range keep {
			outMatrix[oi][oj] = matrix[i][j]
		}
	}
	return outLabels, outMatrix
}

// exclusionKey canonicalizes an exclusion set: sorted, deduplicated,
// comma-delimited. The empty set maps to the empty key.
func exclusionKey(excluded []string) string {
	if len(excluded) == 0 {
		return ""
	}
	set := append([]string(nil), excluded...)
	sort.Strings(set)
	uniq := set[:0]
	for i, c := range set {
		if i == 0 || c != set[i-1] {
			uniq = append(uniq, c)
		}
	}
	return strings.Join(uniq, ",")
}
