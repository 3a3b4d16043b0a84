// Package decoder converts dense CenterNet heatmaps into bounding-box
// detections. All functions are pure: they read their input tensors, allocate
// fresh outputs, and hold no state, so concurrent calls on disjoint data are
// safe.
package decoder

import (
	"fmt"
	"sort"

	"gorgonia.org/tensor"
)

// DefaultPoolSize is the neighborhood used by Decode for peak suppression.
const DefaultPoolSize = 3

// Detections holds decoded results for a batch.
// Boxes is [batch, K, 4] (x1, y1, x2, y2), Scores is [batch, K, 1] and
// Classes is [batch, K, 1] with integer class ids stored as float32.
type Detections struct {
	Boxes   *tensor.Dense
	Scores  *tensor.Dense
	Classes *tensor.Dense
}

// TopK holds the K best peaks per batch image, ordered by descending score.
// Indices are flattened spatial positions satisfying Ys[i]*width+Xs[i].
type TopK struct {
	Scores  [][]float32
	Indices [][]int
	Classes [][]int
	Ys      [][]int
	Xs      [][]int
}

// PseudoNMS suppresses non-maximum heatmap values: a location keeps its score
// iff it equals the maximum of its poolSize x poolSize neighborhood (same-size
// max pool, padding (poolSize-1)/2, stride 1), and is zeroed otherwise.
// Equal maxima within a neighborhood all survive, so duplicate peaks at
// identical scores are not deduplicated. The operation is idempotent.
func PseudoNMS(fmap *tensor.Dense, poolSize int) (*tensor.Dense, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("decoder: pool size must be positive, got %d", poolSize)
	}
	shape := fmap.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("decoder: feature map must be NCHW, got shape %v", shape)
	}
	b, c, h, w := shape[0], shape[1], shape[2], shape[3]
	data := fmap.Data().([]float32)
	out := make([]float32, len(data))
	pad := (poolSize - 1) / 2

	for n := 0; n < b; n++ {
		for ch := 0; ch < c; ch++ {
			plane := data[(n*c+ch)*h*w : (n*c+ch+1)*h*w]
			dst := out[(n*c+ch)*h*w : (n*c+ch+1)*h*w]
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					v := plane[y*w+x]
					if v == neighborhoodMax(plane, w, h, x, y, pad, poolSize) {
						dst[y*w+x] = v
					}
				}
			}
		}
	}
	return tensor.New(tensor.WithShape(b, c, h, w), tensor.WithBacking(out)), nil
}

// neighborhoodMax returns the max over the pool window anchored at (x-pad, y-pad),
// clipped to the plane. Padding contributes nothing (window cells outside the
// plane are skipped, matching zero-padded max pooling for non-negative maps and
// clipped pooling otherwise).
func neighborhoodMax(plane []float32, w, h, x, y, pad, poolSize int) float32 {
	best := plane[y*w+x]
	for dy := 0; dy < poolSize; dy++ {
		yy := y - pad + dy
		if yy < 0 || yy >= h {
			continue
		}
		for dx := 0; dx < poolSize; dx++ {
			xx := x - pad + dx
			if xx < 0 || xx >= w {
				continue
			}
			if v := plane[yy*w+xx]; v > best {
				best = v
			}
		}
	}
	return best
}

// TopKScores selects the K highest-scoring peaks per batch image in two
// stages: first the K best flattened positions within each class channel, then
// the global K best across the channel x K candidates. The winning class id is
// the candidate's index in the flattened stage-one array divided by K. Ties
// are broken by discovery order (lower index first), never re-sorted.
func TopKScores(scores *tensor.Dense, k int) (*TopK, error) {
	shape := scores.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("decoder: score map must be NCHW, got shape %v", shape)
	}
	b, c, h, w := shape[0], shape[1], shape[2], shape[3]
	hw := h * w
	if k <= 0 || k > hw {
		return nil, fmt.Errorf("decoder: K=%d out of range for %dx%d map", k, h, w)
	}
	data := scores.Data().([]float32)

	out := &TopK{
		Scores:  make([][]float32, b),
		Indices: make([][]int, b),
		Classes: make([][]int, b),
		Ys:      make([][]int, b),
		Xs:      make([][]int, b),
	}

	for n := 0; n < b; n++ {
		// Stage 1: top-K positions within each class channel.
		chScores := make([]float32, c*k)
		chInds := make([]int, c*k)
		for ch := 0; ch < c; ch++ {
			plane := data[(n*c+ch)*hw : (n*c+ch+1)*hw]
			for rank, idx := range topIndices(plane, k) {
				chScores[ch*k+rank] = plane[idx]
				chInds[ch*k+rank] = idx
			}
		}

		// Stage 2: global top-K over the flattened channel x K candidates.
		sel := topIndices(chScores, k)
		out.Scores[n] = make([]float32, k)
		out.Indices[n] = make([]int, k)
		out.Classes[n] = make([]int, k)
		out.Ys[n] = make([]int, k)
		out.Xs[n] = make([]int, k)
		for rank, flat := range sel {
			idx := chInds[flat]
			out.Scores[n][rank] = chScores[flat]
			out.Indices[n][rank] = idx
			out.Classes[n][rank] = flat / k
			out.Ys[n][rank] = idx / w
			out.Xs[n][rank] = idx % w
		}
	}
	return out, nil
}

// topIndices returns the indices of the k largest values in descending score
// order. The sort is stable over ascending indices, so equal scores keep
// discovery order.
func topIndices(vals []float32, k int) []int {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return vals[idx[i]] > vals[idx[j]]
	})
	return idx[:k]
}

// Decode converts a raw heatmap and its regression tensors into the final
// per-image detections.
//
// fmap is [batch, classes, H, W]. wh carries predicted box sizes: 2 channels
// when class-agnostic, or classes*2 channels when catSpecWH is set, in which
// case the pair matching the predicted class is selected per detection.
// reg, when non-nil, is a 2-channel sub-pixel offset for the peak centers;
// without it the center-of-cell convention (+0.5, +0.5) applies.
//
// Exactly K detections are returned per batch element, ordered by descending
// score. Box coordinates are in feature-map space; use TransformBoxes to map
// them back onto the source image.
func Decode(fmap, wh, reg *tensor.Dense, catSpecWH bool, k int) (*Detections, error) {
	shape := fmap.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("decoder: feature map must be NCHW, got shape %v", shape)
	}
	b, c := shape[0], shape[1]

	pooled, err := PseudoNMS(fmap, DefaultPoolSize)
	if err != nil {
		return nil, err
	}
	tk, err := TopKScores(pooled, k)
	if err != nil {
		return nil, err
	}

	// Sub-pixel center coordinates.
	cxs := make([][]float32, b)
	cys := make([][]float32, b)
	if reg != nil {
		regG, err := GatherFeature(reg, tk.Indices, true)
		if err != nil {
			return nil, fmt.Errorf("decoder: gathering offsets: %w", err)
		}
		rd := regG.Data().([]float32)
		for n := 0; n < b; n++ {
			cxs[n] = make([]float32, k)
			cys[n] = make([]float32, k)
			for i := 0; i < k; i++ {
				cxs[n][i] = float32(tk.Xs[n][i]) + rd[(n*k+i)*2]
				cys[n][i] = float32(tk.Ys[n][i]) + rd[(n*k+i)*2+1]
			}
		}
	} else {
		for n := 0; n < b; n++ {
			cxs[n] = make([]float32, k)
			cys[n] = make([]float32, k)
			for i := 0; i < k; i++ {
				cxs[n][i] = float32(tk.Xs[n][i]) + 0.5
				cys[n][i] = float32(tk.Ys[n][i]) + 0.5
			}
		}
	}

	whG, err := GatherFeature(wh, tk.Indices, true)
	if err != nil {
		return nil, fmt.Errorf("decoder: gathering sizes: %w", err)
	}
	wd := whG.Data().([]float32)
	whChans := wh.Shape()[1]
	if catSpecWH && whChans != 2*c {
		return nil, fmt.Errorf("decoder: class-specific wh needs %d channels, got %d", 2*c, whChans)
	}

	boxes := make([]float32, b*k*4)
	scoresOut := make([]float32, b*k)
	classesOut := make([]float32, b*k)
	for n := 0; n < b; n++ {
		for i := 0; i < k; i++ {
			var bw, bh float32
			if catSpecWH {
				cls := tk.Classes[n][i]
				bw = wd[(n*k+i)*whChans+cls*2]
				bh = wd[(n*k+i)*whChans+cls*2+1]
			} else {
				bw = wd[(n*k+i)*whChans]
				bh = wd[(n*k+i)*whChans+1]
			}
			cx, cy := cxs[n][i], cys[n][i]
			o := (n*k + i) * 4
			boxes[o] = cx - bw/2
			boxes[o+1] = cy - bh/2
			boxes[o+2] = cx + bw/2
			boxes[o+3] = cy + bh/2
			scoresOut[n*k+i] = tk.Scores[n][i]
			classesOut[n*k+i] = float32(tk.Classes[n][i])
		}
	}

	return &Detections{
		Boxes:   tensor.New(tensor.WithShape(b, k, 4), tensor.WithBacking(boxes)),
		Scores:  tensor.New(tensor.WithShape(b, k, 1), tensor.WithBacking(scoresOut)),
		Classes: tensor.New(tensor.WithShape(b, k, 1), tensor.WithBacking(classesOut)),
	}, nil
}
