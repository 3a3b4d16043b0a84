// Package train wires the detection model into an external trainer/evaluator
// framework. The training loop, dataset catalogs and metric scorers live
// behind interfaces; this package selects and composes them.
package train

import (
	"errors"
	"fmt"
	"sync"
)

// Evaluator types understood by BuildEvaluator.
const (
	EvaluatorCOCO         = "coco"
	EvaluatorCOCOPanoptic = "coco_panoptic_seg"
	EvaluatorPascalVOC    = "pascal_voc"
)

// ErrNoEvaluator reports a dataset whose evaluator type has no registered
// implementation.
var ErrNoEvaluator = errors.New("train: no evaluator for dataset")

// Results maps metric names to values, e.g. "AP50" -> 0.52.
type Results map[string]float64

// Evaluator scores model predictions on a dataset.
type Evaluator interface {
	// Reset clears accumulated predictions before an evaluation round.
	Reset()
	// Evaluate scores everything accumulated since the last Reset.
	Evaluate() (Results, error)
}

// EvaluatorFactory builds an evaluator for a named dataset, writing artifacts
// under outputDir.
type EvaluatorFactory func(dataset, outputDir string) (Evaluator, error)

// Catalog records the evaluator type of each registered dataset, standing in
// for the external dataset metadata catalog.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{types: make(map[string]string)}
}

// DefaultCatalog seeds the catalog with the standard detection benchmarks;
// external dataset packages register further entries.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, d := range []string{"coco_2017_train", "coco_2017_val", "coco_2014_train", "coco_2014_val"} {
		c.Register(d, EvaluatorCOCO)
	}
	for _, d := range []string{"voc_2007_test", "voc_2012_trainval"} {
		c.Register(d, EvaluatorPascalVOC)
	}
	return c
}

// Register records the evaluator type for a dataset.
func (c *Catalog) Register(dataset, evaluatorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[dataset] = evaluatorType
}

// EvaluatorType looks up a dataset's evaluator type.
func (c *Catalog) EvaluatorType(dataset string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.types[dataset]
	return t, ok
}

// Builder selects evaluators for datasets based on the catalog.
type Builder struct {
	catalog   *Catalog
	factories map[string]EvaluatorFactory
}

// NewBuilder creates a Builder over the given catalog.
func NewBuilder(catalog *Catalog) *Builder {
	return &Builder{catalog: catalog, factories: make(map[string]EvaluatorFactory)}
}

// RegisterFactory installs the evaluator implementation for one evaluator
// type (e.g. EvaluatorCOCO).
func (b *Builder) RegisterFactory(evaluatorType string, f EvaluatorFactory) {
	b.factories[evaluatorType] = f
}

// Build constructs the evaluator(s) for a dataset. COCO-style datasets may
// accumulate several evaluators, which are wrapped into one; Pascal VOC maps
// to a single evaluator. An unknown type yields ErrNoEvaluator.
func (b *Builder) Build(dataset, outputDir string) (Evaluator, error) {
	evaluatorType, ok := b.catalog.EvaluatorType(dataset)
	if !ok {
		return nil, fmt.Errorf("%w %q: dataset not in catalog", ErrNoEvaluator, dataset)
	}

	var list []Evaluator
	switch evaluatorType {
	case EvaluatorCOCO, EvaluatorCOCOPanoptic:
		f, ok := b.factories[EvaluatorCOCO]
		if !ok {
			break
		}
		ev, err := f(dataset, outputDir)
		if err != nil {
			return nil, err
		}
		list = append(list, ev)
	case EvaluatorPascalVOC:
		f, ok := b.factories[EvaluatorPascalVOC]
		if !ok {
			break
		}
		return f(dataset, outputDir)
	}

	switch len(list) {
	case 0:
		return nil, fmt.Errorf("%w %q with type %q", ErrNoEvaluator, dataset, evaluatorType)
	case 1:
		return list[0], nil
	default:
		return evaluatorList(list), nil
	}
}

// evaluatorList runs several evaluators as one, merging their results.
type evaluatorList []Evaluator

func (l evaluatorList) Reset() {
	for _, ev := range l {
		ev.Reset()
	}
}

func (l evaluatorList) Evaluate() (Results, error) {
	merged := Results{}
	for _, ev := range l {
		res, err := ev.Evaluate()
		if err != nil {
			return nil, err
		}
		for k, v := range res {
			merged[k] = v
		}
	}
	return merged, nil
}
