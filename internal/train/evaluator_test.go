package train

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEvaluator records lifecycle calls and returns canned results.
type fakeEvaluator struct {
	resets  int
	results Results
	err     error
}

func (f *fakeEvaluator) Reset() { f.resets++ }

func (f *fakeEvaluator) Evaluate() (Results, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestCatalogRegisterAndLookup(t *testing.T) {
	c := NewCatalog()
	_, ok := c.EvaluatorType("coco_2017_val")
	assert.False(t, ok)

	c.Register("coco_2017_val", EvaluatorCOCO)
	typ, ok := c.EvaluatorType("coco_2017_val")
	require.True(t, ok)
	assert.Equal(t, EvaluatorCOCO, typ)
}

func TestDefaultCatalogDatasets(t *testing.T) {
	c := DefaultCatalog()

	typ, ok := c.EvaluatorType("coco_2017_train")
	require.True(t, ok)
	assert.Equal(t, EvaluatorCOCO, typ)

	typ, ok = c.EvaluatorType("voc_2007_test")
	require.True(t, ok)
	assert.Equal(t, EvaluatorPascalVOC, typ)

	_, ok = c.EvaluatorType("cityscapes_train")
	assert.False(t, ok)
}

func TestBuilderUnknownDataset(t *testing.T) {
	b := NewBuilder(DefaultCatalog())
	_, err := b.Build("cityscapes_train", t.TempDir())
	assert.ErrorIs(t, err, ErrNoEvaluator)
}

func TestBuilderKnownDatasetWithoutFactory(t *testing.T) {
	b := NewBuilder(DefaultCatalog())
	_, err := b.Build("coco_2017_val", t.TempDir())
	assert.ErrorIs(t, err, ErrNoEvaluator)
}

func TestBuilderSelectsCOCOFactory(t *testing.T) {
	fake := &fakeEvaluator{results: Results{"AP50": 0.5}}
	var gotDataset, gotDir string

	b := NewBuilder(DefaultCatalog())
	b.RegisterFactory(EvaluatorCOCO, func(dataset, outputDir string) (Evaluator, error) {
		gotDataset, gotDir = dataset, outputDir
		return fake, nil
	})

	ev, err := b.Build("coco_2014_train", "out")
	require.NoError(t, err)
	assert.Equal(t, "coco_2014_train", gotDataset)
	assert.Equal(t, "out", gotDir)

	res, err := ev.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, Results{"AP50": 0.5}, res)
}

func TestBuilderSelectsVOCFactory(t *testing.T) {
	fake := &fakeEvaluator{results: Results{"mAP": 0.7}}

	b := NewBuilder(DefaultCatalog())
	b.RegisterFactory(EvaluatorPascalVOC, func(dataset, outputDir string) (Evaluator, error) {
		return fake, nil
	})

	ev, err := b.Build("voc_2012_trainval", "out")
	require.NoError(t, err)
	assert.Same(t, fake, ev)
}

func TestBuilderFactoryError(t *testing.T) {
	wantErr := errors.New("no annotations")
	b := NewBuilder(DefaultCatalog())
	b.RegisterFactory(EvaluatorCOCO, func(dataset, outputDir string) (Evaluator, error) {
		return nil, wantErr
	})
	_, err := b.Build("coco_2017_train", "out")
	assert.ErrorIs(t, err, wantErr)
}

func TestEvaluatorListMergesResults(t *testing.T) {
	a := &fakeEvaluator{results: Results{"AP": 0.4}}
	b := &fakeEvaluator{results: Results{"AP50": 0.6}}
	list := evaluatorList{a, b}

	list.Reset()
	assert.Equal(t, 1, a.resets)
	assert.Equal(t, 1, b.resets)

	res, err := list.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, Results{"AP": 0.4, "AP50": 0.6}, res)
}

func TestEvaluatorListPropagatesError(t *testing.T) {
	wantErr := errors.New("scoring failed")
	list := evaluatorList{
		&fakeEvaluator{results: Results{"AP": 0.4}},
		&fakeEvaluator{err: wantErr},
	}
	_, err := list.Evaluate()
	assert.ErrorIs(t, err, wantErr)
}
