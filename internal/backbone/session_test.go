package backbone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/models/centernet.onnx")
	assert.Equal(t, "/models/centernet.onnx", cfg.ModelPath)
	assert.Equal(t, "input", cfg.InputName)
	assert.Equal(t, "fmap", cfg.FmapOutput)
	assert.Equal(t, "wh", cfg.WHOutput)
	assert.Equal(t, "reg", cfg.RegOutput)
	assert.Zero(t, cfg.NumThreads)
}

func TestNewMissingModel(t *testing.T) {
	_, err := New(DefaultConfig("/nonexistent/model.onnx"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCloseWithoutSession(t *testing.T) {
	s := &Session{}
	assert.NoError(t, s.Close())
}
