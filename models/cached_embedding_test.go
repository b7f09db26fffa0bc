package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCachedEmbedding_BlobLayout(t *testing.T) {
	var ce CachedEmbedding
	ce.SetEmbedding([]float64{1.0, math.Inf(-1)})

	assert.Len(t, ce.EmbeddingData, 16)
	// 1.0 little-endian: 00 00 00 00 00 00 f0 3f
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}, ce.EmbeddingData[:8])
	assert.Equal(t, []float64{1.0, math.Inf(-1)}, ce.GetEmbedding())

	ce.SetEmbedding(nil)
	assert.Nil(t, ce.EmbeddingData)
	assert.Nil(t, ce.GetEmbedding())
}
