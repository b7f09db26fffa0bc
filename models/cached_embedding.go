package models

import (
	"encoding/binary"
	"math"
)

// CachedEmbedding remembers the provider result for one stored enrollment
// image. It corresponds to the 'embedding_cache' table. A row is valid only
// while ModTime matches the file on disk.
type CachedEmbedding struct {
	Path          string `gorm:"primaryKey;column:path" json:"path"`   // identity-relative, e.g. "Alice/a.jpg"
	Model         string `gorm:"primaryKey;column:model" json:"model"` // embedding model name
	ModTime       int64  `gorm:"not null;column:mod_time" json:"mod_time"`
	NoFace        bool   `gorm:"not null;column:no_face;default:false" json:"no_face"`
	EmbeddingData []byte `gorm:"column:embedding_data" json:"-"` // little-endian float64 BLOB
	UpdatedAt     int64  `gorm:"not null" json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (CachedEmbedding) TableName() string {
	return "embedding_cache"
}

// GetEmbedding converts the BLOB data to []float64
func (ce *CachedEmbedding) GetEmbedding() []float64 {
	if len(ce.EmbeddingData) == 0 {
		return nil
	}
	embedding := make([]float64, len(ce.EmbeddingData)/8)
	for i := range embedding {
		embedding[i] = math.Float64frombits(binary.LittleEndian.Uint64(ce.EmbeddingData[i*8:]))
	}
	return embedding
}

// SetEmbedding converts []float64 to BLOB data
func (ce *CachedEmbedding) SetEmbedding(embedding []float64) {
	if len(embedding) == 0 {
		ce.EmbeddingData = nil
		return
	}
	ce.EmbeddingData = make([]byte, len(embedding)*8)
	for i, val := range embedding {
		binary.LittleEndian.PutUint64(ce.EmbeddingData[i*8:], math.Float64bits(val))
	}
}
