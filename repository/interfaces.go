package repository

import "github.com/camden-git/faceattend/recognition"

// EmbeddingCacheRepositoryInterface defines the methods for embedding cache operations
type EmbeddingCacheRepositoryInterface interface {
	recognition.EmbeddingCache
	Count() (int64, error)
}
