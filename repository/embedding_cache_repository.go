package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/faceattend/models"
	"github.com/camden-git/faceattend/recognition"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingCacheRepository stores provider verdicts per image and model.
// Entries of another model name are never returned.
type EmbeddingCacheRepository struct {
	DB        *gorm.DB
	ModelName string
}

var _ EmbeddingCacheRepositoryInterface = (*EmbeddingCacheRepository)(nil)

func NewEmbeddingCacheRepository(db *gorm.DB, modelName string) *EmbeddingCacheRepository {
	return &EmbeddingCacheRepository{DB: db, ModelName: modelName}
}

// Lookup returns a hit only when the stored modification time matches.
func (r *EmbeddingCacheRepository) Lookup(path string, modTime int64) (recognition.CachedEmbedding, bool, error) {
	var row models.CachedEmbedding
	err := r.DB.Where("path = ? AND model = ?", path, r.ModelName).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return recognition.CachedEmbedding{}, false, nil
		}
		return recognition.CachedEmbedding{}, false, fmt.Errorf("failed to look up cached embedding for %s: %w", path, err)
	}
	if row.ModTime != modTime {
		return recognition.CachedEmbedding{}, false, nil
	}
	return recognition.CachedEmbedding{Embedding: row.GetEmbedding(), NoFace: row.NoFace}, true, nil
}

func (r *EmbeddingCacheRepository) Store(path string, modTime int64, entry recognition.CachedEmbedding) error {
	row := models.CachedEmbedding{
		Path:      path,
		Model:     r.ModelName,
		ModTime:   modTime,
		NoFace:    entry.NoFace,
		UpdatedAt: time.Now().Unix(),
	}
	row.SetEmbedding(entry.Embedding)

	err := r.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to cache embedding for %s: %w", path, err)
	}
	return nil
}

// ForgetIdentity drops every cached entry under the identity directory.
func (r *EmbeddingCacheRepository) ForgetIdentity(identity string) error {
	err := r.DB.Where("instr(path, ?) = 1", identity+"/").Delete(&models.CachedEmbedding{}).Error
	if err != nil {
		return fmt.Errorf("failed to forget cached embeddings for %s: %w", identity, err)
	}
	return nil
}

func (r *EmbeddingCacheRepository) Count() (int64, error) {
	var n int64
	if err := r.DB.Model(&models.CachedEmbedding{}).Where("model = ?", r.ModelName).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count cached embeddings: %w", err)
	}
	return n, nil
}
