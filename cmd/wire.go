package cmd

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/camden-git/faceattend/attendance"
	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/database"
	"github.com/camden-git/faceattend/media"
	"github.com/camden-git/faceattend/realtime"
	"github.com/camden-git/faceattend/recognition"
	"github.com/camden-git/faceattend/repository"
	"github.com/camden-git/faceattend/workers"
)

// app holds everything a command needs plus the resources to release.
type app struct {
	cfg      config.Config
	service  *recognition.Service
	hub      *realtime.Hub
	cache    repository.EmbeddingCacheRepositoryInterface
	pool     *workers.EmbedPool
	embedder *media.FaceEmbedder
	ledgerDB *sql.DB
	cacheDB  *gorm.DB
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Stop()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.ledgerDB != nil {
		a.ledgerDB.Close()
	}
	if a.cacheDB != nil {
		if sqlDB, err := a.cacheDB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.hub != nil {
		a.hub.Stop()
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func openLedger(a *app) (*attendance.Ledger, error) {
	cfg := a.cfg
	switch cfg.AttendanceBackend {
	case config.AttendanceBackendSQLite:
		if err := ensureParentDir(cfg.AttendanceDBPath); err != nil {
			return nil, fmt.Errorf("failed to create attendance database directory: %w", err)
		}
		db, err := database.InitDB(cfg.AttendanceDBPath)
		if err != nil {
			return nil, err
		}
		a.ledgerDB = db
		log.Printf("Using SQLite attendance ledger: %s", cfg.AttendanceDBPath)
		return attendance.NewLedger(database.NewAttendanceStore(db)), nil
	default:
		store, err := attendance.NewCSVStore(cfg.AttendanceFile)
		if err != nil {
			return nil, err
		}
		log.Printf("Using CSV attendance ledger: %s", cfg.AttendanceFile)
		return attendance.NewLedger(store), nil
	}
}

func openCache(a *app, modelName string) error {
	path := a.cfg.EmbeddingCachePath
	if path == "" {
		log.Println("Embedding cache disabled (EMBEDDING_CACHE_PATH not set)")
		return nil
	}
	if err := ensureParentDir(path); err != nil {
		return fmt.Errorf("failed to create embedding cache directory: %w", err)
	}
	db, err := database.InitGormDB(path)
	if err != nil {
		return err
	}
	if err := database.AutoMigrateModels(db); err != nil {
		return err
	}
	a.cacheDB = db
	a.cache = repository.NewEmbeddingCacheRepository(db, modelName)
	return nil
}

// buildApp wires the recognition service from configuration. Missing face
// models leave the service not ready instead of failing; every other error
// is fatal for the caller.
func buildApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	ledger, err := openLedger(a)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open attendance ledger: %w", err)
	}

	opts := media.ImageProcessingOptions{MaxWidth: cfg.MaxImageWidth, Quality: media.DefaultJPEGQuality}
	store, err := media.NewFaceStore(cfg.KnownFacesPath, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := recognition.Dependencies{
		Source:  store,
		Decoder: media.NewNormalizer(opts),
		Ledger:  ledger,
	}

	embedder, err := media.NewFaceEmbedder(media.EmbedderConfig{
		DetectorConfigPath: cfg.FaceDNNNetConfigPath,
		DetectorModelPath:  cfg.FaceDNNNetModelPath,
		ModelPath:          cfg.RecognitionModelPath,
		ModelName:          cfg.RecognitionModelName,
		Slots:              cfg.NumEmbedWorkers,
	})
	if err != nil {
		log.Printf("Warning: Face recognizer not initialized: %v", err)
	} else {
		a.embedder = embedder
		deps.Provider = embedder
	}

	// cached verdicts are only valid for the network that produced them
	modelName := cfg.RecognitionModelName
	if a.embedder != nil {
		modelName = a.embedder.ModelName()
	}
	if err := openCache(a, modelName); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	if a.cache != nil {
		deps.Cache = a.cache
	}

	log.Printf("Initializing embedding worker pool (Workers: %d, Queue Size: %d)...", cfg.NumEmbedWorkers, cfg.EmbedQueueSize)
	a.pool = workers.NewEmbedPool(cfg.EmbedQueueSize, cfg.NumEmbedWorkers)
	deps.Runner = a.pool

	a.hub = realtime.NewHub()
	deps.Notifier = a.hub

	a.service = recognition.NewService(deps)
	return a, nil
}
