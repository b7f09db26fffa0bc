package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	AttendanceBackendCSV    = "csv"
	AttendanceBackendSQLite = "sqlite"
)

const (
	defaultTolerance       = 0.6
	defaultMaxImageWidth   = 640
	defaultMaxUploadBytes  = 50 * 1024 * 1024
	defaultNumEmbedWorkers = 4
	defaultEmbedQueueSize  = 64
)

type Config struct {
	// enrollment image source, one sub-directory per identity
	KnownFacesPath string

	// attendance ledger
	AttendanceBackend string // "csv" or "sqlite"
	AttendanceFile    string // csv ledger path
	AttendanceDBPath  string // sqlite ledger path

	// embedding cache database, empty disables the cache
	EmbeddingCachePath string

	// matching
	Tolerance float64

	// request handling
	MaxImageWidth  int
	MaxUploadBytes int64
	AllowedOrigins []string
	Port           string
	AdminKeyHash   string // bcrypt hash, empty leaves admin routes open

	// worker settings
	NumEmbedWorkers int
	EmbedQueueSize  int
	ReloadInterval  time.Duration // 0 disables the periodic reload

	// face detection model paths (DNN)
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string

	// face recognition (embedding) model
	RecognitionModelPath string
	RecognitionModelName string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val < 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	knownFaces := getEnvOrDefault("KNOWN_FACES_PATH", filepath.Join(".", "known_faces"))
	absKnownFaces, err := filepath.Abs(knownFaces)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for known faces directory '%s': %w", knownFaces, err)
	}

	backend := strings.ToLower(getEnvOrDefault("ATTENDANCE_BACKEND", AttendanceBackendCSV))
	if backend != AttendanceBackendCSV && backend != AttendanceBackendSQLite {
		return Config{}, fmt.Errorf("unsupported ATTENDANCE_BACKEND '%s' (expected %q or %q)", backend, AttendanceBackendCSV, AttendanceBackendSQLite)
	}

	cfg := Config{
		KnownFacesPath:       absKnownFaces,
		AttendanceBackend:    backend,
		AttendanceFile:       getEnvOrDefault("ATTENDANCE_FILE", "attendance.csv"),
		AttendanceDBPath:     getEnvOrDefault("ATTENDANCE_DB_PATH", "attendance.db"),
		EmbeddingCachePath:   os.Getenv("EMBEDDING_CACHE_PATH"),
		Tolerance:            getEnvFloatOrDefault("RECOGNITION_TOLERANCE", defaultTolerance),
		MaxImageWidth:        getEnvIntOrDefault("MAX_IMAGE_WIDTH", defaultMaxImageWidth),
		MaxUploadBytes:       int64(getEnvIntOrDefault("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
		AllowedOrigins:       splitList(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:5173")),
		Port:                 getEnvOrDefault("PORT", "8080"),
		AdminKeyHash:         os.Getenv("ADMIN_KEY_HASH"),
		NumEmbedWorkers:      getEnvIntOrDefault("NUM_EMBED_WORKERS", defaultNumEmbedWorkers),
		EmbedQueueSize:       getEnvIntOrDefault("EMBED_QUEUE_SIZE", defaultEmbedQueueSize),
		ReloadInterval:       getEnvDurationOrDefault("RELOAD_INTERVAL", 0),
		FaceDNNNetConfigPath: getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt"),
		FaceDNNNetModelPath:  getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel"),
		RecognitionModelPath: getEnvOrDefault("FACE_RECOGNITION_MODEL_PATH", "./models/arcface.onnx"),
		RecognitionModelName: getEnvOrDefault("FACE_RECOGNITION_MODEL_NAME", "arcface"),
	}

	return cfg, nil
}
