package media

import (
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/camden-git/faceattend/recognition"
	"github.com/disintegration/imaging"
	"github.com/facette/natsort"
	"github.com/google/uuid"
)

// FaceStore keeps enrolled images on the local filesystem, one directory per
// identity: <basePath>/<identity>/<file>. Directories and files are listed in
// natural sort order so gallery scans are deterministic.
type FaceStore struct {
	basePath string // absolute path to KNOWN_FACES_PATH
	quality  int
}

var _ recognition.ImageSource = (*FaceStore)(nil)

// NewFaceStore does not create basePath; the first enrollment does.
func NewFaceStore(basePath string, opts ImageProcessingOptions) (*FaceStore, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid known faces path '%s': %w", basePath, err)
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	log.Printf("media.store: Initialized FaceStore at %s", absBasePath)
	return &FaceStore{basePath: absBasePath, quality: quality}, nil
}

func (fs *FaceStore) BasePath() string {
	return fs.basePath
}

// ListIdentities returns identity directory names. A missing base directory
// is reported as no identities.
func (fs *FaceStore) ListIdentities() ([]string, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("media.store: Known faces directory %s does not exist", fs.basePath)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read known faces directory '%s': %w", fs.basePath, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	natsort.Sort(names)
	return names, nil
}

// ListImages returns the supported image files of one identity. Other files,
// subdirectories and in-flight temp files are ignored.
func (fs *FaceStore) ListImages(identity string) ([]recognition.ImageRef, error) {
	dir, err := fs.identityDir(identity)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory '%s': %w", dir, err)
	}

	byName := make(map[string]int64, len(entries))
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || !IsRasterImage(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Printf("media.store: Warning - could not stat %s/%s: %v", identity, entry.Name(), err)
			continue
		}
		byName[entry.Name()] = info.ModTime().UnixNano()
		names = append(names, entry.Name())
	}
	natsort.Sort(names)

	refs := make([]recognition.ImageRef, 0, len(names))
	for _, name := range names {
		refs = append(refs, recognition.ImageRef{Identity: identity, Name: name, ModTime: byName[name]})
	}
	return refs, nil
}

func (fs *FaceStore) ReadImage(ref recognition.ImageRef) ([]byte, error) {
	fullPath, err := fs.GetFullPath(ref.Identity, ref.Name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image '%s': %w", ref.Path(), err)
	}
	return data, nil
}

// WriteImage encodes img as JPEG into the identity directory, creating it if
// needed. The file appears under its final name only once fully written.
func (fs *FaceStore) WriteImage(identity, name string, img image.Image) error {
	fullPath, err := fs.GetFullPath(identity, name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create identity directory '%s': %w", dir, err)
	}

	tmpPath := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	outFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file in '%s': %w", dir, err)
	}

	if err := imaging.Encode(outFile, img, imaging.JPEG, imaging.JPEGQuality(fs.quality)); err != nil {
		outFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode '%s': %w", name, err)
	}
	if err := outFile.Sync(); err != nil {
		outFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync '%s': %w", name, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close '%s': %w", name, err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move '%s' into place: %w", name, err)
	}

	log.Printf("media.store: Saved enrollment image %s", fullPath)
	return nil
}

func (fs *FaceStore) HasIdentity(identity string) (bool, error) {
	dir, err := fs.identityDir(identity)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(dir)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat '%s': %w", dir, err)
}

// DeleteIdentity removes the identity directory and everything in it. A
// missing directory is not an error.
func (fs *FaceStore) DeleteIdentity(identity string) error {
	dir, err := fs.identityDir(identity)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete identity directory '%s': %w", dir, err)
	}
	log.Printf("media.store: Removed identity directory %s", dir)
	return nil
}

func (fs *FaceStore) identityDir(identity string) (string, error) {
	if identity == "" || identity == "." || identity == ".." || strings.ContainsAny(identity, `/\`) {
		return "", fmt.Errorf("invalid identity name '%s'", identity)
	}
	return fs.GetFullPath(identity)
}

// GetFullPath joins elements onto the base path and refuses anything that
// resolves outside of it.
func (fs *FaceStore) GetFullPath(elems ...string) (string, error) {
	relativePath := filepath.Clean(filepath.Join(elems...))
	absFullPath, err := filepath.Abs(filepath.Join(fs.basePath, relativePath))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if absFullPath == fs.basePath || !strings.HasPrefix(absFullPath, fs.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}
	return absFullPath, nil
}
