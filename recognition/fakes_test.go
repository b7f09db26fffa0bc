package recognition

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/camden-git/faceattend/attendance"
)

// keyedImage is a 1x1 image that remembers which payload it came from.
type keyedImage struct {
	key string
}

func (keyedImage) ColorModel() color.Model { return color.RGBAModel }
func (keyedImage) Bounds() image.Rectangle { return image.Rect(0, 0, 1, 1) }
func (keyedImage) At(int, int) color.Color { return color.RGBA{} }

// keyDecoder decodes a payload into a keyedImage. Payloads starting with
// "corrupt" fail to decode.
type keyDecoder struct{}

func (keyDecoder) Decode(data []byte) (image.Image, error) {
	key := string(data)
	if key == "" || strings.HasPrefix(key, "corrupt") {
		return nil, errors.New("unsupported image format")
	}
	return keyedImage{key: key}, nil
}

// mapProvider returns the embedding registered for an image key. Unknown keys
// have no face; keys starting with "broken" make the provider fail.
type mapProvider struct {
	mu    sync.Mutex
	faces map[string]Embedding
	delay time.Duration
	calls atomic.Int64
}

func newMapProvider(faces map[string]Embedding) *mapProvider {
	return &mapProvider{faces: faces}
}

func (p *mapProvider) set(key string, emb Embedding) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faces[key] = emb
}

func (p *mapProvider) Embed(ctx context.Context, img image.Image) (Embedding, bool, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	key := img.(keyedImage).key
	if strings.HasPrefix(key, "broken") {
		return nil, false, errors.New("model inference failed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	emb, ok := p.faces[key]
	return emb, ok, nil
}

type memoryFile struct {
	name string
	data []byte
}

// memorySource keeps identities in lexical order and images in insertion order.
type memorySource struct {
	mu         sync.Mutex
	identities map[string][]memoryFile
	missing    bool
	failWrites bool
	deleted    []string
}

func newMemorySource() *memorySource {
	return &memorySource{identities: map[string][]memoryFile{}}
}

func (m *memorySource) add(identity string, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files := m.identities[identity]
	for _, key := range keys {
		files = append(files, memoryFile{name: key + ".jpg", data: []byte(key)})
	}
	m.identities[identity] = files
}

func (m *memorySource) fileNames(identity string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, f := range m.identities[identity] {
		names = append(names, f.name)
	}
	return names
}

func (m *memorySource) ListIdentities() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missing {
		return nil, nil
	}
	names := make([]string, 0, len(m.identities))
	for name := range m.identities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memorySource) ListImages(identity string) ([]ImageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []ImageRef
	for _, f := range m.identities[identity] {
		refs = append(refs, ImageRef{Identity: identity, Name: f.name, ModTime: 1})
	}
	return refs, nil
}

func (m *memorySource) ReadImage(ref ImageRef) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.identities[ref.Identity] {
		if f.name == ref.Name {
			return f.data, nil
		}
	}
	return nil, os.ErrNotExist
}

func (m *memorySource) WriteImage(identity, name string, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("disk full")
	}
	m.identities[identity] = append(m.identities[identity], memoryFile{name: name, data: []byte(img.(keyedImage).key)})
	return nil
}

func (m *memorySource) HasIdentity(identity string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.identities[identity]
	return ok, nil
}

func (m *memorySource) DeleteIdentity(identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.identities, identity)
	m.deleted = append(m.deleted, identity)
	return nil
}

// memoryCache is an EmbeddingCache keyed by path.
type memoryCache struct {
	mu        sync.Mutex
	entries   map[string]CachedEmbedding
	forgotten []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]CachedEmbedding{}}
}

func (c *memoryCache) Lookup(path string, _ int64) (CachedEmbedding, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[path]
	return entry, ok, nil
}

func (c *memoryCache) Store(path string, _ int64, entry CachedEmbedding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = entry
	return nil
}

func (c *memoryCache) ForgetIdentity(identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.entries {
		if strings.HasPrefix(path, identity+"/") {
			delete(c.entries, path)
		}
	}
	c.forgotten = append(c.forgotten, identity)
	return nil
}

type recordingStore struct {
	mu      sync.Mutex
	records []attendance.Record
	failErr error
}

func (s *recordingStore) Append(rec attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingStore) ReadAll() ([]attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]attendance.Record(nil), s.records...), nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	records []attendance.Record
}

func (n *recordingNotifier) NotifyAttendance(rec attendance.Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
}

var fixedNow = time.Date(2024, 3, 5, 10, 11, 12, 0, time.Local)

type testRig struct {
	source   *memorySource
	provider *mapProvider
	store    *recordingStore
	cache    *memoryCache
	notifier *recordingNotifier
	service  *Service
}

func newTestRig(faces map[string]Embedding) *testRig {
	rig := &testRig{
		source:   newMemorySource(),
		provider: newMapProvider(faces),
		store:    &recordingStore{},
		cache:    newMemoryCache(),
		notifier: &recordingNotifier{},
	}
	rig.service = NewService(Dependencies{
		Source:   rig.source,
		Decoder:  keyDecoder{},
		Provider: rig.provider,
		Ledger:   attendance.NewLedger(rig.store),
		Cache:    rig.cache,
		Notifier: rig.notifier,
		Clock:    func() time.Time { return fixedNow },
	})
	return rig
}
