package recognition

import "sync/atomic"

// Gallery is an immutable set of enrolled identities. A new Gallery is built
// for every change and published through an Index.
type Gallery struct {
	names      []string
	embeddings map[string][]Embedding
	total      int
}

// EmptyGallery is the state before anything has been loaded.
func EmptyGallery() *Gallery {
	return &Gallery{embeddings: map[string][]Embedding{}}
}

// galleryBuilder accumulates identities in scan order. Identities without
// embeddings are dropped by add.
type galleryBuilder struct {
	g *Gallery
}

func newGalleryBuilder() *galleryBuilder {
	return &galleryBuilder{g: EmptyGallery()}
}

func (b *galleryBuilder) add(name string, embs []Embedding) bool {
	if len(embs) == 0 {
		return false
	}
	if _, exists := b.g.embeddings[name]; exists {
		return false
	}
	b.g.names = append(b.g.names, name)
	b.g.embeddings[name] = embs
	b.g.total += len(embs)
	return true
}

func (b *galleryBuilder) build() *Gallery {
	g := b.g
	b.g = nil
	return g
}

// Len is the number of identities.
func (g *Gallery) Len() int {
	return len(g.names)
}

// TotalEmbeddings is the number of embeddings across all identities.
func (g *Gallery) TotalEmbeddings() int {
	return g.total
}

func (g *Gallery) Has(name string) bool {
	_, ok := g.embeddings[name]
	return ok
}

// Names returns identity names in scan order.
func (g *Gallery) Names() []string {
	return append([]string(nil), g.names...)
}

// Embeddings returns a copy of the embedding list of one identity.
func (g *Gallery) Embeddings(name string) []Embedding {
	return append([]Embedding(nil), g.embeddings[name]...)
}

// Counts maps every identity to its number of embeddings.
func (g *Gallery) Counts() map[string]int {
	counts := make(map[string]int, len(g.names))
	for _, name := range g.names {
		counts[name] = len(g.embeddings[name])
	}
	return counts
}

// each visits every (identity, embedding) pair in scan order.
func (g *Gallery) each(fn func(name string, emb Embedding)) {
	for _, name := range g.names {
		for _, emb := range g.embeddings[name] {
			fn(name, emb)
		}
	}
}

// Index publishes the current Gallery. Readers never block and always see a
// complete gallery; writers replace it with a single pointer swap.
type Index struct {
	current atomic.Pointer[Gallery]
}

func NewIndex() *Index {
	idx := &Index{}
	idx.current.Store(EmptyGallery())
	return idx
}

// Snapshot returns the gallery to use for the duration of one operation.
func (i *Index) Snapshot() *Gallery {
	return i.current.Load()
}

// Swap publishes g and returns the gallery it replaced.
func (i *Index) Swap(g *Gallery) *Gallery {
	if g == nil {
		g = EmptyGallery()
	}
	return i.current.Swap(g)
}
