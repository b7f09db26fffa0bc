package recognition

import (
	"context"
	"fmt"
	"log"
)

// Builder produces a complete Gallery from an ImageSource.
type Builder struct {
	source   ImageSource
	decoder  Decoder
	provider EmbeddingProvider
	cache    EmbeddingCache
	runner   Runner
}

type BuilderOption func(*Builder)

// WithCache lets the builder reuse embeddings of unchanged stored images.
func WithCache(cache EmbeddingCache) BuilderOption {
	return func(b *Builder) { b.cache = cache }
}

// WithRunner spreads per-image work over a worker pool.
func WithRunner(runner Runner) BuilderOption {
	return func(b *Builder) {
		if runner != nil {
			b.runner = runner
		}
	}
}

func NewBuilder(source ImageSource, decoder Decoder, provider EmbeddingProvider, opts ...BuilderOption) *Builder {
	b := &Builder{
		source:   source,
		decoder:  decoder,
		provider: provider,
		runner:   sequentialRunner{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type storedEmbedding struct {
	emb Embedding
	ok  bool
}

// Build scans the whole source. Images that cannot be loaded or contain no
// face are skipped; identities left without embeddings are excluded. The
// returned gallery is complete or Build fails; there is no partial result.
func (b *Builder) Build(ctx context.Context) (*Gallery, error) {
	if b == nil || b.source == nil || b.decoder == nil || b.provider == nil {
		return nil, ErrNotInitialized
	}

	names, err := b.source.ListIdentities()
	if err != nil {
		return nil, fmt.Errorf("failed to list enrolled identities: %w", err)
	}

	groups := make([][]storedEmbedding, len(names))
	var tasks []func(ctx context.Context)
	for i, name := range names {
		refs, err := b.source.ListImages(name)
		if err != nil {
			return nil, fmt.Errorf("failed to list images for '%s': %w", name, err)
		}
		groups[i] = make([]storedEmbedding, len(refs))
		for j, ref := range refs {
			slot := &groups[i][j]
			tasks = append(tasks, func(ctx context.Context) {
				slot.emb, slot.ok = b.embedStored(ctx, ref)
			})
		}
	}

	if err := b.runner.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("gallery build aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("gallery build aborted: %w", err)
	}

	gb := newGalleryBuilder()
	for i, name := range names {
		var embs []Embedding
		for _, slot := range groups[i] {
			if slot.ok {
				embs = append(embs, slot.emb)
			}
		}
		if gb.add(name, embs) {
			log.Printf("gallery: Loaded %d encodings for %s", len(embs), name)
		} else {
			log.Printf("gallery: Warning - no usable faces for %s, identity excluded", name)
		}
	}

	g := gb.build()
	log.Printf("gallery: Total known faces loaded: %d people with %d encodings", g.Len(), g.TotalEmbeddings())
	return g, nil
}

func (b *Builder) embedStored(ctx context.Context, ref ImageRef) (Embedding, bool) {
	if ctx.Err() != nil {
		return nil, false
	}

	if b.cache != nil {
		entry, hit, err := b.cache.Lookup(ref.Path(), ref.ModTime)
		if err != nil {
			log.Printf("gallery: Warning - embedding cache lookup failed for %s: %v", ref.Path(), err)
		} else if hit {
			return entry.Embedding, !entry.NoFace
		}
	}

	data, err := b.source.ReadImage(ref)
	if err != nil {
		log.Printf("gallery: Warning - could not load image %s: %v", ref.Path(), err)
		return nil, false
	}
	img, err := b.decoder.Decode(data)
	if err != nil {
		log.Printf("gallery: Warning - could not decode image %s: %v", ref.Path(), err)
		return nil, false
	}

	emb, found, err := b.provider.Embed(ctx, img)
	if err != nil {
		log.Printf("gallery: ERROR processing %s: %v", ref.Path(), err)
		return nil, false
	}
	if !found {
		log.Printf("gallery: Warning - no face detected in %s", ref.Path())
	}

	if b.cache != nil {
		entry := CachedEmbedding{Embedding: emb, NoFace: !found}
		if err := b.cache.Store(ref.Path(), ref.ModTime, entry); err != nil {
			log.Printf("gallery: Warning - failed to cache embedding for %s: %v", ref.Path(), err)
		}
	}
	return emb, found
}
