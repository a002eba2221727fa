// Package searchindex stores transcript segments in Qdrant and retrieves
// them by embedding similarity, scoped to one user and optionally one video.
package searchindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/qdrant/go-client/qdrant"

	"github.com/framepoint/framepoint/provider"
)

// Segment is one indexed transcript window with its citation metadata.
type Segment struct {
	Text      string
	Filename  string
	VideoID   string
	UserID    string
	Title     string
	Author    string
	StartTime float64
	EndTime   float64
}

// Filter constrains a search. UserID is the isolation boundary and is always
// required; Filename narrows the search to one video when set.
type Filter struct {
	UserID   string
	Filename string
}

// Options configures an Index.
type Options struct {
	// Collection is the Qdrant collection name (defaults to "video-segments").
	Collection string

	// EmbeddingModel produces the segment and query vectors
	// (defaults to text-embedding-3-small).
	EmbeddingModel string

	// VectorSize must match the embedding model's output width (defaults to 1536).
	VectorSize uint64
}

// Index is the vector store for transcript segments.
type Index struct {
	qdrant *qdrant.Client
	openai *openai.Client
	opts   Options
}

func New(qdrantClient *qdrant.Client, openaiClient *openai.Client, opts Options) (*Index, error) {
	if qdrantClient == nil {
		return nil, errors.New("New: qdrant client is nil")
	}
	if openaiClient == nil {
		return nil, errors.New("New: openai client is nil")
	}
	if opts.Collection == "" {
		opts.Collection = "video-segments"
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	if opts.VectorSize == 0 {
		opts.VectorSize = 1536
	}
	return &Index{qdrant: qdrantClient, openai: openaiClient, opts: opts}, nil
}

// EnsureCollection creates the segment collection if it does not exist yet.
func (ix *Index) EnsureCollection(ctx context.Context) error {
	exists, err := ix.qdrant.CollectionExists(ctx, ix.opts.Collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", ix.opts.Collection, err)
	}
	if exists {
		return nil
	}
	err = ix.qdrant.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.opts.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     ix.opts.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", ix.opts.Collection, err)
	}
	return nil
}

// embedBatchSize caps how many texts go into one embeddings request.
const embedBatchSize = 128

// Upsert embeds the segment texts and writes one point per segment,
// returning the number of points written.
func (ix *Index) Upsert(ctx context.Context, segments []Segment) (int, error) {
	written := 0
	for start := 0; start < len(segments); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]

		texts := make([]string, 0, len(batch))
		for _, seg := range batch {
			texts = append(texts, seg.Text)
		}
		vectors, err := ix.embed(ctx, texts)
		if err != nil {
			return written, err
		}

		points := make([]*qdrant.PointStruct, 0, len(batch))
		for i, seg := range batch {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(segmentPayload(seg)),
			})
		}

		_, err = ix.qdrant.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: ix.opts.Collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return written, fmt.Errorf("upsert %d points: %w", len(points), err)
		}
		written += len(points)
	}
	return written, nil
}

// Search embeds the query and returns the k nearest segments the filter
// allows, best match first.
func (ix *Index) Search(ctx context.Context, query string, filter Filter, k int) ([]Segment, error) {
	if filter.UserID == "" {
		return nil, errors.New("Search: filter.UserID is empty")
	}
	if k <= 0 {
		return nil, errors.New("Search: k must be > 0")
	}

	vectors, err := ix.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	points, err := ix.qdrant.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.opts.Collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Filter:         filterConditions(filter),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", ix.opts.Collection, err)
	}

	segments := make([]Segment, 0, len(points))
	for _, point := range points {
		segments = append(segments, payloadSegment(point.Payload))
	}
	return segments, nil
}

func (ix *Index) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := provider.Retry(ctx, func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
		return ix.openai.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model: openai.EmbeddingModel(ix.opts.EmbeddingModel),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(out) {
			return nil, fmt.Errorf("embed: vector index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		out[item.Index] = vec
	}
	return out, nil
}
