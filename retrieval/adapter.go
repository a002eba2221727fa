package retrieval

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/framepoint/framepoint/searchindex"
)

// Searcher is the similarity-search contract the retrieval layer consumes.
type Searcher interface {
	Search(ctx context.Context, query string, filter searchindex.Filter, k int) ([]searchindex.Segment, error)
}

// Reranker reorders segments by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, segments []searchindex.Segment) ([]searchindex.Segment, error)
}

// Adapter runs filtered searches and formats the hits into context lines.
type Adapter struct {
	index    Searcher
	reranker Reranker
}

// NewAdapter builds an Adapter. reranker may be nil to keep the index order.
func NewAdapter(index Searcher, reranker Reranker) (*Adapter, error) {
	if index == nil {
		return nil, errors.New("NewAdapter: index is nil")
	}
	return &Adapter{index: index, reranker: reranker}, nil
}

// Search returns up to k formatted context lines for the query. A reranker
// failure never fails the search; the index order is kept instead.
func (a *Adapter) Search(ctx context.Context, query string, filter searchindex.Filter, k int) ([]string, error) {
	if filter.UserID == "" {
		return nil, errors.New("Search: filter.UserID is empty")
	}

	segments, err := a.index.Search(ctx, query, filter, k)
	if err != nil {
		return nil, fmt.Errorf("search segments: %w", err)
	}

	if a.reranker != nil && len(segments) > 1 {
		ranked, err := a.reranker.Rerank(ctx, query, segments)
		if err != nil {
			log.WithFields(log.Fields{"user_id": filter.UserID, "results": len(segments)}).
				Warnf("rerank failed, keeping index order: %v", err)
		} else {
			segments = ranked
		}
	}

	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, FormatSegment(seg))
	}
	return lines, nil
}
