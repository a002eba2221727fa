package retrieval

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/framepoint/framepoint/searchindex"
)

// Decision is the resolved retrieval scope for one turn. An empty
// TargetVideo means the turn searches across all of the user's videos.
type Decision struct {
	TargetVideo string
	Switched    bool
}

// Router decides which video a turn's retrieval is scoped to. It follows the
// user's question rather than the client's sticky selection: when the best
// evidence for a query lives in a different video, the scope switches there.
type Router struct {
	index Searcher
}

func NewRouter(index Searcher) (*Router, error) {
	if index == nil {
		return nil, errors.New("NewRouter: index is nil")
	}
	return &Router{index: index}, nil
}

// Resolve picks the turn's target video.
//
// The best-matching video for the query wins when no scope is active yet.
// An active scope is kept as long as it still appears among the query's top
// three matches; outside that tolerance band the scope switches to the best
// match. With no search results at all the supplied scope is kept unchanged.
// Resolve never fails a turn: a scope search error just means no evidence.
func (r *Router) Resolve(ctx context.Context, query, userID, current string) Decision {
	filter := searchindex.Filter{UserID: userID}

	best := r.topFilenames(ctx, query, filter, 1)
	bestMatch := ""
	if len(best) > 0 {
		bestMatch = best[0]
	}

	if current == "" {
		return Decision{TargetVideo: bestMatch}
	}

	for _, name := range r.topFilenames(ctx, query, filter, 3) {
		if name == current {
			return Decision{TargetVideo: current}
		}
	}

	if bestMatch != "" && bestMatch != current {
		log.WithFields(log.Fields{"user_id": userID, "from": current, "to": bestMatch}).
			Info("scope switched to better matching video")
		return Decision{TargetVideo: bestMatch, Switched: true}
	}
	return Decision{TargetVideo: current}
}

func (r *Router) topFilenames(ctx context.Context, query string, filter searchindex.Filter, k int) []string {
	segments, err := r.index.Search(ctx, query, filter, k)
	if err != nil {
		log.WithFields(log.Fields{"user_id": filter.UserID}).
			Warnf("scope search failed, treating as no results: %v", err)
		return nil
	}
	names := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Filename != "" {
			names = append(names, seg.Filename)
		}
	}
	return names
}
