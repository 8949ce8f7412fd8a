// ---------------------------------------------------------------------------
// retrieval.go — keyword-ranked retrieval over a request's event set. This
// is the in-process retriever; it ranks by query-term overlap and caches
// ranked results per query.
// ---------------------------------------------------------------------------

package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/logsentinel-project/logsentinel/internal/core"
)

// Index ranks a fixed event set against free-text queries. Build one per
// request; it is read-only after construction and safe for concurrent use.
type Index struct {
	events []core.Event
	tokens [][]string
	cache  *lru.Cache[string, []core.Event]
	logger zerolog.Logger
}

// stopwords excluded from scoring. Query scaffolding like "within 10
// minutes" should not dominate term overlap.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "or": true, "and": true, "for": true,
	"from": true, "in": true, "on": true, "of": true, "to": true, "is": true,
	"was": true, "are": true, "with": true, "within": true, "minutes": true,
	"any": true, "all": true, "show": true, "find": true, "search": true,
}

// NewIndex builds an index over the events. The slice is copied: the token
// table is positional, so callers may reorder their slice afterwards without
// corrupting lookups. cacheSize bounds the per-query result cache.
func NewIndex(events []core.Event, cacheSize int, logger zerolog.Logger) *Index {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, _ := lru.New[string, []core.Event](cacheSize)

	idx := &Index{
		events: append([]core.Event(nil), events...),
		tokens: make([][]string, len(events)),
		cache:  cache,
		logger: logger.With().Str("component", "retrieval").Logger(),
	}
	for i, ev := range idx.events {
		idx.tokens[i] = tokenize(ev.Message + " " + ev.Source)
	}
	return idx
}

// Retrieve returns the k events with the highest term overlap against the
// query, ties broken by recency then ID. Zero-score events are excluded.
func (idx *Index) Retrieve(ctx context.Context, query string, k int) ([]core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 8
	}

	key := fmt.Sprintf("%d|%s", k, strings.ToLower(query))
	if hit, ok := idx.cache.Get(key); ok {
		return hit, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	type scored struct {
		i     int
		score int
	}
	var hits []scored
	for i := range idx.events {
		s := overlap(idx.tokens[i], terms)
		if s > 0 {
			hits = append(hits, scored{i, s})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		ta, tb := idx.events[hits[a].i].Timestamp, idx.events[hits[b].i].Timestamp
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return idx.events[hits[a].i].ID < idx.events[hits[b].i].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]core.Event, len(hits))
	for i, h := range hits {
		out[i] = idx.events[h.i]
	}

	idx.cache.Add(key, out)
	idx.logger.Debug().Str("query", query).Int("hits", len(out)).Msg("retrieval served")
	return out, nil
}

// Size returns the number of indexed events.
func (idx *Index) Size() int {
	return len(idx.events)
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

func overlap(doc, terms []string) int {
	score := 0
	for _, t := range terms {
		for _, d := range doc {
			if d == t || strings.HasPrefix(d, t) {
				score++
				break
			}
		}
	}
	return score
}
