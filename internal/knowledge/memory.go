package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryRetriever ranks documents by the share of query terms they contain.
type MemoryRetriever struct {
	mu   sync.RWMutex
	docs []Document
}

func NewMemoryRetriever(docs ...Document) *MemoryRetriever {
	return &MemoryRetriever{docs: append([]Document(nil), docs...)}
}

func (m *MemoryRetriever) Ingest(_ context.Context, content, source string) error {
	m.mu.Lock()
	m.docs = append(m.docs, Document{Content: content, Source: source})
	m.mu.Unlock()
	return nil
}

func (m *MemoryRetriever) Query(_ context.Context, text string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 3
	}
	terms := tokenize(text)

	m.mu.RLock()
	ranked := make([]Document, 0, len(m.docs))
	for _, d := range m.docs {
		d.Distance = distance(terms, tokenize(d.Content+" "+d.Source))
		ranked = append(ranked, d)
	}
	m.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Distance < ranked[j].Distance })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func distance(query []string, doc []string) float64 {
	if len(query) == 0 {
		return 1
	}
	present := make(map[string]bool, len(doc))
	for _, t := range doc {
		present[t] = true
	}
	hits := 0
	for _, t := range query {
		if present[t] {
			hits++
		}
	}
	return 1 - float64(hits)/float64(len(query))
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
