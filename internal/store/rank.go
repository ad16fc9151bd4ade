package store

import (
	"sort"
	"strings"

	"github.com/sells-group/invoice-audit/internal/model"
)

// rankDocuments orders candidate documents by how many distinct search terms
// they contain and returns the topK best matches. Documents matching zero
// terms are dropped. Ties keep the newer document first.
func rankDocuments(docs []model.QADocument, terms []string, topK int) []model.QADocument {
	type scored struct {
		doc  model.QADocument
		hits int
	}

	var candidates []scored
	for _, doc := range docs {
		content := strings.ToLower(doc.Content)
		hits := 0
		for _, term := range terms {
			if term == "" {
				continue
			}
			if strings.Contains(content, strings.ToLower(term)) {
				hits++
			}
		}
		if hits > 0 {
			candidates = append(candidates, scored{doc: doc, hits: hits})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].hits != candidates[j].hits {
			return candidates[i].hits > candidates[j].hits
		}
		return candidates[i].doc.CreatedAt.After(candidates[j].doc.CreatedAt)
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	result := make([]model.QADocument, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c.doc)
	}
	return result
}

// likeClauses builds one LIKE pattern per non-empty term for the initial
// candidate fetch. The precise ranking happens in rankDocuments.
func likeClauses(terms []string) []string {
	patterns := make([]string, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		patterns = append(patterns, "%"+strings.ToLower(term)+"%")
	}
	return patterns
}
