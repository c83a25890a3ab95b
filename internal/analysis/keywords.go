package analysis

import (
	"sort"
	"strings"
	"unicode"

	"market-intel/internal/models"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"new": true, "hot": true, "sale": true, "wholesale": true, "high": true,
	"quality": true, "custom": true, "oem": true, "odm": true, "free": true,
	"best": true, "top": true, "pcs": true, "set": true, "pro": true,
	"mini": true, "plus": true, "1m": true, "2m": true,
}

// ExtractKeywords builds the trending keyword list from record titles:
// lowercase tokens, stop words and short tokens filtered, ranked by frequency
// with alphabetical tie-break.
func ExtractKeywords(records []models.ScrapedRecord, limit int) []models.KeywordCount {
	counts := make(map[string]int)

	for _, r := range records {
		for _, token := range tokenize(r.Title) {
			if len(token) < 3 || stopWords[token] {
				continue
			}
			counts[token]++
		}
	}

	if len(counts) == 0 {
		return nil
	}

	keywords := make([]models.KeywordCount, 0, len(counts))
	for kw, n := range counts {
		keywords = append(keywords, models.KeywordCount{Keyword: kw, Count: n})
	}
	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Count != keywords[j].Count {
			return keywords[i].Count > keywords[j].Count
		}
		return keywords[i].Keyword < keywords[j].Keyword
	})

	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
