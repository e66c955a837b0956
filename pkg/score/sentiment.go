package score

import (
	"context"
	"strings"
	"unicode"
)

// Sentiment is a four-way classification of a piece of text. Compound is in
// [-1, 1]; positive/negative/neutral are proportions.
type Sentiment struct {
	Compound float64 `json:"compound"`
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Classifier classifies text sentiment. Implementations may call an
// external service; the keyword classifier below is the deterministic
// fallback when none is available.
type Classifier interface {
	Classify(ctx context.Context, text string) (Sentiment, error)
}

var defaultPositiveWords = []string{
	"amazing", "awesome", "best", "brilliant", "excellent", "fantastic",
	"good", "great", "incredible", "love", "perfect", "wonderful", "win",
	"beautiful", "happy", "fun", "cool", "nice", "epic", "insane",
}

var defaultNegativeWords = []string{
	"awful", "bad", "boring", "broken", "disappointing", "fail", "hate",
	"horrible", "sad", "scam", "terrible", "ugly", "worst", "wrong",
	"angry", "cringe", "disaster", "fake", "stupid", "trash",
}

// KeywordClassifier scores sentiment by counting matches against fixed
// positive and negative word lists.
type KeywordClassifier struct {
	positive map[string]bool
	negative map[string]bool
}

// NewKeywordClassifier builds the fallback classifier. Empty word lists use
// the built-in defaults.
func NewKeywordClassifier(positive, negative []string) *KeywordClassifier {
	if len(positive) == 0 {
		positive = defaultPositiveWords
	}
	if len(negative) == 0 {
		negative = defaultNegativeWords
	}
	c := &KeywordClassifier{
		positive: make(map[string]bool, len(positive)),
		negative: make(map[string]bool, len(negative)),
	}
	for _, w := range positive {
		c.positive[strings.ToLower(w)] = true
	}
	for _, w := range negative {
		c.negative[strings.ToLower(w)] = true
	}
	return c
}

func (c *KeywordClassifier) Classify(_ context.Context, text string) (Sentiment, error) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var pos, neg int
	for _, w := range words {
		if c.positive[w] {
			pos++
		}
		if c.negative[w] {
			neg++
		}
	}

	matched := pos + neg
	if matched == 0 {
		return Sentiment{Neutral: 1}, nil
	}

	total := float64(len(words))
	return Sentiment{
		Compound: float64(pos-neg) / float64(matched),
		Positive: float64(pos) / total,
		Negative: float64(neg) / total,
		Neutral:  1 - float64(matched)/total,
	}, nil
}

// normalizeText is the sentiment cache key: lowercased with collapsed
// whitespace, so identical content hits the cache regardless of formatting.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
