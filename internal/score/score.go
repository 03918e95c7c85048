// Package score holds the pure ranking math: cosine similarity, the
// composite final score and the age-based trending classification.
package score

import (
	"math"
	"strings"
	"time"
)

const (
	SimilarityWeight  = 0.60
	RecencyWeight     = 0.25
	CredibilityWeight = 0.15

	// RecencyHorizonHours is the age at which the recency factor reaches zero.
	RecencyHorizonHours = 48.0

	// UnknownAgeHours is used whenever a publish date is missing or unparseable.
	UnknownAgeHours = 24.0

	// DefaultScore replaces NaN similarities and degenerate final scores.
	DefaultScore = 0.5

	credibleBoost = 1.2
	neutralBoost  = 1.0

	// TrendingThreshold is exclusive: a score must exceed it to trend.
	TrendingThreshold = 0.5
)

// CredibleSources are matched case-insensitively as substrings of a source name.
var CredibleSources = []string{
	"reuters",
	"associated press",
	"bloomberg",
	"techcrunch",
	"forbes",
}

// CosineSimilarity returns dot(a,b)/(|a||b|). Vectors of different length are
// compared as if the shorter one were padded with zeros. Empty or zero-magnitude
// inputs yield 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	n := max(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		var x, y float64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ClampSimilarity maps NaN to DefaultScore and everything else into [0,1].
func ClampSimilarity(sim float64) float64 {
	if math.IsNaN(sim) {
		return DefaultScore
	}
	return clamp01(sim)
}

// AgeHours returns the age of a document in hours. Unknown dates count as
// UnknownAgeHours.
func AgeHours(publishedAt time.Time, known bool, now time.Time) float64 {
	if !known || publishedAt.IsZero() {
		return UnknownAgeHours
	}
	return now.Sub(publishedAt).Hours()
}

// Recency decays linearly from 1 to 0 over RecencyHorizonHours.
func Recency(ageHours float64) float64 {
	if math.IsNaN(ageHours) {
		ageHours = UnknownAgeHours
	}
	return clamp01(1 - ageHours/RecencyHorizonHours)
}

// Credibility returns the boost applied to well-known outlets.
func Credibility(source string) float64 {
	lower := strings.ToLower(source)
	for _, s := range CredibleSources {
		if strings.Contains(lower, s) {
			return credibleBoost
		}
	}
	return neutralBoost
}

// FinalScore combines similarity, recency and source credibility into a
// value in [0,1].
func FinalScore(similarity, ageHours float64, source string) float64 {
	s := SimilarityWeight*ClampSimilarity(similarity) +
		RecencyWeight*Recency(ageHours) +
		CredibilityWeight*Credibility(source)

	if math.IsNaN(s) || s <= 0 {
		return DefaultScore
	}
	return clamp01(s)
}

// TrendingScore buckets a document's age into a coarse trending signal.
func TrendingScore(ageHours float64) float64 {
	if math.IsNaN(ageHours) {
		ageHours = UnknownAgeHours
	}
	switch {
	case ageHours < 1:
		return 0.9
	case ageHours < 6:
		return 0.7
	case ageHours < 24:
		return 0.5
	default:
		return 0.3
	}
}

// IsTrending reports whether score is above TrendingThreshold.
func IsTrending(score float64) bool {
	return score > TrendingThreshold
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
