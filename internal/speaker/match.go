package speaker

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tier is the confidence class of a similarity score.
type Tier string

const (
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
	TierNoMatch Tier = "no_match"
)

// Fixed policy thresholds on the rescaled similarity.
const (
	HighThreshold   = 0.95
	MediumThreshold = 0.85
	LowThreshold    = 0.70
)

// EmbeddingDim is the vector length the embedding model produces.
const EmbeddingDim = 192

// Profile is a stored reference embedding.
type Profile struct {
	ID        string
	UserID    string
	Embedding []float64
}

// MatchResult is the best profile for an embedding.
type MatchResult struct {
	Similarity float64
	Tier       Tier
	MatchFound bool
	// Best is nil when no profile scored above zero.
	Best *Profile
	// Skipped counts profiles ignored for a dimension mismatch.
	Skipped int
}

// Classify maps a similarity in [0,1] to its tier. Only high is a match.
func Classify(similarity float64) (Tier, bool) {
	switch {
	case similarity >= HighThreshold:
		return TierHigh, true
	case similarity >= MediumThreshold:
		return TierMedium, false
	case similarity >= LowThreshold:
		return TierLow, false
	default:
		return TierNoMatch, false
	}
}

// Similarity returns cosine similarity rescaled from [-1,1] to [0,1].
// Zero vectors and mismatched lengths score 0.
func Similarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	cos := floats.Dot(a, b) / (na * nb)
	cos = math.Max(-1, math.Min(1, cos))
	return (cos + 1) / 2
}

// Normalize scales v to unit length. A zero vector is returned unchanged.
func Normalize(v []float64) []float64 {
	out := append([]float64(nil), v...)
	if n := floats.Norm(out, 2); n > 0 {
		floats.Scale(1/n, out)
	}
	return out
}

// Match compares embedding with every profile and keeps the highest
// similarity. Profiles whose dimension differs from the embedding are
// skipped.
func Match(embedding []float64, profiles []Profile) MatchResult {
	res := MatchResult{Tier: TierNoMatch}
	for i := range profiles {
		p := &profiles[i]
		if len(p.Embedding) != len(embedding) {
			res.Skipped++
			continue
		}
		if sim := Similarity(embedding, p.Embedding); sim > res.Similarity {
			res.Similarity = sim
			res.Best = p
		}
	}
	res.Tier, res.MatchFound = Classify(res.Similarity)
	return res
}
