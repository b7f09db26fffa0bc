package recognition

import "math"

type MatchKind int

const (
	NoFaceDetected MatchKind = iota
	Matched
	Unmatched
)

func (k MatchKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case Unmatched:
		return "unmatched"
	default:
		return "no_face"
	}
}

// MatchResult is the outcome of one recognition. Identity, Confidence and
// Distance are set for Matched only; Distance is also set for Unmatched when
// the gallery was not empty. Diagnostic explains a NoFaceDetected caused by
// a decode or provider failure.
type MatchResult struct {
	Kind       MatchKind
	Identity   string
	Confidence float64
	Distance   float64
	Diagnostic string
}

// Confidence maps an accepted distance to [0,1]: 1 at distance 0, falling
// to 0 at the tolerance boundary.
func Confidence(distance, tolerance float64) float64 {
	return math.Max(0, 1-distance/tolerance)
}

// Match scans every enrolled embedding and accepts the global nearest one if
// it lies strictly within tolerance. On exactly equal distances the pair met
// first in scan order wins; scan order is the gallery's identity order, then
// each identity's embedding order.
func Match(g *Gallery, probe Embedding, tolerance float64) MatchResult {
	bestName := ""
	bestDistance := math.Inf(1)

	g.each(func(name string, emb Embedding) {
		d := Distance(emb, probe)
		if d < bestDistance {
			bestDistance = d
			bestName = name
		}
	})

	if bestName == "" {
		return MatchResult{Kind: Unmatched}
	}
	if bestDistance >= tolerance {
		return MatchResult{Kind: Unmatched, Distance: bestDistance}
	}
	return MatchResult{
		Kind:       Matched,
		Identity:   bestName,
		Confidence: Confidence(bestDistance, tolerance),
		Distance:   bestDistance,
	}
}
