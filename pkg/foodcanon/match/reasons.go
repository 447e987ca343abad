package match

// Reason code prefixes.
const (
	reasonOverlap  = "token_overlap:"
	reasonJW       = "jw:"
	reasonSegment  = "segment:"
	ReasonCategory = "category:match"
	ReasonSynonym  = "synonym:confirmed"
	ReasonNoCore   = "core:empty"
)

// ReasonCodes turns a breakdown into discrete explanation codes, in a fixed
// order: overlap, similarity, segment, then the binary signals.
func ReasonCodes(b Breakdown) []string {
	codes := []string{
		reasonOverlap + overlapBand(b.Overlap),
		reasonJW + jwBand(b),
		reasonSegment + b.SegmentLevel,
	}
	if b.Affinity > 0 {
		codes = append(codes, ReasonCategory)
	}
	if b.Synonym > 0 {
		codes = append(codes, ReasonSynonym)
	}
	return codes
}

func overlapBand(v float64) string {
	switch {
	case v >= 0.6:
		return "high"
	case v >= 0.3:
		return "medium"
	case v > 0:
		return "low"
	default:
		return "none"
	}
}

func jwBand(b Breakdown) string {
	switch {
	case b.Gated:
		return "gated"
	case b.JWGated >= 0.9:
		return "high"
	case b.JWGated >= 0.75:
		return "medium"
	default:
		return "low"
	}
}
