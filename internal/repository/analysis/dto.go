package analysis

import (
	"fmt"
	"strconv"

	"github.com/lexsieve/lexsieve/internal/domain/verdict"
)

func verdictToHash(archiveID string, v verdict.Verdict) map[string]string {
	return map[string]string{
		"archive_id": archiveID,
		"relevant":   boolField(v.Relevant()),
		"confidence": strconv.FormatFloat(v.Confidence(), 'f', -1, 64),
		"rationale":  v.Rationale(),
		"degraded":   boolField(v.IsDegraded()),
	}
}

func verdictFromHash(m map[string]string) (verdict.Verdict, error) {
	confidence, err := strconv.ParseFloat(m["confidence"], 64)
	if err != nil {
		return verdict.Verdict{}, fmt.Errorf("parse confidence: %w", err)
	}
	return verdict.Reconstruct(
		m["relevant"] == "1",
		confidence,
		m["rationale"],
		m["degraded"] == "1",
	), nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
