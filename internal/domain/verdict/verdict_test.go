package verdict

import "testing"

func TestNew_Valid(t *testing.T) {
	v, err := New(true, 0.72, "discusses the procedure directly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Relevant() {
		t.Error("Relevant() = false")
	}
	if v.Confidence() != 0.72 {
		t.Errorf("Confidence() = %v", v.Confidence())
	}
	if v.IsDegraded() {
		t.Error("IsDegraded() = true for a real judgment")
	}
}

func TestNew_ConfidenceBounds(t *testing.T) {
	for _, c := range []float64{-0.01, 1.01, 2, -5} {
		if _, err := New(true, c, ""); err == nil {
			t.Errorf("expected error for confidence %v", c)
		}
	}
	for _, c := range []float64{0, 1, 0.5} {
		if _, err := New(false, c, ""); err != nil {
			t.Errorf("unexpected error for confidence %v: %v", c, err)
		}
	}
}

func TestDegraded(t *testing.T) {
	v := Degraded()
	if v.Relevant() {
		t.Error("degraded verdict must not be relevant")
	}
	if v.Confidence() != DegradedConfidence {
		t.Errorf("Confidence() = %v, want %v", v.Confidence(), DegradedConfidence)
	}
	if v.Rationale() != DegradedRationale {
		t.Errorf("Rationale() = %q", v.Rationale())
	}
	if !v.IsDegraded() {
		t.Error("IsDegraded() = false")
	}
}

func TestIdentityConstants(t *testing.T) {
	if AuthorMatchConfidence != 0.95 {
		t.Errorf("AuthorMatchConfidence = %v", AuthorMatchConfidence)
	}
	if MentionMatchConfidence != 0.85 {
		t.Errorf("MentionMatchConfidence = %v", MentionMatchConfidence)
	}
	if DegradedConfidence != 0.0 {
		t.Errorf("DegradedConfidence = %v", DegradedConfidence)
	}
}

func TestReconstruct(t *testing.T) {
	v := Reconstruct(true, 0.95, "authored by the target", false)
	if !v.Relevant() || v.Confidence() != 0.95 {
		t.Errorf("Reconstruct lost fields: %v %v", v.Relevant(), v.Confidence())
	}
}
