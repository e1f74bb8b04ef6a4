package sampler

import (
	"testing"

	"llamaworker/candidate"
)

func freshCandidates(logits []float32) *candidate.Slab {
	s := candidate.NewSlab(len(logits))
	s.LoadFromLogits(logits)
	return s
}

func TestTopK_KeepsHighestK(t *testing.T) {
	cand := freshCandidates([]float32{1, 5, 2, 9, -1, 3})
	if _, ok, err := (TopK{K: 3}).Sample(SampleContext{}, cand); ok || err != nil {
		t.Fatalf("TopK is non-terminal: ok=%v err=%v", ok, err)
	}
	if cand.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", cand.Len())
	}
	if !cand.Sorted {
		t.Fatalf("expected TopK to leave the slab sorted")
	}
	if cand.Entries[0].Logit != 9 || cand.Entries[1].Logit != 5 || cand.Entries[2].Logit != 3 {
		t.Fatalf("TopK kept the wrong entries: %+v", cand.Entries)
	}
}

func TestTopK_ZeroIsNoOp(t *testing.T) {
	cand := freshCandidates([]float32{1, 5, 2})
	if _, _, err := (TopK{K: 0}).Sample(SampleContext{}, cand); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if cand.Len() != 3 {
		t.Fatalf("TopK{K:0} should not truncate, got Len()=%d", cand.Len())
	}
}

func TestTopP_KeepsNucleus(t *testing.T) {
	cand := freshCandidates([]float32{0, 0, 0, 0})
	if _, _, err := (Temperature{Value: 1.0}).Sample(SampleContext{}, cand); err != nil {
		t.Fatalf("Temperature: %v", err)
	}
	// Uniform distribution over 4 entries: each has p=0.25.
	if _, _, err := (TopP{P: 0.5}).Sample(SampleContext{}, cand); err != nil {
		t.Fatalf("TopP: %v", err)
	}
	if cand.Len() != 2 {
		t.Fatalf("TopP{0.5} over a uniform 4-way split should keep 2 entries, got %d", cand.Len())
	}
}

func TestTemperature_ZeroCollapsesToOneHot(t *testing.T) {
	cand := freshCandidates([]float32{1, 5, 2})
	if _, _, err := (Temperature{Value: 0}).Sample(SampleContext{}, cand); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	for i, e := range cand.Entries {
		if i == 1 {
			if e.Prob != 1 {
				t.Fatalf("arg-max entry should have Prob=1, got %v", e.Prob)
			}
		} else if e.Prob != 0 {
			t.Fatalf("non-arg-max entry %d should have Prob=0, got %v", i, e.Prob)
		}
	}
}

func TestTemperature_SoftmaxSumsToOne(t *testing.T) {
	cand := freshCandidates([]float32{1, 2, 3, 4})
	if _, _, err := (Temperature{Value: 0.8}).Sample(SampleContext{}, cand); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	var sum float32
	for _, e := range cand.Entries {
		sum += e.Prob
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("softmax probabilities sum to %v, want ~1", sum)
	}
}

func TestRepetitionPenalty_PenalizesSeenTokens(t *testing.T) {
	cand := freshCandidates([]float32{5, 5, 5})
	s := RepetitionPenalty{Penalty: 2.0, LastN: 0}
	ctx := SampleContext{Tokens: []int32{1}}
	if _, _, err := s.Sample(ctx, cand); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if cand.Entries[1].Logit != 2.5 {
		t.Fatalf("seen token's logit = %v, want 2.5 (5/2)", cand.Entries[1].Logit)
	}
	if cand.Entries[0].Logit != 5 || cand.Entries[2].Logit != 5 {
		t.Fatalf("unseen tokens should be untouched, got %+v", cand.Entries)
	}
}

func TestRepetitionPenalty_PenaltyOneIsNoOp(t *testing.T) {
	cand := freshCandidates([]float32{5, 5, 5})
	s := RepetitionPenalty{Penalty: 1.0}
	ctx := SampleContext{Tokens: []int32{1}}
	if _, _, err := s.Sample(ctx, cand); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	for i, e := range cand.Entries {
		if e.Logit != 5 {
			t.Fatalf("entry %d changed under Penalty=1, got %v", i, e.Logit)
		}
	}
}

func TestRepetitionPenalty_LastNWindow(t *testing.T) {
	cand := freshCandidates([]float32{5, 5, 5})
	s := RepetitionPenalty{Penalty: 2.0, LastN: 1}
	// Token 1 appears outside the last-1 window; only token 2 (the most
	// recent) should be penalized.
	ctx := SampleContext{Tokens: []int32{1, 2}}
	if _, _, err := s.Sample(ctx, cand); err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if cand.Entries[1].Logit != 5 {
		t.Fatalf("token 1 is outside the LastN window and should be untouched, got %v", cand.Entries[1].Logit)
	}
	if cand.Entries[2].Logit != 2.5 {
		t.Fatalf("token 2 is inside the LastN window, want 2.5, got %v", cand.Entries[2].Logit)
	}
}
