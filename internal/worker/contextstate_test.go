package worker

import (
	"testing"

	"llamaworker/internal/engine"
	"llamaworker/internal/engine/enginetest"
	"llamaworker/llmerr"
)

func newTestContextState(t *testing.T, contextSize, batchSize int) (*enginetest.Engine, *contextState) {
	t.Helper()
	eng := enginetest.New()
	model, err := eng.LoadModel("fake.gguf", engine.ModelParams{}, nil)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	params := engine.ContextParams{ContextSizeTokens: contextSize, BatchSizeTokens: batchSize}
	native, err := eng.NewContext(model, params)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	cs := newContextState(1, 1, native, model, params, enginetest.VocabSize)
	return eng, cs
}

func TestTokenize_FirstCallPrependsBOS(t *testing.T) {
	eng, cs := newTestContextState(t, 64, 8)
	appended, start, err := cs.tokenize(eng, "")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if start != 0 {
		t.Fatalf("start = %d, want 0", start)
	}
	if len(appended) != 1 || appended[0] != enginetest.BOSID {
		t.Fatalf("tokenizing an empty string on a fresh context should yield exactly [BOS], got %v", appended)
	}
	if len(cs.tokens) != 1 {
		t.Fatalf("token buffer length = %d, want 1", len(cs.tokens))
	}
}

func TestTokenize_SecondCallDoesNotRePrependBOS(t *testing.T) {
	eng, cs := newTestContextState(t, 64, 8)
	if _, _, err := cs.tokenize(eng, ""); err != nil {
		t.Fatalf("first tokenize: %v", err)
	}
	appended, start, err := cs.tokenize(eng, "hello world")
	if err != nil {
		t.Fatalf("second tokenize: %v", err)
	}
	if start != 1 {
		t.Fatalf("start = %d, want 1", start)
	}
	for _, id := range appended {
		if id == enginetest.BOSID {
			t.Fatalf("second tokenize call re-prepended BOS: %v", appended)
		}
	}
}

func TestEdit_NoOpWhenLengthAbsentOrUnchanged(t *testing.T) {
	eng, cs := newTestContextState(t, 64, 8)
	cs.tokens = []int32{1, 2, 3}
	cs.logits = [][]float32{{0}, {0}}
	if err := cs.edit(eng, 0, false); err != nil {
		t.Fatalf("edit(absent): %v", err)
	}
	if len(cs.tokens) != 3 || len(cs.logits) != 2 {
		t.Fatalf("edit with hasLength=false must be a no-op, got tokens=%d logits=%d", len(cs.tokens), len(cs.logits))
	}
	if err := cs.edit(eng, 3, true); err != nil {
		t.Fatalf("edit(3): %v", err)
	}
	if len(cs.tokens) != 3 || len(cs.logits) != 2 {
		t.Fatalf("edit(L) at current length must be a no-op, got tokens=%d logits=%d", len(cs.tokens), len(cs.logits))
	}
}

func TestEdit_ShrinkTruncatesLogitsAndPrunesKV(t *testing.T) {
	eng, cs := newTestContextState(t, 64, 8)
	cs.tokens = []int32{10, 11, 12, 13, 14}
	cs.logits = [][]float32{{0}, {0}, {0}, {0}, {0}}
	if err := cs.edit(eng, 2, true); err != nil {
		t.Fatalf("edit(2): %v", err)
	}
	if len(cs.tokens) != 2 {
		t.Fatalf("tokens.length = %d, want 2", len(cs.tokens))
	}
	if len(cs.logits) != 2 {
		t.Fatalf("logits.length = %d, want 2 (min(prev, L))", len(cs.logits))
	}
}

func TestEdit_ShrinkTokensOnlyLeavesLogitsUntouched(t *testing.T) {
	eng, cs := newTestContextState(t, 64, 8)
	cs.tokens = []int32{10, 11, 12, 13, 14}
	cs.logits = [][]float32{{0}, {0}}
	if err := cs.edit(eng, 4, true); err != nil {
		t.Fatalf("edit(4): %v", err)
	}
	if len(cs.tokens) != 4 {
		t.Fatalf("tokens.length = %d, want 4", len(cs.tokens))
	}
	if len(cs.logits) != 2 {
		t.Fatalf("logits.length = %d, want 2 (unchanged, since it was already <= L)", len(cs.logits))
	}
}

func TestEdit_GrowingIsRejected(t *testing.T) {
	eng, cs := newTestContextState(t, 64, 8)
	cs.tokens = []int32{1, 2}
	err := cs.edit(eng, 5, true)
	if !llmerr.Is(err, llmerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for growing edit, got %v", err)
	}
}

func TestEdit_Idempotent(t *testing.T) {
	eng, cs := newTestContextState(t, 64, 8)
	cs.tokens = []int32{1, 2, 3, 4}
	cs.logits = [][]float32{{0}, {0}, {0}, {0}}
	if err := cs.edit(eng, 2, true); err != nil {
		t.Fatalf("first edit(2): %v", err)
	}
	afterFirst := append([]int32(nil), cs.tokens...)
	if err := cs.edit(eng, 2, true); err != nil {
		t.Fatalf("second edit(2): %v", err)
	}
	if len(cs.tokens) != len(afterFirst) {
		t.Fatalf("edit(L); edit(L) is not idempotent: %v vs %v", cs.tokens, afterFirst)
	}
}

func TestNeedsIngesting(t *testing.T) {
	_, cs := newTestContextState(t, 64, 8)
	if cs.needsIngesting() {
		t.Fatalf("empty context should not need ingesting")
	}
	cs.tokens = []int32{1, 2, 3}
	cs.logits = [][]float32{{0}}
	if !cs.needsIngesting() {
		t.Fatalf("logits.length < tokens.length should need ingesting")
	}
	cs.logits = [][]float32{{0}, {0}, {0}}
	if cs.needsIngesting() {
		t.Fatalf("logits.length == tokens.length should not need ingesting")
	}
}
