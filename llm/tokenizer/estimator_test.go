package tokenizer

import "testing"

func TestEstimatorTokenizer_CountTokens_ASCII(t *testing.T) {
	e := NewEstimatorTokenizer("generic", 0)
	n, err := e.CountTokens("hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n <= 0 {
		t.Fatalf("expected positive token count, got %d", n)
	}
}

func TestEstimatorTokenizer_CountTokens_CJKCostsMoreThanASCII(t *testing.T) {
	e := NewEstimatorTokenizer("generic", 0)
	ascii, _ := e.CountTokens("aaaa")
	cjk, _ := e.CountTokens("中文字")
	if cjk == 0 || ascii == 0 {
		t.Fatalf("expected nonzero counts, got ascii=%d cjk=%d", ascii, cjk)
	}
	if cjk <= ascii {
		t.Fatalf("expected CJK to cost more tokens than ASCII, got ascii=%d cjk=%d", ascii, cjk)
	}
}

func TestEstimatorTokenizer_CountMessages_IncludesOverhead(t *testing.T) {
	e := NewEstimatorTokenizer("generic", 0)
	n, err := e.CountMessages([]Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	single, _ := e.CountTokens("hi")
	if n <= single {
		t.Fatalf("expected overhead to push count above raw content tokens: n=%d single=%d", n, single)
	}
}

func TestGetTokenizerOrEstimator_FallsBackWhenUnregistered(t *testing.T) {
	tok := GetTokenizerOrEstimator("no-such-model-xyz")
	if tok.Name() != "estimator:no-such-model-xyz" {
		t.Fatalf("expected estimator fallback tagged with the model, got %s", tok.Name())
	}
}

func TestEstimatorTokenizer_Name_BlankModelOmitsSuffix(t *testing.T) {
	e := NewEstimatorTokenizer("", 0)
	if e.Name() != "estimator" {
		t.Fatalf("expected bare 'estimator' name for an unset model, got %s", e.Name())
	}
}
