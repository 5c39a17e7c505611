package tokenizer

import "testing"

func TestTiktokenTokenizer_Name(t *testing.T) {
	tok, err := NewTiktokenTokenizer("gpt-4o")
	if err != nil {
		t.Fatalf("NewTiktokenTokenizer: %v", err)
	}
	if got, want := tok.Name(), "tiktoken[o200k_base]:gpt-4o"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}

func TestTiktokenTokenizer_Name_EmptyModelFallsBackToEncodingOnly(t *testing.T) {
	tok, err := NewTiktokenTokenizer("")
	if err != nil {
		t.Fatalf("NewTiktokenTokenizer: %v", err)
	}
	if got, want := tok.Name(), "tiktoken[cl100k_base]"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}
