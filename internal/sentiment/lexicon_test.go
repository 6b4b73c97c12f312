package sentiment

import (
	"context"
	"testing"
)

func TestLexiconAnalyzerPositive(t *testing.T) {
	a := NewLexiconAnalyzer()
	got, err := a.Analyze(context.Background(), "Thanks, that was great, I love it!")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.Label != "positive" {
		t.Fatalf("label = %q, want positive", got.Label)
	}
	if got.Score <= 0.5 {
		t.Fatalf("score = %f, want > 0.5", got.Score)
	}
	if got.Emotions.Joy == 0 {
		t.Fatalf("joy fraction should be non-zero: %+v", got.Emotions)
	}
}

func TestLexiconAnalyzerNegative(t *testing.T) {
	a := NewLexiconAnalyzer()
	got, err := a.Analyze(context.Background(), "This is unacceptable, I'm furious and disappointed.")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.Label != "negative" {
		t.Fatalf("label = %q, want negative", got.Label)
	}
	if got.Score >= 0.5 {
		t.Fatalf("score = %f, want < 0.5", got.Score)
	}
}

func TestLexiconAnalyzerNeutralDefault(t *testing.T) {
	a := NewLexiconAnalyzer()
	got, err := a.Analyze(context.Background(), "the invoice number is 4512")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.Label != "neutral" || got.Score != 0.5 {
		t.Fatalf("unexpected neutral result: %+v", got)
	}
}

func TestNewAnalyzerModes(t *testing.T) {
	if _, err := New("http", ""); err == nil {
		t.Fatalf("http mode without url should fail")
	}
	if _, err := New("wat", ""); err == nil {
		t.Fatalf("unknown mode should fail")
	}
	a, err := New("auto", "")
	if err != nil {
		t.Fatalf("New(auto) error = %v", err)
	}
	if _, ok := a.(*LexiconAnalyzer); !ok {
		t.Fatalf("auto without url should pick lexicon, got %T", a)
	}
}
