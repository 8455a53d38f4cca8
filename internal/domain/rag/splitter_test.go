package rag

import (
	"strings"
	"testing"
)

func TestSplitTextShortInputIsSingleChunk(t *testing.T) {
	chunks := SplitText("小麦白粉病防治要点。", 100, 20)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitTextPrefersSentenceBoundaries(t *testing.T) {
	text := "第一句话。第二句话。第三句话。第四句话。"
	chunks := SplitText(text, 12, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c, "。") {
			t.Errorf("chunk %d does not end on a sentence stop: %q", i, c)
		}
	}
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	text := strings.Repeat("蚜虫危害叶片，造成卷曲。", 50)
	chunks := SplitText(text, 40, 8)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 40 {
			t.Errorf("chunk %d has %d runes, cap is 40", i, n)
		}
	}
}

func TestSplitTextOverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("a", 30) + "。" + strings.Repeat("b", 30)
	chunks := SplitText(text, 31, 5)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d: %v", len(chunks), chunks)
	}
	// The second chunk starts before the first one ended.
	if !strings.HasPrefix(chunks[1], "aaaa") {
		t.Errorf("expected overlap from first chunk, got %q", chunks[1])
	}
}

func TestSplitTextEmptyInput(t *testing.T) {
	if chunks := SplitText("   \n ", 100, 10); len(chunks) != 0 {
		t.Errorf("expected no chunks for blank input, got %v", chunks)
	}
}
