package rag

import "strings"

// chunk boundaries are searched in this order; the CJK stops matter because
// the knowledge base is mostly Chinese prose without ASCII sentence breaks.
var splitSeparators = []string{"\n\n", "\n", "。", "！", "？", ". ", " "}

// SplitText cuts text into chunks of at most chunkSize runes, preferring to
// break at paragraph or sentence boundaries. Consecutive chunks overlap by
// up to overlap runes to keep context across the cut.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSeparator(runes[start:end]); cut > 0 {
			end = start + cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastSeparator returns the index just past the last separator occurrence in
// window, or 0 when no separator is present.
func lastSeparator(window []rune) int {
	s := string(window)
	for _, sep := range splitSeparators {
		if idx := strings.LastIndex(s, sep); idx >= 0 {
			return len([]rune(s[:idx+len(sep)]))
		}
	}
	return 0
}
