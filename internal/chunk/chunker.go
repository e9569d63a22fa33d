package chunk

import (
	"math"
	"strings"
)

// Split breaks content into a sequence of chunks using the embedder's
// own tokenizer, per spec.md §4.2: a sliding token window of MaxTokens
// with OverlapTokens shared between adjacent windows (so the window
// advances by StepTokens each iteration). Content that already fits in
// one window is returned as a single chunk at position 0, so the
// common case skips the detokenize round-trip.
func Split(tok Tokenizer, content string) ([]Chunk, error) {
	if content == "" {
		return nil, nil
	}

	tokens, err := tok.Tokenize(content)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) <= MaxTokens {
		return []Chunk{{Seq: 0, Pos: 0, Content: content}}, nil
	}

	avgCharsPerToken := float64(len(content)) / float64(len(tokens))

	var chunks []Chunk
	for start, seq := 0, 0; start < len(tokens); start, seq = start+StepTokens, seq+1 {
		end := start + MaxTokens
		isLast := end >= len(tokens)
		if isLast {
			end = len(tokens)
		}

		windowText, err := tok.Detokenize(tokens[start:end])
		if err != nil {
			return nil, err
		}
		if !isLast {
			windowText = truncateAtCleanBreak(windowText)
		}

		pos := int(math.Floor(float64(start) * avgCharsPerToken))
		chunks = append(chunks, Chunk{Seq: seq, Pos: pos, Content: windowText})

		if isLast {
			break
		}
	}

	return chunks, nil
}

// truncateAtCleanBreak searches the last breakSearchFraction of text
// for a paragraph break, then a sentence terminator, then a line
// break, and cuts there instead of mid-sentence. Text with no clean
// break in that window is returned unmodified.
func truncateAtCleanBreak(text string) string {
	n := len(text)
	searchStart := int(float64(n) * (1 - breakSearchFraction))
	if searchStart < 0 {
		searchStart = 0
	}
	tail := text[searchStart:]

	if idx := strings.LastIndex(tail, "\n\n"); idx >= 0 {
		return text[:searchStart+idx+2]
	}
	if idx := lastSentenceTerminator(tail); idx >= 0 {
		return text[:searchStart+idx]
	}
	if idx := strings.LastIndex(tail, "\n"); idx >= 0 {
		return text[:searchStart+idx+1]
	}
	return text
}

// lastSentenceTerminator returns the byte offset just past the
// right-most '.', '!', or '?' in s, or -1 if none is present.
func lastSentenceTerminator(s string) int {
	best := -1
	for _, term := range []string{".", "!", "?"} {
		if idx := strings.LastIndex(s, term); idx > best {
			best = idx
		}
	}
	if best == -1 {
		return -1
	}
	return best + 1
}
