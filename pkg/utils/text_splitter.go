package utils

import "unicode"

// SplitText cuts text into windows of at most chunkSize runes, each starting
// overlap runes before the previous one ended. A cut prefers the last
// whitespace in the final fifth of the window.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	totalLen := len(runes)
	if chunkSize <= 0 || totalLen <= chunkSize {
		return []string{text}
	}

	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < totalLen; {
		end := start + chunkSize
		if end >= totalLen {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		for i := end - 1; i > end-chunkSize/5 && i > start; i-- {
			if unicode.IsSpace(runes[i]) {
				end = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
