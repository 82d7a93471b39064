package splitter

import (
	"strings"
)

// Split режет длинный ответ на части не длиннее maxLength, предпочитая
// границы предложений (". "), затем границы слов. Слово, которое само по
// себе длиннее maxLength, уходит отдельной частью как есть.
func Split(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	var chunks []string
	current := ""

	for _, sentence := range strings.Split(text, ". ") {
		if len(current+sentence+". ") <= maxLength {
			current += sentence + ". "
			continue
		}

		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = ""
		}

		if len(sentence+". ") <= maxLength {
			current = sentence + ". "
			continue
		}

		// Предложение не помещается целиком, режем по словам.
		wordChunk := ""
		for _, word := range strings.Split(sentence, " ") {
			if len(word)+1 > maxLength {
				if wordChunk != "" {
					chunks = append(chunks, strings.TrimSpace(wordChunk))
					wordChunk = ""
				}
				chunks = append(chunks, word)
				continue
			}
			if len(wordChunk+word+" ") > maxLength {
				chunks = append(chunks, strings.TrimSpace(wordChunk))
				wordChunk = word + " "
			} else {
				wordChunk += word + " "
			}
		}
		if wordChunk != "" {
			current = wordChunk
		}
	}

	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}
