// Package chunk splits long replies into pieces that fit the Bot API message size limit.
package chunk

// DefaultLimit leaves headroom under Telegram's 4096 character cap for formatting entities.
const DefaultLimit = 3900

// Split cuts text into consecutive pieces of at most limit runes.
// Splitting is positional: every piece except the last holds exactly limit runes,
// and joining the pieces in order yields text unchanged. Empty text yields no pieces.
// A limit below 1 falls back to DefaultLimit.
func Split(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit < 1 {
		limit = DefaultLimit
	}

	var pieces []string
	start, count := 0, 0
	for i := range text {
		if count == limit {
			pieces = append(pieces, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(pieces, text[start:])
}
