package playback

import (
	"strings"
	"unicode"
)

// CleanText prepares a response for speech. It drops markdown emphasis,
// collapses whitespace and strips a leading speaker label such as
// "🤖 Max:" when the label matches one of speakers.
func CleanText(text string, speakers ...string) string {
	text = dropMarkdown(text)
	text = strings.Join(strings.Fields(text), " ")

	for _, speaker := range speakers {
		if stripped, ok := stripSpeakerLabel(text, speaker); ok {
			return stripped
		}
	}
	return text
}

// dropMarkdown removes emphasis, heading and code markers. Underscores are
// kept inside words so identifiers like snake_case survive.
func dropMarkdown(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range runes {
		switch r {
		case '*', '#', '`':
			continue
		case '_':
			inWord := i > 0 && i < len(runes)-1 && isWordRune(runes[i-1]) && isWordRune(runes[i+1])
			if !inWord {
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func stripSpeakerLabel(text, speaker string) (string, bool) {
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return text, false
	}

	// Leading emoji or punctuation decorate the label in chat style output
	label := strings.TrimLeftFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(label) < len(speaker)+1 || !strings.EqualFold(label[:len(speaker)], speaker) {
		return text, false
	}

	rest := strings.TrimLeftFunc(label[len(speaker):], unicode.IsSpace)
	if !strings.HasPrefix(rest, ":") {
		return text, false
	}
	return strings.TrimSpace(rest[1:]), true
}
