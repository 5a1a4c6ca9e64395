package orchestration

import (
	"strings"
	"unicode"
)

var (
	DefaultStopPhrases = []string{"stop", "interrupt", "shut up", "quiet"}
	DefaultExitPhrases = []string{"go to sleep", "goodbye", "bye", "exit", "quit"}
)

const DefaultFarewell = "Goodbye! Going to sleep now."

type phraseKind int

const (
	phraseNone phraseKind = iota
	phraseStop
	phraseExit
)

// phraseMatcher recognizes short voice commands. A transcript matches when,
// after normalization, it is one of the phrases, so "Stop!" is a command but
// "don't stop the music" is a prompt.
type phraseMatcher struct {
	stop map[string]struct{}
	exit map[string]struct{}
}

func newPhraseMatcher(stop, exit []string) phraseMatcher {
	return phraseMatcher{stop: phraseSet(stop), exit: phraseSet(exit)}
}

func phraseSet(phrases []string) map[string]struct{} {
	set := make(map[string]struct{}, len(phrases))
	for _, phrase := range phrases {
		if normalized := normalizePhrase(phrase); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

func (m phraseMatcher) classify(transcript string) phraseKind {
	normalized := normalizePhrase(transcript)
	if _, ok := m.stop[normalized]; ok {
		return phraseStop
	}
	if _, ok := m.exit[normalized]; ok {
		return phraseExit
	}
	return phraseNone
}

func normalizePhrase(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
