package tts

import "regexp"

// normalizeSpeechText strips formatting that reads poorly when spoken:
// markdown markers, code fences, emojis, and redundant whitespace.
func normalizeSpeechText(text string) string {
	text = codeFenceRegex.ReplaceAllString(text, "")
	text = removeMarkdown(text)
	text = emojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return edgeWhitespaceRegex.ReplaceAllString(text, "")
}

func removeMarkdown(text string) string {
	for _, marker := range []string{"**", "*", "__", "~~", "`", "#"} {
		text = markdownRegex(marker).ReplaceAllString(text, "")
	}
	return text
}

func markdownRegex(marker string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(marker))
}

var (
	codeFenceRegex      = regexp.MustCompile("```[a-z]*\n?")
	emojiRegex          = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
	edgeWhitespaceRegex = regexp.MustCompile(`^\s+|\s+$`)
)
