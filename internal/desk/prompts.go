package desk

import (
	"fmt"
	"strings"
)

// Length is a named target word count for generated articles.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// ParseLength resolves a preset name; empty means medium.
func ParseLength(s string) (Length, bool) {
	switch l := Length(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return LengthMedium, true
	case LengthShort, LengthMedium, LengthLong:
		return l, true
	default:
		return "", false
	}
}

// Words is the target word count for the preset.
func (l Length) Words() int {
	switch l {
	case LengthShort:
		return 300
	case LengthLong:
		return 1200
	default:
		return 700
	}
}

const summaryMaxWords = 150

func articlePrompt(topic string, words int) string {
	return fmt.Sprintf(
		"Write an original, well-structured article about %q.\n"+
			"Target length: about %d words.\n"+
			"Start with a short title, then an introduction, a few sections with subheadings and a brief conclusion.\n"+
			"Use plain text without markdown code fences.",
		topic, words,
	)
}

func summaryPrompt(text string) string {
	return fmt.Sprintf(
		"Summarize the following text as a list of concise bullet points.\n"+
			"Keep the whole summary under %d words and do not add information that is not in the text.\n\n"+
			"Text:\n%s",
		summaryMaxWords, text,
	)
}
