package ocr

import (
	"strings"
	"unicode"
)

// Script identifies the character ranges of the language being extracted.
type Script struct {
	Name   string
	Member func(r rune) bool
}

// ScriptJapanese matches kana, kanji, and the marks that appear inside
// Japanese words (prolonged sound mark, iteration mark).
var ScriptJapanese = &Script{
	Name: "japanese",
	Member: func(r rune) bool {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
		switch r {
		case 'ー', '々', 'ゝ', 'ヽ':
			return true
		}
		return false
	},
}

// ScriptLatin matches basic and extended Latin letters plus digits, for
// the reverse (English source) direction.
var ScriptLatin = &Script{
	Name: "latin",
	Member: func(r rune) bool {
		return unicode.In(r, unicode.Latin) || unicode.IsDigit(r)
	},
}

// ExtractRuns returns the space-joined maximal runs of script characters
// in text. Characters outside the script split runs and are dropped.
func ExtractRuns(text string, script *Script) string {
	if script == nil {
		return ""
	}

	var runs []string
	var current strings.Builder
	for _, r := range text {
		if script.Member(r) {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			runs = append(runs, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		runs = append(runs, current.String())
	}

	return strings.Join(runs, " ")
}
