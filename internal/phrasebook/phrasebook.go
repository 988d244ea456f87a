// Package phrasebook holds the static travel-phrase table merged into
// camera-scan results so common signage gets a curated translation and
// reading even when providers return something clumsier.
package phrasebook

import "strings"

// Entry is a curated phrase with its translation and romanized reading.
type Entry struct {
	Japanese string `json:"japanese"`
	English  string `json:"english"`
	Romaji   string `json:"romaji"`
}

// Book is an immutable phrase lookup table.
type Book struct {
	byJapanese map[string]Entry
	phrases    []string
}

// NewBook builds a lookup table from entries. Pass nil for the built-in set.
func NewBook(entries []Entry) *Book {
	if entries == nil {
		entries = builtinEntries
	}
	b := &Book{byJapanese: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		b.byJapanese[e.Japanese] = e
		b.phrases = append(b.phrases, e.Japanese)
	}
	return b
}

// Lookup returns the curated entry for exactly the given trimmed text.
func (b *Book) Lookup(text string) (Entry, bool) {
	e, ok := b.byJapanese[strings.TrimSpace(text)]
	return e, ok
}

// FindWithin returns curated entries whose phrase appears anywhere in the
// recognized text, in table order.
func (b *Book) FindWithin(text string) []Entry {
	var found []Entry
	for _, phrase := range b.phrases {
		if strings.Contains(text, phrase) {
			found = append(found, b.byJapanese[phrase])
		}
	}
	return found
}

// Len returns the number of phrases in the book.
func (b *Book) Len() int {
	return len(b.phrases)
}

var builtinEntries = []Entry{
	{Japanese: "こんにちは", English: "Hello", Romaji: "konnichiwa"},
	{Japanese: "ありがとう", English: "Thank you", Romaji: "arigatou"},
	{Japanese: "ありがとうございます", English: "Thank you very much", Romaji: "arigatou gozaimasu"},
	{Japanese: "すみません", English: "Excuse me", Romaji: "sumimasen"},
	{Japanese: "出口", English: "Exit", Romaji: "deguchi"},
	{Japanese: "入口", English: "Entrance", Romaji: "iriguchi"},
	{Japanese: "駅", English: "Station", Romaji: "eki"},
	{Japanese: "トイレ", English: "Toilet", Romaji: "toire"},
	{Japanese: "営業中", English: "Open for business", Romaji: "eigyouchuu"},
	{Japanese: "準備中", English: "Closed (preparing)", Romaji: "junbichuu"},
	{Japanese: "禁煙", English: "No smoking", Romaji: "kin'en"},
	{Japanese: "立入禁止", English: "No entry", Romaji: "tachiiri kinshi"},
	{Japanese: "切符売り場", English: "Ticket office", Romaji: "kippu uriba"},
	{Japanese: "改札口", English: "Ticket gate", Romaji: "kaisatsuguchi"},
	{Japanese: "いくらですか", English: "How much is it?", Romaji: "ikura desu ka"},
	{Japanese: "英語のメニューはありますか", English: "Do you have an English menu?", Romaji: "eigo no menyuu wa arimasu ka"},
	{Japanese: "お会計お願いします", English: "The check, please", Romaji: "okaikei onegai shimasu"},
	{Japanese: "乗り換え", English: "Transfer", Romaji: "norikae"},
	{Japanese: "各駅停車", English: "Local train", Romaji: "kakueki teisha"},
	{Japanese: "急行", English: "Express", Romaji: "kyuukou"},
}
