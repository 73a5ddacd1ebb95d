// Package code extracts fenced code blocks from model responses.
//
// Chat models habitually wrap source in markdown fences even when asked not
// to. The helpers here pull the fenced source back out so callers can hand it
// to an interpreter or write it to a file.
package code

import (
	"regexp"
	"strings"
)

// Block is one fenced code block. Lang is the fence's info string ("python",
// "go"), empty for bare fences.
type Block struct {
	Lang   string
	Source string
}

var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+.#-]*)[ \t]*\n(.*?)```")

// ExtractBlocks returns every fenced block in text, in order of appearance.
func ExtractBlocks(text string) []Block {
	var blocks []Block
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, Block{
			Lang:   m[1],
			Source: strings.TrimSuffix(m[2], "\n"),
		})
	}
	return blocks
}

// matches reports whether a block tagged blockLang satisfies a request for
// lang. Bare fences match any language and an empty lang matches any fence.
func matches(blockLang, lang string) bool {
	return lang == "" || blockLang == "" || strings.EqualFold(blockLang, lang)
}

// ExtractFirst returns the source of the first block matching lang.
func ExtractFirst(text, lang string) (string, bool) {
	for _, b := range ExtractBlocks(text) {
		if matches(b.Lang, lang) {
			return b.Source, true
		}
	}
	return "", false
}

// Extract joins the source of all blocks matching lang. When text carries no
// fences at all the model answered with bare source, so the trimmed text
// itself is returned.
func Extract(text, lang string) string {
	blocks := ExtractBlocks(text)
	if len(blocks) == 0 {
		if strings.Contains(text, "```") {
			return ""
		}
		return strings.TrimSpace(text)
	}

	var parts []string
	for _, b := range blocks {
		if matches(b.Lang, lang) {
			parts = append(parts, b.Source)
		}
	}

	return strings.Join(parts, "\n\n")
}

// TextBefore returns the prose preceding the first fence, trimmed. Without a
// fence it returns the whole trimmed text.
func TextBefore(text string) string {
	if i := strings.Index(text, "```"); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}
