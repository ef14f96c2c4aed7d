package stt

import (
	"regexp"
	"strings"
)

// Whisper style models emit non-speech annotations like [BLANK_AUDIO] or
// (wind blowing) which must never reach the chat model.
var annotationPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\*[^*]*\*`)

// cleanTranscript strips non-speech annotations and normalizes whitespace.
func cleanTranscript(text string) string {
	text = annotationPattern.ReplaceAllString(text, "")

	return strings.Join(strings.Fields(text), " ")
}

// languageNames maps the spelled out names some services return onto the two
// letter codes the rest of the pipeline uses.
var languageNames = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"portuguese": "pt",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"dutch":      "nl",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
}

// normalizeLanguage lowercases and maps spelled out language names to two
// letter codes. Codes pass through unchanged; unknown names come back as is.
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))

	if code, ok := languageNames[lang]; ok {
		return code
	}

	return lang
}
