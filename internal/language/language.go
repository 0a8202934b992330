package language

import "strings"

// Language is a transcription language accepted by the streaming endpoint.
type Language struct {
	Code string // BCP-47 tag (e.g., "en", "en-GB", "es-419")
	Name string // English name (e.g., "English (UK)")
}

// Default is used when no language is configured; the service then
// transcribes English.
var Default = Language{Code: "", Name: "Service default (English)"}

// languages supported for live transcription by the nova-2 model family
var languages = []Language{
	{Code: "bg", Name: "Bulgarian"},
	{Code: "ca", Name: "Catalan"},
	{Code: "zh", Name: "Chinese (Mandarin, Simplified)"},
	{Code: "zh-CN", Name: "Chinese (Mandarin, Simplified)"},
	{Code: "zh-TW", Name: "Chinese (Mandarin, Traditional)"},
	{Code: "zh-HK", Name: "Chinese (Cantonese, Traditional)"},
	{Code: "cs", Name: "Czech"},
	{Code: "da", Name: "Danish"},
	{Code: "nl", Name: "Dutch"},
	{Code: "nl-BE", Name: "Flemish"},
	{Code: "en", Name: "English"},
	{Code: "en-US", Name: "English (US)"},
	{Code: "en-AU", Name: "English (Australia)"},
	{Code: "en-GB", Name: "English (UK)"},
	{Code: "en-NZ", Name: "English (New Zealand)"},
	{Code: "en-IN", Name: "English (India)"},
	{Code: "et", Name: "Estonian"},
	{Code: "fi", Name: "Finnish"},
	{Code: "fr", Name: "French"},
	{Code: "fr-CA", Name: "French (Canada)"},
	{Code: "de", Name: "German"},
	{Code: "de-CH", Name: "German (Switzerland)"},
	{Code: "el", Name: "Greek"},
	{Code: "hi", Name: "Hindi"},
	{Code: "hu", Name: "Hungarian"},
	{Code: "id", Name: "Indonesian"},
	{Code: "it", Name: "Italian"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "lv", Name: "Latvian"},
	{Code: "lt", Name: "Lithuanian"},
	{Code: "ms", Name: "Malay"},
	{Code: "multi", Name: "Multilingual (English and Spanish)"},
	{Code: "no", Name: "Norwegian"},
	{Code: "pl", Name: "Polish"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "pt-BR", Name: "Portuguese (Brazil)"},
	{Code: "ro", Name: "Romanian"},
	{Code: "ru", Name: "Russian"},
	{Code: "sk", Name: "Slovak"},
	{Code: "es", Name: "Spanish"},
	{Code: "es-419", Name: "Spanish (Latin America)"},
	{Code: "sv", Name: "Swedish"},
	{Code: "th", Name: "Thai"},
	{Code: "tr", Name: "Turkish"},
	{Code: "uk", Name: "Ukrainian"},
	{Code: "vi", Name: "Vietnamese"},
}

// codeIndex maps lower-cased codes to their Language for fast lookup
var codeIndex map[string]Language

func init() {
	codeIndex = make(map[string]Language, len(languages)+1)
	codeIndex[""] = Default
	for _, lang := range languages {
		codeIndex[strings.ToLower(lang.Code)] = lang
	}
}

// FromCode returns the Language for code. Tags are matched without regard
// to case; an unknown region falls back to its base language. The second
// result is false when neither is known.
func FromCode(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if lang, ok := codeIndex[code]; ok {
		return lang, true
	}
	if base, _, found := strings.Cut(code, "-"); found {
		if lang, ok := codeIndex[base]; ok {
			return lang, true
		}
	}
	return Default, false
}

// IsValidCode returns true if the code is recognized (including empty for
// the service default)
func IsValidCode(code string) bool {
	_, ok := FromCode(code)
	return ok
}

// List returns all supported languages (excluding Default)
func List() []Language {
	result := make([]Language, len(languages))
	copy(result, languages)
	return result
}

// Codes returns all language codes (excluding empty string for Default)
func Codes() []string {
	codes := make([]string, len(languages))
	for i, lang := range languages {
		codes[i] = lang.Code
	}
	return codes
}
