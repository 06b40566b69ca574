// Package i18n holds the fixed user-facing texts of askdw.
//
// Only canned texts live here (greeting, rejection, failure notice, UI labels).
// Model-generated replies are not translated: the prompts already require the
// model to answer in the language the question was asked in.
package i18n

import (
	"fmt"
	"os"
	"strings"
)

// Supported languages
const (
	LangEN = "en"
	LangAR = "ar"
)

// currentLang holds the current language setting
var currentLang = LangEN

// messages stores all catalogs, keyed by language then message key
var messages = make(map[string]map[string]string)

// Init initializes the catalog with the specified language.
// Unrecognized codes fall back to ASKDW_LANG, then English.
func Init(lang string) {
	lang = strings.ToLower(strings.TrimSpace(lang))

	switch lang {
	case "en", "en-us", "english":
		currentLang = LangEN
	case "ar", "ar-sa", "ar-eg", "arabic":
		currentLang = LangAR
	default:
		if envLang := os.Getenv("ASKDW_LANG"); envLang != "" && !strings.EqualFold(envLang, lang) {
			Init(envLang)
			return
		}
		currentLang = LangEN
	}

	loadMessages()
}

// SetLanguage changes the current language.
func SetLanguage(lang string) {
	Init(lang)
}

// GetLanguage returns the current language code.
func GetLanguage() string {
	return currentLang
}

// T returns the message for the given key in the current language,
// falling back to English, then to the key itself.
func T(key string) string {
	if msg, ok := messages[currentLang][key]; ok {
		return msg
	}
	if msg, ok := messages[LangEN][key]; ok {
		return msg
	}
	return key
}

// Sprintf returns the translated and formatted message.
func Sprintf(key string, args ...any) string {
	return fmt.Sprintf(T(key), args...)
}

func loadMessages() {
	messages[LangEN] = make(map[string]string)
	messages[LangAR] = make(map[string]string)

	loadEnglishMessages()
	loadArabicMessages()
}

// GetSupportedLanguages returns the supported language codes.
func GetSupportedLanguages() []string {
	return []string{LangEN, LangAR}
}

// IsLanguageSupported checks if a language code is supported.
func IsLanguageSupported(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, supported := range GetSupportedLanguages() {
		if strings.EqualFold(lang, supported) {
			return true
		}
	}
	return false
}

func init() {
	if envLang := os.Getenv("ASKDW_LANG"); envLang != "" {
		Init(envLang)
	} else {
		Init(LangEN)
	}
}
