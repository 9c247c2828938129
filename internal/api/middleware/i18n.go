package middleware

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Kontextschlüssel
const (
	LanguageKey   = "language"
	TranslatorKey = "translator"
)

// I18nConfig definiert die Konfiguration für die i18n-Middleware
type I18nConfig struct {
	DefaultLanguage string
}

// Translator hält die geladenen Übersetzungen
type Translator struct {
	bundle     *i18n.Bundle
	localizers map[string]*i18n.Localizer
	matcher    language.Matcher
	tags       []language.Tag
	fallback   string
}

// NewTranslator lädt die eingebetteten Übersetzungsdateien
func NewTranslator(config I18nConfig) (*Translator, error) {
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = "en"
	}
	defaultTag, err := language.Parse(config.DefaultLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", config.DefaultLanguage, err)
	}

	bundle := i18n.NewBundle(defaultTag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return nil, err
	}

	t := &Translator{
		bundle:     bundle,
		localizers: make(map[string]*i18n.Localizer),
		fallback:   defaultTag.String(),
	}
	// Die Standardsprache steht vorne, der Matcher fällt auf sie zurück
	t.tags = append(t.tags, defaultTag)

	for _, file := range files {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		code := strings.TrimSuffix(strings.TrimPrefix(file, "locales/"), ".json")
		t.localizers[code] = i18n.NewLocalizer(bundle, code, t.fallback)
		if code != t.fallback {
			t.tags = append(t.tags, language.Make(code))
		}
	}
	if _, ok := t.localizers[t.fallback]; !ok {
		return nil, fmt.Errorf("no translations for default language %s", t.fallback)
	}
	t.matcher = language.NewMatcher(t.tags)
	return t, nil
}

// Supported prüft, ob es Übersetzungen für lang gibt
func (t *Translator) Supported(lang string) bool {
	_, ok := t.localizers[lang]
	return ok
}

// Negotiate wählt die beste Sprache für einen Accept-Language-Header
func (t *Translator) Negotiate(acceptLanguage string) string {
	if acceptLanguage == "" {
		return t.fallback
	}
	_, idx := language.MatchStrings(t.matcher, acceptLanguage)
	base, _ := t.tags[idx].Base()
	if t.Supported(base.String()) {
		return base.String()
	}
	return t.fallback
}

// T übersetzt eine Nachricht. Unbekannte Schlüssel werden unverändert zurückgegeben.
func (t *Translator) T(lang, id string, data map[string]interface{}) string {
	loc, ok := t.localizers[lang]
	if !ok {
		loc = t.localizers[t.fallback]
	}
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		return id
	}
	return msg
}

// I18n erstellt die Middleware. Die Sprache kommt aus ?lang=, der Session
// oder dem Accept-Language-Header, in dieser Reihenfolge.
func I18n(translator *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		lang := c.Query("lang")
		if lang != "" && translator.Supported(lang) {
			session.Set(LanguageKey, lang)
			if err := session.Save(); err != nil {
				log.Warnf("Failed to save language in session: %v", err)
			}
		} else if stored, ok := session.Get(LanguageKey).(string); ok && translator.Supported(stored) {
			lang = stored
		} else {
			lang = translator.Negotiate(c.GetHeader("Accept-Language"))
		}

		c.Set(LanguageKey, lang)
		c.Set(TranslatorKey, translator)
		c.Next()
	}
}

// T übersetzt im Kontext einer Anfrage. Ohne Middleware wird der Schlüssel zurückgegeben.
func T(c *gin.Context, id string, data map[string]interface{}) string {
	v, ok := c.Get(TranslatorKey)
	if !ok {
		return id
	}
	return v.(*Translator).T(c.GetString(LanguageKey), id, data)
}
