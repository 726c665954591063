package tagging

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxTags caps tags per item when the vocabulary does not say.
const DefaultMaxTags = 8

// Vocabulary holds the per-language prompts sent to the tagging model.
type Vocabulary struct {
	MaxTags         int                 `yaml:"max_tags"`
	DefaultLanguage string              `yaml:"default_language"`
	Languages       map[string]Language `yaml:"languages"`
}

// Language is the prompt for one language code.
type Language struct {
	Prompt string `yaml:"prompt"`
}

// DefaultVocabulary is used when no vocabulary file is configured.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		MaxTags:         DefaultMaxTags,
		DefaultLanguage: "en",
		Languages: map[string]Language{
			"en": {Prompt: "Describe this image for a mood board. Reply with a JSON array of up to 8 short lowercase tags covering subject, mood, style and dominant colours. No other text."},
			"de": {Prompt: "Beschreibe dieses Bild für ein Moodboard. Antworte nur mit einem JSON-Array aus bis zu 8 kurzen Schlagwörtern in Kleinbuchstaben zu Motiv, Stimmung, Stil und Farben."},
			"fr": {Prompt: "Décris cette image pour un moodboard. Réponds uniquement par un tableau JSON de 8 mots-clés courts en minuscules : sujet, ambiance, style, couleurs."},
		},
	}
}

// LoadVocabulary reads a YAML vocabulary file. Missing fields fall back to
// DefaultVocabulary.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes YAML vocabulary data.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	v := &Vocabulary{}
	if err := yaml.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("parsing vocabulary: %w", err)
	}

	def := DefaultVocabulary()
	if v.MaxTags <= 0 {
		v.MaxTags = def.MaxTags
	}
	if v.DefaultLanguage == "" {
		v.DefaultLanguage = def.DefaultLanguage
	}
	if len(v.Languages) == 0 {
		v.Languages = def.Languages
	}
	if _, ok := v.Languages[v.DefaultLanguage]; !ok {
		return nil, fmt.Errorf("vocabulary has no prompt for default language %q", v.DefaultLanguage)
	}
	return v, nil
}

// Prompt returns the prompt for lang, falling back to the default language.
// Region subtags are ignored, so "pt-BR" uses "pt".
func (v *Vocabulary) Prompt(lang string) (string, string) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if l, ok := v.Languages[lang]; ok {
		return l.Prompt, lang
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		if l, ok := v.Languages[lang[:i]]; ok {
			return l.Prompt, lang[:i]
		}
	}
	return v.Languages[v.DefaultLanguage].Prompt, v.DefaultLanguage
}
