// Package i18n renders localized notification texts from YAML bundles.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// Locale selects the reseller override set and the language of a rendering.
type Locale struct {
	ResellerID int64
	Language   string
}

type localeFile struct {
	Messages  map[string]string           `yaml:"messages"`
	Resellers map[int64]map[string]string `yaml:"resellers"`
}

// Bundle holds messages per language plus per-reseller overrides.
type Bundle struct {
	mu          sync.RWMutex
	defaultLang string
	messages    map[string]map[string]string
	overrides   map[string]map[int64]map[string]string
}

// NewBundle loads the embedded locales. defaultLang is used when the requested
// language has no text for a key.
func NewBundle(defaultLang string) (*Bundle, error) {
	b := &Bundle{
		defaultLang: normalizeLanguage(defaultLang),
		messages:    make(map[string]map[string]string),
		overrides:   make(map[string]map[int64]map[string]string),
	}
	if b.defaultLang == "" {
		b.defaultLang = "en"
	}
	if err := b.loadFS(embeddedLocales, "locales"); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadDir merges every <lang>.yaml in dir over the loaded messages.
func (b *Bundle) LoadDir(dir string) error {
	return b.loadFS(os.DirFS(dir), ".")
}

func (b *Bundle) loadFS(fsys fs.FS, root string) error {
	matches, err := fs.Glob(fsys, filepath.ToSlash(filepath.Join(root, "*.yaml")))
	if err != nil {
		return fmt.Errorf("list locale files: %w", err)
	}
	for _, path := range matches {
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("read locale %s: %w", path, err)
		}
		var lf localeFile
		if err := yaml.Unmarshal(raw, &lf); err != nil {
			return fmt.Errorf("parse locale %s: %w", path, err)
		}
		lang := normalizeLanguage(strings.TrimSuffix(filepath.Base(path), ".yaml"))
		b.merge(lang, lf)
	}
	return nil
}

func (b *Bundle) merge(lang string, lf localeFile) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.messages[lang] == nil {
		b.messages[lang] = make(map[string]string)
	}
	for k, v := range lf.Messages {
		b.messages[lang][k] = v
	}

	if len(lf.Resellers) == 0 {
		return
	}
	if b.overrides[lang] == nil {
		b.overrides[lang] = make(map[int64]map[string]string)
	}
	for reseller, msgs := range lf.Resellers {
		if b.overrides[lang][reseller] == nil {
			b.overrides[lang][reseller] = make(map[string]string)
		}
		for k, v := range msgs {
			b.overrides[lang][reseller][k] = v
		}
	}
}

// Render resolves key for loc and substitutes {{NAME}} placeholders from vars.
// Lookup order: reseller override, language, default language, the key itself.
func (b *Bundle) Render(key string, vars map[string]string, loc Locale) string {
	return renderTemplate(b.lookup(key, loc), vars)
}

func (b *Bundle) lookup(key string, loc Locale) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	langs := []string{normalizeLanguage(loc.Language)}
	if langs[0] != b.defaultLang {
		langs = append(langs, b.defaultLang)
	}

	for _, lang := range langs {
		if lang == "" {
			continue
		}
		if text, ok := b.overrides[lang][loc.ResellerID][key]; ok {
			return text
		}
		if text, ok := b.messages[lang][key]; ok {
			return text
		}
	}
	return key
}

// normalizeLanguage maps "ru-RU" and "ru_RU" to "ru".
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// renderTemplate replaces placeholders in a single scan of tmpl. Unknown
// placeholders render empty; substituted values are never rescanned.
func renderTemplate(tmpl string, data map[string]string) string {
	var sb strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end == -1 {
			break
		}
		sb.WriteString(rest[:start])
		sb.WriteString(data[rest[start+2:start+2+end]])
		rest = rest[start+2+end+2:]
	}
	sb.WriteString(rest)
	return strings.TrimSpace(sb.String())
}
