// Package i18n loads translation dictionaries and formats localized dates.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path"
	"strconv"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*/*.yaml
var locales embed.FS

// ErrUnknownLanguage is returned by Load when no locale directory exists.
var ErrUnknownLanguage = errors.New("i18n: unknown language")

// Dictionary maps source strings to their translation. It is immutable
// once loaded.
type Dictionary struct {
	lang    string
	entries map[string]string
}

// Load reads every embedded YAML file for lang into one dictionary.
func Load(lang string) (*Dictionary, error) {
	files, err := fs.Glob(locales, path.Join("locales", lang, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}

	d := &Dictionary{lang: lang, entries: make(map[string]string)}
	for _, name := range files {
		data, err := locales.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if err := decodeInto(d.entries, data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return d, nil
}

// LoadFile reads a dictionary from a YAML file on disk.
func LoadFile(lang, file string) (*Dictionary, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	d := &Dictionary{lang: lang, entries: make(map[string]string)}
	if err := decodeInto(d.entries, data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	return d, nil
}

func decodeInto(dst map[string]string, data []byte) error {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	maps.Copy(dst, raw)
	return nil
}

// Lang returns the dictionary language.
func (d *Dictionary) Lang() string { return d.lang }

// Len returns the number of entries.
func (d *Dictionary) Len() int { return len(d.entries) }

// Lookup returns the translation for key.
func (d *Dictionary) Lookup(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d.entries[key]
	return v, ok
}

// T returns the translation for key, or key itself when there is none.
func (d *Dictionary) T(key string) string {
	if v, ok := d.Lookup(key); ok {
		return v
	}
	return key
}

// Merge returns a new dictionary with override's entries on top of d's.
func (d *Dictionary) Merge(override *Dictionary) *Dictionary {
	out := &Dictionary{lang: d.lang, entries: maps.Clone(d.entries)}
	if override != nil {
		maps.Copy(out.entries, override.entries)
	}
	return out
}

// FormatDate renders t as day, genitive month name and year: "2 января 2026".
func (d *Dictionary) FormatDate(t time.Time) string {
	return strconv.Itoa(t.Day()) + " " + d.T(t.Month().String()) + " " + strconv.Itoa(t.Year())
}

// FormatShortDate renders t with the abbreviated month: "2 янв 2026".
func (d *Dictionary) FormatShortDate(t time.Time) string {
	month := t.Month().String()
	short := d.T(month[:3])
	if month == "May" {
		short = d.T(month)
	}
	return strconv.Itoa(t.Day()) + " " + short + " " + strconv.Itoa(t.Year())
}

// Weekday returns the localized weekday name of t.
func (d *Dictionary) Weekday(t time.Time) string {
	return d.T(t.Weekday().String())
}

// Store holds the active dictionary and allows swapping it at runtime.
type Store struct {
	cur atomic.Pointer[Dictionary]
}

// NewStore creates a store holding d.
func NewStore(d *Dictionary) *Store {
	s := &Store{}
	s.cur.Store(d)
	return s
}

// Get returns the active dictionary.
func (s *Store) Get() *Dictionary {
	return s.cur.Load()
}

// Swap replaces the active dictionary.
func (s *Store) Swap(d *Dictionary) {
	s.cur.Store(d)
}
