package i18n

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	d, err := Load("ru")
	require.NoError(t, err)

	assert.Equal(t, "ru", d.Lang())
	assert.Equal(t, 37, d.Len())

	v, ok := d.Lookup("January")
	assert.True(t, ok)
	assert.Equal(t, "января", v)
	assert.Equal(t, "Сб", d.T("Sat"))
}

func TestLoad_UnknownLanguage(t *testing.T) {
	_, err := Load("xx")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestT_FallsBackToKey(t *testing.T) {
	d, err := Load("ru")
	require.NoError(t, err)
	assert.Equal(t, "Smarch", d.T("Smarch"))

	var nilDict *Dictionary
	assert.Equal(t, "January", nilDict.T("January"))
}

func TestFormatDate(t *testing.T) {
	d, err := Load("ru")
	require.NoError(t, err)

	tests := []struct {
		at    time.Time
		full  string
		short string
		day   string
	}{
		{time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), "2 января 2026", "2 янв 2026", "Пятница"},
		{time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC), "9 мая 2025", "9 мая 2025", "Пятница"},
		{time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), "31 декабря 2024", "31 дек 2024", "Вторник"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.full, d.FormatDate(tt.at))
		assert.Equal(t, tt.short, d.FormatShortDate(tt.at))
		assert.Equal(t, tt.day, d.Weekday(tt.at))
	}
}

func TestLoadFileAndMerge(t *testing.T) {
	base, err := Load("ru")
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(file, []byte("January: январ\nGreeting: Привет\n"), 0644))

	override, err := LoadFile("ru", file)
	require.NoError(t, err)

	merged := base.Merge(override)
	assert.Equal(t, "январ", merged.T("January"))
	assert.Equal(t, "Привет", merged.T("Greeting"))
	assert.Equal(t, "января", base.T("January"), "base is not modified")
}

func TestLoadFile_Invalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("- not\n- a map\n"), 0644))

	_, err := LoadFile("ru", file)
	assert.Error(t, err)

	_, err = LoadFile("ru", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore(t *testing.T) {
	a, err := Load("ru")
	require.NoError(t, err)
	s := NewStore(a)
	assert.Same(t, a, s.Get())

	b := a.Merge(nil)
	s.Swap(b)
	assert.Same(t, b, s.Get())
}
