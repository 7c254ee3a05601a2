package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalizedTextValidate(t *testing.T) {
	tests := []struct {
		name   string
		values map[Lang]string
		ok     bool
	}{
		{"both languages", map[Lang]string{LangRU: "Матч", LangEN: "Match"}, true},
		{"missing en", map[Lang]string{LangRU: "Матч"}, false},
		{"missing ru", map[Lang]string{LangEN: "Match"}, false},
		{"blank counts as missing", map[Lang]string{LangRU: "  ", LangEN: "Match"}, false},
		{"extra language is fine", map[Lang]string{LangRU: "Матч", LangEN: "Match", Lang("de"): "Spiel"}, true},
		{"nil map", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LocalizedText(tt.values).Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewLocalizedText(t *testing.T) {
	lt, err := NewLocalizedText(map[Lang]string{LangRU: "Концерт", LangEN: "Concert"})
	require.NoError(t, err)
	assert.Equal(t, "Concert", lt[LangEN])

	_, err = NewLocalizedText(map[Lang]string{LangEN: "Concert"})
	assert.Error(t, err)
}

func TestLocalizedTextGet(t *testing.T) {
	lt := LocalizedText{LangRU: "Дворец спорта", LangEN: "Sports Palace"}

	assert.Equal(t, "Дворец спорта", lt.Get(LangRU))
	assert.Equal(t, "Sports Palace", lt.Get(LangEN))

	// Unknown language falls back to the first required language with text.
	assert.Equal(t, "Дворец спорта", lt.Get(Lang("de")))

	partial := LocalizedText{LangEN: "Arena"}
	assert.Equal(t, "Arena", partial.Get(LangRU))

	assert.Equal(t, "", LocalizedText{}.Get(LangEN))
}
