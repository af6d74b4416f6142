package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalize verifies whitespace collapsing and control stripping.
func TestNormalize(t *testing.T) {
	t.Run("collapses whitespace runs", func(t *testing.T) {
		got := Normalize("Art.  1º   Fica\n\n aprovado\t o  regulamento")
		assert.Equal(t, "Art. 1º Fica aprovado o regulamento", got)
	})

	t.Run("strips control characters", func(t *testing.T) {
		got := Normalize("texto\x00com\x1Fcontrole\x7F")
		assert.Equal(t, "textocomcontrole", got)
		assert.NotContains(t, got, "\x00")
	})

	t.Run("trims edges", func(t *testing.T) {
		assert.Equal(t, "lei", Normalize("  \n lei \t "))
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		assert.Equal(t, "", Normalize(""))
		assert.Equal(t, "", Normalize("  \n\t "))
	})

	t.Run("never leaves double spaces", func(t *testing.T) {
		inputs := []string{
			"a  b",
			"a \x01 b",
			"a\n \nb",
			"  a\x02\x03  b  ",
		}
		for _, in := range inputs {
			got := Normalize(in)
			assert.NotContains(t, got, "  ", "input %q", in)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{
			"Art. 1º  Primeiro\n\nArt. 2º Segundo",
			" \x00 mixed\tcontent here ",
			"já normalizado",
		}
		for _, in := range inputs {
			once := Normalize(in)
			assert.Equal(t, once, Normalize(once), "input %q", in)
		}
	})

	t.Run("preserves accented characters", func(t *testing.T) {
		got := Normalize("proteção  do  consumidor")
		assert.Equal(t, "proteção do consumidor", got)
		assert.True(t, strings.Contains(got, "ç"))
	})
}
