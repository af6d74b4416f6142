package document

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lexbr/legal-qa-system/internal/models"
)

// TestExtractDocumentInfo covers type, number, year and date extraction.
func TestExtractDocumentInfo(t *testing.T) {
	t.Run("lei with number and year", func(t *testing.T) {
		info := ExtractDocumentInfo("Lei n. 13.828/2019", "qualquer texto")
		assert.Equal(t, models.DocTypeLei, info.DocType)
		assert.Equal(t, "13.828", info.DocNumber)
		assert.Equal(t, "2019", info.DocYear)
		assert.Equal(t, "Lei n. 13.828/2019", info.Source)
	})

	t.Run("decreto with publication date in body", func(t *testing.T) {
		info := ExtractDocumentInfo("Decreto n. 5.903/2006", "Brasília, 20 de setembro de 2006")
		assert.Equal(t, models.DocTypeDecreto, info.DocType)
		assert.Equal(t, "5.903", info.DocNumber)
		assert.Equal(t, "2006", info.DocYear)
		assert.Equal(t, "20/09/2006", info.PublicationDate)
	})

	t.Run("doc type priority order", func(t *testing.T) {
		cases := []struct {
			name string
			want models.DocType
		}{
			{"Código de Defesa do Consumidor", models.DocTypeCodigo},
			{"Código do Consumidor (Lei nº 8.078/90)", models.DocTypeCodigo}, // codigo wins over lei
			{"Lei Geral de Proteção de Dados", models.DocTypeLei},
			{"Decreto regulamentador do SAC", models.DocTypeDecreto},
			{"Resolução CNSP 382", models.DocTypeResolucao},
			{"resolucao_bacen_4949.pdf", models.DocTypeResolucao},
			{"Portaria 12 de 2020", models.DocTypeUnknown},
		}
		for _, tc := range cases {
			info := ExtractDocumentInfo(tc.name, "")
			assert.Equal(t, tc.want, info.DocType, "name %q", tc.name)
		}
	})

	t.Run("number markers", func(t *testing.T) {
		for _, name := range []string{
			"Lei nº 8.078/1990",
			"Lei n° 8.078/1990",
			"Lei n. 8.078/1990",
			"Lei n 8.078/1990",
		} {
			info := ExtractDocumentInfo(name, "")
			assert.Equal(t, "8.078", info.DocNumber, "name %q", name)
			assert.Equal(t, "1990", info.DocYear, "name %q", name)
		}
	})

	t.Run("missing fields stay absent", func(t *testing.T) {
		info := ExtractDocumentInfo("Anotações gerais", "sem data por extenso")
		assert.Equal(t, models.DocTypeUnknown, info.DocType)
		assert.Empty(t, info.DocNumber)
		assert.Empty(t, info.DocYear)
		assert.Empty(t, info.PublicationDate)

		flat := info.Flatten()
		_, hasNumber := flat["doc_number"]
		_, hasYear := flat["doc_year"]
		_, hasDate := flat["publication_date"]
		assert.False(t, hasNumber, "absent number must not appear in flattened metadata")
		assert.False(t, hasYear)
		assert.False(t, hasDate)
	})

	t.Run("number without year", func(t *testing.T) {
		info := ExtractDocumentInfo("Resolução nº 123", "")
		assert.Equal(t, "123", info.DocNumber)
		assert.Empty(t, info.DocYear)
	})

	t.Run("first date in body wins", func(t *testing.T) {
		body := "Rio de Janeiro, 11 de setembro de 1990. Retificado em 2 de janeiro de 1991."
		info := ExtractDocumentInfo("Lei nº 8.078/90", body)
		assert.Equal(t, "11/09/1990", info.PublicationDate)
	})

	t.Run("single digit day is zero padded", func(t *testing.T) {
		info := ExtractDocumentInfo("Decreto 99", "Brasília, 5 de março de 2021")
		assert.Equal(t, "05/03/2021", info.PublicationDate)
	})

	t.Run("unknown month maps to 00", func(t *testing.T) {
		info := ExtractDocumentInfo("Lei 1", "em 10 de brumario de 2020")
		assert.Equal(t, "10/00/2020", info.PublicationDate)
	})

	t.Run("deterministic", func(t *testing.T) {
		a := ExtractDocumentInfo("Lei n. 13.828/2019", "1 de janeiro de 2019")
		b := ExtractDocumentInfo("Lei n. 13.828/2019", "1 de janeiro de 2019")
		assert.Equal(t, a, b)
	})
}

// TestMonthToNumber checks the fixed lookup table.
func TestMonthToNumber(t *testing.T) {
	assert.Equal(t, "01", monthToNumber("janeiro"))
	assert.Equal(t, "03", monthToNumber("Março"))
	assert.Equal(t, "12", monthToNumber("DEZEMBRO"))
	assert.Equal(t, "00", monthToNumber("brumário"))
}
