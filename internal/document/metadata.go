package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lexbr/legal-qa-system/internal/models"
)

// docNumberPattern matches the identifying number of a Brazilian norm in
// a display name, e.g. "Lei nº 8.078/1990" or "Decreto n. 5.903/2006".
// The "n"/"nº"/"n°"/"n." marker is optional; the 4-digit year after "/"
// is optional too.
var docNumberPattern = regexp.MustCompile(`(?i)(?:n[º°.]?\s*)?(\d+(?:\.\d+)*)(?:/(\d{4}))?`)

// publicationDatePattern matches the promulgation date formula used in
// the closing of Brazilian legal texts: "20 de setembro de 2006".
var publicationDatePattern = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+([a-zç]+)\s+de\s+(\d{4})`)

// monthNumbers maps Portuguese month names to their two-digit numbers.
// Initialized once; never mutated.
var monthNumbers = map[string]string{
	"janeiro":   "01",
	"fevereiro": "02",
	"março":     "03",
	"abril":     "04",
	"maio":      "05",
	"junho":     "06",
	"julho":     "07",
	"agosto":    "08",
	"setembro":  "09",
	"outubro":   "10",
	"novembro":  "11",
	"dezembro":  "12",
}

// monthToNumber converts a Portuguese month name to its two-digit number.
// Unrecognized names map to "00" rather than failing.
func monthToNumber(name string) string {
	if n, ok := monthNumbers[strings.ToLower(name)]; ok {
		return n
	}
	return "00"
}

// ExtractDocumentInfo derives structural metadata for a legal document
// from its display name and body text. It never fails: any pattern that
// does not match simply leaves the corresponding field absent, so callers
// can always rely on the result without defensive checks.
func ExtractDocumentInfo(docName string, bodyText string) models.SegmentMetadata {
	info := models.SegmentMetadata{
		Source:  docName,
		DocType: detectDocType(docName),
	}

	if m := docNumberPattern.FindStringSubmatch(docName); m != nil {
		info.DocNumber = m[1]
		if m[2] != "" {
			info.DocYear = m[2]
		}
	}

	if m := publicationDatePattern.FindStringSubmatch(bodyText); m != nil {
		day, _ := strconv.Atoi(m[1])
		info.PublicationDate = fmt.Sprintf("%02d/%s/%s", day, monthToNumber(m[2]), m[3])
	}

	return info
}

// detectDocType classifies the document by substring match on the display
// name, checked in priority order. First match wins.
func detectDocType(docName string) models.DocType {
	name := strings.ToLower(docName)

	switch {
	case strings.Contains(name, "codigo") || strings.Contains(name, "código"):
		return models.DocTypeCodigo
	case strings.Contains(name, "lei"):
		return models.DocTypeLei
	case strings.Contains(name, "decreto"):
		return models.DocTypeDecreto
	case strings.Contains(name, "resolucao") || strings.Contains(name, "resolução"):
		return models.DocTypeResolucao
	default:
		return models.DocTypeUnknown
	}
}
