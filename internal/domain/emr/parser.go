package emr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/careexit/careexit/internal/platform/ccda"
)

// Parser turns raw uploaded bytes into a ParsedRecord. Format detection is
// content-first with filename extension as a tiebreaker.
type Parser struct {
	ccda *ccda.Parser
}

// NewParser creates a parser for all supported document formats.
func NewParser() *Parser {
	return &Parser{ccda: ccda.NewParser()}
}

// DetectFormat sniffs the document format from its leading bytes.
func DetectFormat(data []byte, filename string) string {
	trimmed := strings.TrimSpace(string(data[:min(len(data), 64)]))
	switch {
	case strings.HasPrefix(string(data), "%PDF"),
		strings.HasSuffix(strings.ToLower(filename), ".pdf"):
		return FormatPDF
	case strings.HasPrefix(trimmed, "{"):
		return FormatFHIR
	case strings.HasPrefix(trimmed, "<"):
		return FormatCCDA
	default:
		return FormatText
	}
}

// Parse dispatches on detected format and returns the extracted record and
// the plain text kept for the document row.
func (p *Parser) Parse(data []byte, filename string) (*ParsedRecord, string, error) {
	format := DetectFormat(data, filename)
	switch format {
	case FormatPDF:
		text, err := extractPDFText(data)
		if err != nil {
			return nil, "", fmt.Errorf("parse pdf %s: %w", filename, err)
		}
		rec := p.parseText(text, filename+" (PDF)")
		rec.Sources = []string{"PDF File: " + filename}
		return rec, text, nil
	case FormatFHIR:
		rec, err := parseFHIRBundle(data)
		if err != nil {
			return nil, "", fmt.Errorf("parse fhir %s: %w", filename, err)
		}
		rec.Sources = []string{"FHIR Bundle: " + filename}
		return rec, string(data), nil
	case FormatCCDA:
		rec, err := p.parseCCDA(data)
		if err != nil {
			return nil, "", fmt.Errorf("parse ccda %s: %w", filename, err)
		}
		rec.Sources = []string{"C-CDA Document: " + filename}
		return rec, string(data), nil
	default:
		rec := p.parseText(string(data), filename)
		rec.Sources = []string{"Text File: " + filename}
		return rec, string(data), nil
	}
}

func (p *Parser) parseCCDA(data []byte) (*ParsedRecord, error) {
	doc, err := p.ccda.Parse(data)
	if err != nil {
		return nil, err
	}

	rec := &ParsedRecord{
		Demographics: Demographics{
			Name:      doc.Patient.Name,
			MRN:       doc.Patient.MRN,
			Gender:    doc.Patient.Gender,
			BirthDate: doc.Patient.DOB,
		},
	}
	for _, sec := range doc.Sections {
		for _, item := range sec.Items {
			switch sec.Type {
			case "medications":
				rec.Medications = append(rec.Medications, Medication{
					Name:      item.Name,
					Dosage:    orDefault(item.Dosage, "as prescribed"),
					Frequency: "as directed",
					Route:     "PO",
					Status:    item.Status,
				})
			case "problems":
				rec.Problems = append(rec.Problems, Problem{
					Code:    item.Code,
					Display: item.Name,
					Status:  item.Status,
				})
			case "allergies":
				rec.Allergies = append(rec.Allergies, Allergy{
					Substance: item.Name,
					Status:    item.Status,
				})
			case "vital_signs":
				rec.Vitals = append(rec.Vitals, Vital{
					Type:  item.Name,
					Value: item.Value,
					Unit:  item.Unit,
					Date:  item.Date,
				})
			case "results":
				rec.Labs = append(rec.Labs, Lab{
					TestName: item.Name,
					Value:    item.Value,
					Unit:     item.Unit,
					Date:     item.Date,
				})
			}
		}
	}
	return rec, nil
}

var (
	dosageRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mg|g|mcg|units?|ml|tablets?|caps?)`)

	medSectionHeaders = []string{
		"medication", "current medications", "home medications", "discharge medications",
	}
	medSectionStops = []string{
		"DISCHARGE INSTRUCTIONS", "FOLLOW-UP", "IMMUNIZATIONS", "ADVANCE CARE",
		"PROVIDER CONTACT", "ALLERGIES", "VITALS", "IMAGING", "LABS",
	}
	medRejectNames = map[string]bool{
		"continue": true, "discharge": true, "imaging": true,
		"no": true, "as": true, "follow": true, "contact": true,
	}
)

// parseText applies the free-text heuristics: demographics from labeled
// lines, medications from a bulleted or numbered medication section.
func (p *Parser) parseText(content, filename string) *ParsedRecord {
	rec := &ParsedRecord{}
	lines := strings.Split(strings.TrimSpace(content), "\n")

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Name:"):
			rec.Demographics.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "MRN:"):
			rec.Demographics.MRN = strings.TrimSpace(strings.TrimPrefix(line, "MRN:"))
		case strings.HasPrefix(line, "Age:"):
			if age, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Age:"))); err == nil {
				rec.Demographics.Age = age
			}
		case strings.HasPrefix(line, "Gender:"):
			rec.Demographics.Gender = strings.TrimSpace(strings.TrimPrefix(line, "Gender:"))
		case strings.HasPrefix(line, "Attending:"):
			rec.Demographics.Attending = strings.TrimSpace(strings.TrimPrefix(line, "Attending:"))
		}
	}

	inMedSection := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		if hasAnyFold(line, medSectionHeaders) {
			inMedSection = true
			continue
		}
		if inMedSection && hasAnyUpper(line, medSectionStops) {
			inMedSection = false
			continue
		}
		if !inMedSection || line == "" {
			continue
		}
		if med, ok := parseMedicationLine(line); ok {
			rec.Medications = append(rec.Medications, med)
		}
	}

	note := content
	if len(note) > 500 {
		note = note[:500] + "..."
	}
	rec.Notes = append(rec.Notes, Note{
		Type:    "Uploaded Document",
		Author:  "Healthcare Provider",
		Content: note,
	})
	return rec
}

// parseMedicationLine accepts only lines that start with a number or bullet
// and carry a dosage or frequency token a prescription would have.
func parseMedicationLine(line string) (Medication, bool) {
	if len(line) < 3 || strings.HasPrefix(line, "_") ||
		strings.HasPrefix(line, "No home medications") ||
		strings.HasPrefix(line, "Medication reconciliation") {
		return Medication{}, false
	}

	first := line[0]
	bulleted := strings.HasPrefix(line, "*") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•")
	numbered := first >= '0' && first <= '9'
	if !numbered && !bulleted {
		return Medication{}, false
	}

	clean := line
	if numbered {
		if i := strings.Index(line, "."); i >= 0 {
			clean = strings.TrimSpace(line[i+1:])
		} else {
			clean = strings.TrimSpace(line[1:])
		}
	} else {
		clean = strings.TrimSpace(strings.TrimLeft(line, "*-• "))
	}
	parts := strings.Fields(clean)
	if len(parts) < 2 {
		return Medication{}, false
	}

	lower := strings.ToLower(clean)
	hasDosage := dosageRe.MatchString(lower)
	hasFrequency := extractFrequency(lower) != ""
	if !hasDosage && !hasFrequency {
		// Header noise like "Continue all home medications" lands here.
		return Medication{}, false
	}

	name := parts[0]
	if medRejectNames[strings.ToLower(name)] {
		return Medication{}, false
	}

	dosage := "as prescribed"
	if m := dosageRe.FindStringSubmatch(clean); m != nil {
		dosage = m[1] + " " + strings.ToLower(m[2])
	}
	frequency := extractFrequency(lower)
	if frequency == "" {
		frequency = "as prescribed"
	}

	return Medication{
		Name:         name,
		Dosage:       dosage,
		Frequency:    frequency,
		Route:        extractRoute(lower),
		Instructions: clean,
	}, true
}

func extractFrequency(lower string) string {
	switch {
	case strings.Contains(lower, "twice daily"), strings.Contains(lower, "bid"):
		return "twice daily"
	case strings.Contains(lower, "three times daily"), strings.Contains(lower, "tid"):
		return "three times daily"
	case strings.Contains(lower, "four times daily"), strings.Contains(lower, "qid"):
		return "four times daily"
	case strings.Contains(lower, "nightly"):
		return "nightly"
	case strings.Contains(lower, "weekly"):
		return "weekly"
	case strings.Contains(lower, "daily"):
		return "daily"
	case strings.Contains(lower, "q6h"):
		return "every 6 hours"
	case strings.Contains(lower, "q8h"):
		return "every 8 hours"
	case strings.Contains(lower, "q12h"):
		return "every 12 hours"
	case strings.Contains(lower, "prn"), strings.Contains(lower, "as needed"):
		return "as needed"
	default:
		return ""
	}
}

func extractRoute(lower string) string {
	words := strings.Fields(lower)
	for _, w := range words {
		switch strings.Trim(w, ".,;()") {
		case "po":
			return "PO"
		case "iv":
			return "IV"
		case "im":
			return "IM"
		case "sc", "subq":
			return "SC"
		case "topical":
			return "Topical"
		}
	}
	return "PO"
}

func hasAnyFold(s string, subs []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

func hasAnyUpper(s string, subs []string) bool {
	upper := strings.ToUpper(s)
	for _, sub := range subs {
		if strings.Contains(upper, sub) {
			return true
		}
	}
	return false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
