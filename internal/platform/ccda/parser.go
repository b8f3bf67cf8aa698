// Package ccda extracts clinical data from C-CDA XML documents. Sections are
// identified by their LOINC codes and reduced to flat items the discharge
// pipeline can merge with data from other document formats.
package ccda

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// ParsedDocument represents the extracted data from a C-CDA document.
type ParsedDocument struct {
	Title    string
	Created  time.Time
	Patient  ParsedPatient
	Sections []ParsedSection
}

// ParsedPatient contains the patient demographics extracted from the CDA header.
type ParsedPatient struct {
	Name   string
	DOB    string
	Gender string
	MRN    string
}

// ParsedSection holds data extracted from a single CDA section.
type ParsedSection struct {
	Type  string // "allergies", "medications", "problems", "results", "vital_signs"
	Title string
	Items []Item
}

// Item is a single clinical fact from a section. Value and Unit are set for
// results and vitals; Dosage for medications.
type Item struct {
	Name   string
	Code   string
	Status string
	Value  string
	Unit   string
	Dosage string
	Date   string
}

// Parser extracts structured data from C-CDA documents. It is safe for
// concurrent use because it holds no mutable state.
type Parser struct{}

// NewParser creates a new C-CDA parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads a C-CDA XML document and extracts structured data.
func (p *Parser) Parse(xmlData []byte) (*ParsedDocument, error) {
	if len(xmlData) == 0 {
		return nil, fmt.Errorf("ccda: XML data is empty")
	}

	var doc ClinicalDocument
	if err := xml.Unmarshal(xmlData, &doc); err != nil {
		return nil, fmt.Errorf("ccda: failed to parse XML: %w", err)
	}

	result := &ParsedDocument{
		Title: doc.Title,
	}

	if doc.EffectiveTime != nil && doc.EffectiveTime.Value != "" {
		if t, err := parseHL7Time(doc.EffectiveTime.Value); err == nil {
			result.Created = t
		}
	}

	result.Patient = p.parsePatient(&doc)

	if doc.Component != nil && doc.Component.StructuredBody != nil {
		for _, comp := range doc.Component.StructuredBody.Components {
			if comp.Section == nil {
				continue
			}
			if ps := p.parseSection(comp.Section); ps != nil {
				result.Sections = append(result.Sections, *ps)
			}
		}
	}

	return result, nil
}

func (p *Parser) parsePatient(doc *ClinicalDocument) ParsedPatient {
	patient := ParsedPatient{}

	if doc.RecordTarget == nil || doc.RecordTarget.PatientRole == nil {
		return patient
	}

	role := doc.RecordTarget.PatientRole
	for _, id := range role.IDs {
		if id.Extension != "" {
			patient.MRN = id.Extension
			break
		}
	}

	if role.Patient == nil {
		return patient
	}
	pat := role.Patient

	if pat.Name != nil {
		parts := []string{}
		if pat.Name.Given != "" {
			parts = append(parts, pat.Name.Given)
		}
		if pat.Name.Family != "" {
			parts = append(parts, pat.Name.Family)
		}
		patient.Name = strings.Join(parts, " ")
	}

	if pat.AdministrativeGenderCode != nil {
		patient.Gender = pat.AdministrativeGenderCode.DisplayName
		if patient.Gender == "" {
			patient.Gender = pat.AdministrativeGenderCode.Code
		}
	}

	if pat.BirthTime != nil && pat.BirthTime.Value != "" {
		patient.DOB = formatParsedDate(pat.BirthTime.Value)
	}

	return patient
}

// parseSection maps a CDA section to a ParsedSection based on its LOINC code.
// Unrecognized sections are skipped.
func (p *Parser) parseSection(section *Section) *ParsedSection {
	if section.Code == nil {
		return nil
	}

	var sectionType string
	var items []Item
	switch section.Code.Code {
	case LOINCAllergies:
		sectionType = "allergies"
		items = p.actObservationItems(section)
	case LOINCMedications:
		sectionType = "medications"
		items = p.medicationItems(section)
	case LOINCProblems:
		sectionType = "problems"
		items = p.actObservationItems(section)
	case LOINCResults:
		sectionType = "results"
		items = p.organizerItems(section)
	case LOINCVitalSigns:
		sectionType = "vital_signs"
		items = p.organizerItems(section)
	default:
		return nil
	}

	return &ParsedSection{
		Type:  sectionType,
		Title: section.Title,
		Items: items,
	}
}

// actObservationItems extracts allergy and problem entries, both of which
// nest an observation inside an act.
func (p *Parser) actObservationItems(section *Section) []Item {
	var items []Item
	for _, e := range section.Entries {
		if e.Act == nil {
			continue
		}
		item := Item{}
		if e.Act.StatusCode != nil {
			item.Status = e.Act.StatusCode.Code
		}
		if e.Act.EffectiveTime != nil && e.Act.EffectiveTime.Low != nil {
			item.Date = formatParsedDate(e.Act.EffectiveTime.Low.Value)
		}
		for _, er := range e.Act.EntryRelationships {
			if er.Observation != nil && er.Observation.Value != nil {
				item.Name = er.Observation.Value.DisplayName
				item.Code = er.Observation.Value.Code
			}
		}
		if item.Name != "" {
			items = append(items, item)
		}
	}
	return items
}

func (p *Parser) medicationItems(section *Section) []Item {
	var items []Item
	for _, e := range section.Entries {
		sa := e.SubstanceAdministration
		if sa == nil {
			continue
		}
		item := Item{}
		if sa.StatusCode != nil {
			item.Status = sa.StatusCode.Code
		}
		if sa.DoseQuantity != nil && sa.DoseQuantity.Value != "" {
			item.Dosage = strings.TrimSpace(sa.DoseQuantity.Value + " " + sa.DoseQuantity.Unit)
		}
		if sa.Consumable != nil && sa.Consumable.ManufacturedProduct != nil &&
			sa.Consumable.ManufacturedProduct.ManufacturedMaterial != nil &&
			sa.Consumable.ManufacturedProduct.ManufacturedMaterial.Code != nil {
			code := sa.Consumable.ManufacturedProduct.ManufacturedMaterial.Code
			item.Name = code.DisplayName
			item.Code = code.Code
		}
		if item.Name != "" {
			items = append(items, item)
		}
	}
	return items
}

// organizerItems extracts results and vitals, which group observations inside
// an organizer.
func (p *Parser) organizerItems(section *Section) []Item {
	var items []Item
	for _, e := range section.Entries {
		if e.Organizer == nil {
			continue
		}
		for _, comp := range e.Organizer.Components {
			obs := comp.Observation
			if obs == nil {
				continue
			}
			item := Item{}
			if obs.Code != nil {
				item.Name = obs.Code.DisplayName
				item.Code = obs.Code.Code
			}
			if obs.Value != nil {
				item.Value = obs.Value.Value
				item.Unit = obs.Value.Unit
			}
			if obs.EffectiveTime != nil && obs.EffectiveTime.Low != nil {
				item.Date = formatParsedDate(obs.EffectiveTime.Low.Value)
			}
			if item.Name != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

// parseHL7Time parses an HL7 time string into a time.Time.
func parseHL7Time(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case 14: // YYYYMMDDHHmmss
		return time.Parse("20060102150405", s)
	case 12: // YYYYMMDDHHmm
		return time.Parse("200601021504", s)
	case 8: // YYYYMMDD
		return time.Parse("20060102", s)
	default:
		if len(s) > 14 {
			return time.Parse("20060102150405", s[:14])
		}
		return time.Time{}, fmt.Errorf("ccda: unrecognized time format: %s", s)
	}
}

// formatParsedDate converts an HL7 date (YYYYMMDD) to YYYY-MM-DD.
func formatParsedDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 8 {
		return s[:4] + "-" + s[4:6] + "-" + s[6:8]
	}
	return s
}
