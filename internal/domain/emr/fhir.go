package emr

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type fhirBundle struct {
	ResourceType string `json:"resourceType"`
	Entry        []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

type fhirCoding struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

type fhirCodeableConcept struct {
	Coding []fhirCoding `json:"coding"`
	Text   string       `json:"text"`
}

func (c fhirCodeableConcept) display(fallback string) string {
	if c.Text != "" {
		return c.Text
	}
	if len(c.Coding) > 0 && c.Coding[0].Display != "" {
		return c.Coding[0].Display
	}
	return fallback
}

func (c fhirCodeableConcept) code() string {
	if len(c.Coding) > 0 {
		return c.Coding[0].Code
	}
	return ""
}

type fhirQuantity struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

func (q fhirQuantity) render() string {
	if q.Value == nil {
		return ""
	}
	v := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", *q.Value), "0"), ".")
	return strings.TrimSpace(v + " " + q.Unit)
}

// parseFHIRBundle walks entry[].resource by resourceType. Both single
// resources and full bundles are accepted.
func parseFHIRBundle(data []byte) (*ParsedRecord, error) {
	var bundle fhirBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("invalid FHIR JSON: %w", err)
	}

	rec := &ParsedRecord{}
	if bundle.ResourceType != "Bundle" {
		parseFHIRResource(rec, data)
		return rec, nil
	}
	for _, entry := range bundle.Entry {
		parseFHIRResource(rec, entry.Resource)
	}
	return rec, nil
}

func parseFHIRResource(rec *ParsedRecord, raw json.RawMessage) {
	var header struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return
	}

	switch header.ResourceType {
	case "Patient":
		parseFHIRPatient(rec, raw)
	case "Condition":
		parseFHIRCondition(rec, raw)
	case "MedicationRequest", "MedicationStatement":
		parseFHIRMedication(rec, raw)
	case "AllergyIntolerance":
		parseFHIRAllergy(rec, raw)
	case "Observation":
		parseFHIRObservation(rec, raw)
	}
}

func parseFHIRPatient(rec *ParsedRecord, raw json.RawMessage) {
	var p struct {
		Identifier []struct {
			Value string `json:"value"`
		} `json:"identifier"`
		Name []struct {
			Given  []string `json:"given"`
			Family string   `json:"family"`
		} `json:"name"`
		Gender    string `json:"gender"`
		BirthDate string `json:"birthDate"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	if len(p.Name) > 0 {
		rec.Demographics.Name = strings.TrimSpace(strings.Join(p.Name[0].Given, " ") + " " + p.Name[0].Family)
	}
	if len(p.Identifier) > 0 {
		rec.Demographics.MRN = p.Identifier[0].Value
	}
	if p.Gender != "" {
		rec.Demographics.Gender = strings.ToUpper(p.Gender[:1]) + p.Gender[1:]
	}
	rec.Demographics.BirthDate = p.BirthDate
	rec.Demographics.Age = ageFromBirthDate(p.BirthDate)
}

func parseFHIRCondition(rec *ParsedRecord, raw json.RawMessage) {
	var c struct {
		Code           fhirCodeableConcept `json:"code"`
		ClinicalStatus fhirCodeableConcept `json:"clinicalStatus"`
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return
	}
	rec.Problems = append(rec.Problems, Problem{
		Code:    c.Code.code(),
		Display: c.Code.display("Unknown Condition"),
		Status:  c.ClinicalStatus.code(),
	})
}

func parseFHIRMedication(rec *ParsedRecord, raw json.RawMessage) {
	var m struct {
		Medication        fhirCodeableConcept `json:"medicationCodeableConcept"`
		Status            string              `json:"status"`
		DosageInstruction []struct {
			Text string `json:"text"`
		} `json:"dosageInstruction"`
		Dosage []struct {
			Text string `json:"text"`
		} `json:"dosage"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}

	dosage := "As prescribed"
	if len(m.DosageInstruction) > 0 && m.DosageInstruction[0].Text != "" {
		dosage = m.DosageInstruction[0].Text
	} else if len(m.Dosage) > 0 && m.Dosage[0].Text != "" {
		dosage = m.Dosage[0].Text
	}
	rec.Medications = append(rec.Medications, Medication{
		Name:      m.Medication.display("Unknown Medication"),
		Dosage:    dosage,
		Frequency: "As directed",
		Route:     "PO",
		Status:    orDefault(m.Status, "active"),
	})
}

func parseFHIRAllergy(rec *ParsedRecord, raw json.RawMessage) {
	var a struct {
		Code           fhirCodeableConcept `json:"code"`
		ClinicalStatus fhirCodeableConcept `json:"clinicalStatus"`
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return
	}
	rec.Allergies = append(rec.Allergies, Allergy{
		Substance: a.Code.display("Unknown Allergen"),
		Status:    a.ClinicalStatus.code(),
	})
}

func parseFHIRObservation(rec *ParsedRecord, raw json.RawMessage) {
	var o struct {
		Category []struct {
			Coding []fhirCoding `json:"coding"`
		} `json:"category"`
		Code              fhirCodeableConcept `json:"code"`
		ValueQuantity     fhirQuantity        `json:"valueQuantity"`
		EffectiveDateTime string              `json:"effectiveDateTime"`
		ReferenceRange    []struct {
			Text string `json:"text"`
		} `json:"referenceRange"`
		Component []struct {
			Code          fhirCodeableConcept `json:"code"`
			ValueQuantity fhirQuantity        `json:"valueQuantity"`
		} `json:"component"`
	}
	if err := json.Unmarshal(raw, &o); err != nil {
		return
	}

	category := ""
	if len(o.Category) > 0 && len(o.Category[0].Coding) > 0 {
		category = o.Category[0].Coding[0].Code
	}
	date := ""
	if o.EffectiveDateTime != "" && len(o.EffectiveDateTime) >= 10 {
		date = o.EffectiveDateTime[:10]
	}

	if category == "vital-signs" {
		if len(o.Component) > 0 {
			// Multi-component observations, blood pressure in practice.
			for _, comp := range o.Component {
				rec.Vitals = append(rec.Vitals, Vital{
					Type:  comp.Code.display("Vital Sign"),
					Value: comp.ValueQuantity.render(),
					Unit:  comp.ValueQuantity.Unit,
					Date:  date,
				})
			}
			return
		}
		rec.Vitals = append(rec.Vitals, Vital{
			Type:  o.Code.display("Vital Sign"),
			Value: o.ValueQuantity.render(),
			Unit:  o.ValueQuantity.Unit,
			Date:  date,
		})
		return
	}

	refRange := ""
	if len(o.ReferenceRange) > 0 {
		refRange = o.ReferenceRange[0].Text
	}
	rec.Labs = append(rec.Labs, Lab{
		TestName:       o.Code.display("Lab Test"),
		Value:          o.ValueQuantity.render(),
		Unit:           o.ValueQuantity.Unit,
		ReferenceRange: refRange,
		Date:           date,
	})
}

func ageFromBirthDate(birthDate string) int {
	t, err := time.Parse("2006-01-02", birthDate)
	if err != nil {
		return 0
	}
	now := time.Now()
	age := now.Year() - t.Year()
	if now.Month() < t.Month() || (now.Month() == t.Month() && now.Day() < t.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
