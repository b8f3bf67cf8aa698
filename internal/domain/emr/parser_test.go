package emr

import (
	"testing"
)

const sampleText = `DISCHARGE SUMMARY

Name: Robert Chen
MRN: 44556677
Age: 72
Gender: Male
Attending: Dr. Sarah Kim

DISCHARGE MEDICATIONS:
1. Lisinopril 10 mg PO daily
2. Metformin 500 mg PO twice daily with meals
3. Albuterol inhaler 2 puffs q6h prn
* Atorvastatin 40 mg PO nightly
Continue all home medications as prescribed

FOLLOW-UP:
1. Primary care in 7 days
`

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		filename string
		want     string
	}{
		{"pdf magic", "%PDF-1.4 rest", "chart", FormatPDF},
		{"pdf extension", "binary", "chart.pdf", FormatPDF},
		{"fhir json", `{"resourceType":"Bundle"}`, "bundle.json", FormatFHIR},
		{"ccda xml", `<?xml version="1.0"?><ClinicalDocument/>`, "doc.xml", FormatCCDA},
		{"free text", "Name: Jane Doe", "notes.txt", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat([]byte(tt.data), tt.filename); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParser_FreeTextDemographics(t *testing.T) {
	p := NewParser()
	rec, _, err := p.Parse([]byte(sampleText), "discharge.txt")
	if err != nil {
		t.Fatal(err)
	}

	d := rec.Demographics
	if d.Name != "Robert Chen" {
		t.Errorf("name = %q", d.Name)
	}
	if d.MRN != "44556677" {
		t.Errorf("mrn = %q", d.MRN)
	}
	if d.Age != 72 {
		t.Errorf("age = %d", d.Age)
	}
	if d.Gender != "Male" {
		t.Errorf("gender = %q", d.Gender)
	}
	if d.Attending != "Dr. Sarah Kim" {
		t.Errorf("attending = %q", d.Attending)
	}
}

func TestParser_FreeTextMedications(t *testing.T) {
	p := NewParser()
	rec, _, err := p.Parse([]byte(sampleText), "discharge.txt")
	if err != nil {
		t.Fatal(err)
	}

	if len(rec.Medications) != 4 {
		t.Fatalf("expected 4 medications, got %d: %+v", len(rec.Medications), rec.Medications)
	}

	first := rec.Medications[0]
	if first.Name != "Lisinopril" {
		t.Errorf("name = %q", first.Name)
	}
	if first.Dosage != "10 mg" {
		t.Errorf("dosage = %q", first.Dosage)
	}
	if first.Frequency != "daily" {
		t.Errorf("frequency = %q", first.Frequency)
	}
	if first.Route != "PO" {
		t.Errorf("route = %q", first.Route)
	}

	second := rec.Medications[1]
	if second.Frequency != "twice daily" {
		t.Errorf("metformin frequency = %q", second.Frequency)
	}

	third := rec.Medications[2]
	if third.Frequency != "every 6 hours" {
		t.Errorf("albuterol frequency = %q", third.Frequency)
	}

	fourth := rec.Medications[3]
	if fourth.Name != "Atorvastatin" || fourth.Frequency != "nightly" {
		t.Errorf("atorvastatin = %+v", fourth)
	}
}

func TestParser_FreeTextSkipsSectionNoise(t *testing.T) {
	text := `MEDICATIONS:
---
No home medications prior to admission
1. Aspirin 81 mg PO daily
FOLLOW-UP:
1. Cardiology in 2 weeks
`
	p := NewParser()
	rec, _, err := p.Parse([]byte(text), "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Medications) != 1 {
		t.Fatalf("expected 1 medication, got %d: %+v", len(rec.Medications), rec.Medications)
	}
	if rec.Medications[0].Name != "Aspirin" {
		t.Errorf("name = %q", rec.Medications[0].Name)
	}
}

const sampleBundle = `{
  "resourceType": "Bundle",
  "type": "collection",
  "entry": [
    {"resource": {
      "resourceType": "Patient",
      "identifier": [{"value": "MRN-123456789"}],
      "name": [{"given": ["John"], "family": "Sample"}],
      "gender": "male",
      "birthDate": "1965-03-15"
    }},
    {"resource": {
      "resourceType": "Condition",
      "code": {"coding": [{"code": "I21.9", "display": "Acute myocardial infarction"}], "text": "Heart Attack"},
      "clinicalStatus": {"coding": [{"code": "active"}]}
    }},
    {"resource": {
      "resourceType": "MedicationRequest",
      "medicationCodeableConcept": {"coding": [{"display": "Lisinopril 10 MG Oral Tablet"}]},
      "dosageInstruction": [{"text": "Take 10mg by mouth once daily"}]
    }},
    {"resource": {
      "resourceType": "AllergyIntolerance",
      "code": {"text": "Penicillin"},
      "clinicalStatus": {"coding": [{"code": "active"}]}
    }},
    {"resource": {
      "resourceType": "Observation",
      "category": [{"coding": [{"code": "vital-signs"}]}],
      "code": {"text": "Heart Rate"},
      "valueQuantity": {"value": 72, "unit": "bpm"},
      "effectiveDateTime": "2026-08-20T09:00:00Z"
    }},
    {"resource": {
      "resourceType": "Observation",
      "category": [{"coding": [{"code": "laboratory"}]}],
      "code": {"text": "Hemoglobin A1c"},
      "valueQuantity": {"value": 7.2, "unit": "%"},
      "referenceRange": [{"text": "4.0-5.6"}],
      "effectiveDateTime": "2026-08-19T06:00:00Z"
    }}
  ]
}`

func TestParser_FHIRBundle(t *testing.T) {
	p := NewParser()
	rec, _, err := p.Parse([]byte(sampleBundle), "bundle.json")
	if err != nil {
		t.Fatal(err)
	}

	if rec.Demographics.Name != "John Sample" {
		t.Errorf("name = %q", rec.Demographics.Name)
	}
	if rec.Demographics.MRN != "MRN-123456789" {
		t.Errorf("mrn = %q", rec.Demographics.MRN)
	}
	if rec.Demographics.Gender != "Male" {
		t.Errorf("gender = %q", rec.Demographics.Gender)
	}
	if rec.Demographics.Age == 0 {
		t.Error("expected age derived from birth date")
	}

	if len(rec.Problems) != 1 || rec.Problems[0].Display != "Heart Attack" {
		t.Errorf("problems = %+v", rec.Problems)
	}
	if len(rec.Medications) != 1 || rec.Medications[0].Dosage != "Take 10mg by mouth once daily" {
		t.Errorf("medications = %+v", rec.Medications)
	}
	if len(rec.Allergies) != 1 || rec.Allergies[0].Substance != "Penicillin" {
		t.Errorf("allergies = %+v", rec.Allergies)
	}
	if len(rec.Vitals) != 1 || rec.Vitals[0].Value != "72 bpm" {
		t.Errorf("vitals = %+v", rec.Vitals)
	}
	if len(rec.Labs) != 1 || rec.Labs[0].ReferenceRange != "4.0-5.6" {
		t.Errorf("labs = %+v", rec.Labs)
	}
}

func TestParser_FHIRBloodPressureComponents(t *testing.T) {
	bundle := `{
	  "resourceType": "Bundle",
	  "entry": [{"resource": {
	    "resourceType": "Observation",
	    "category": [{"coding": [{"code": "vital-signs"}]}],
	    "code": {"text": "Blood Pressure"},
	    "component": [
	      {"code": {"text": "Systolic"}, "valueQuantity": {"value": 142, "unit": "mmHg"}},
	      {"code": {"text": "Diastolic"}, "valueQuantity": {"value": 88, "unit": "mmHg"}}
	    ]
	  }}]
	}`
	rec, err := parseFHIRBundle([]byte(bundle))
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Vitals) != 2 {
		t.Fatalf("expected 2 vitals, got %d", len(rec.Vitals))
	}
	if rec.Vitals[0].Value != "142 mmHg" || rec.Vitals[1].Value != "88 mmHg" {
		t.Errorf("vitals = %+v", rec.Vitals)
	}
}

func TestParsedRecord_Merge(t *testing.T) {
	base := &ParsedRecord{
		Demographics: Demographics{Name: "Robert Chen"},
		Medications:  []Medication{{Name: "Lisinopril"}},
	}
	other := &ParsedRecord{
		Demographics: Demographics{Name: "Should Not Win", MRN: "999"},
		Medications:  []Medication{{Name: "Metformin"}},
		Problems:     []Problem{{Display: "COPD"}},
	}
	base.Merge(other)

	if base.Demographics.Name != "Robert Chen" {
		t.Errorf("name overwritten: %q", base.Demographics.Name)
	}
	if base.Demographics.MRN != "999" {
		t.Errorf("mrn not filled: %q", base.Demographics.MRN)
	}
	if len(base.Medications) != 2 {
		t.Errorf("medications = %d", len(base.Medications))
	}
	if len(base.Problems) != 1 {
		t.Errorf("problems = %d", len(base.Problems))
	}
}
