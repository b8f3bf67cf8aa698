package ccda

import "encoding/xml"

// LOINC codes identifying the C-CDA sections the discharge pipeline consumes.
const (
	LOINCAllergies   = "48765-2"
	LOINCMedications = "10160-0"
	LOINCProblems    = "11450-4"
	LOINCResults     = "30954-2"
	LOINCVitalSigns  = "8716-3"
	LOINCProgressNote = "11506-3"
)

// ClinicalDocument is the root element of a CDA R2 document. Only the parts
// needed for discharge planning are mapped.
type ClinicalDocument struct {
	XMLName       xml.Name      `xml:"urn:hl7-org:v3 ClinicalDocument"`
	Title         string        `xml:"title,omitempty"`
	EffectiveTime *TimeValue    `xml:"effectiveTime,omitempty"`
	RecordTarget  *RecordTarget `xml:"recordTarget,omitempty"`
	Component     *Component    `xml:"component,omitempty"`
}

// InstanceID is a unique instance identifier.
type InstanceID struct {
	Root      string `xml:"root,attr"`
	Extension string `xml:"extension,attr,omitempty"`
}

// Code represents a coded value with optional code system.
type Code struct {
	Code           string `xml:"code,attr,omitempty"`
	CodeSystem     string `xml:"codeSystem,attr,omitempty"`
	CodeSystemName string `xml:"codeSystemName,attr,omitempty"`
	DisplayName    string `xml:"displayName,attr,omitempty"`
}

// TimeValue holds a time stamp in HL7 format (YYYYMMDD or YYYYMMDDHHmmss).
type TimeValue struct {
	Value string `xml:"value,attr,omitempty"`
}

// TimeRange represents an effectiveTime interval.
type TimeRange struct {
	Low  *TimeValue `xml:"low,omitempty"`
	High *TimeValue `xml:"high,omitempty"`
}

// RecordTarget holds the patient information in the CDA header.
type RecordTarget struct {
	PatientRole *PatientRole `xml:"patientRole,omitempty"`
}

// PatientRole contains patient identifiers and demographics.
type PatientRole struct {
	IDs     []InstanceID `xml:"id,omitempty"`
	Patient *Patient     `xml:"patient,omitempty"`
}

// Patient holds patient demographic data.
type Patient struct {
	Name                     *Name      `xml:"name,omitempty"`
	AdministrativeGenderCode *Code      `xml:"administrativeGenderCode,omitempty"`
	BirthTime                *TimeValue `xml:"birthTime,omitempty"`
}

// Name represents a person's name.
type Name struct {
	Given  string `xml:"given,omitempty"`
	Family string `xml:"family,omitempty"`
}

// Component wraps the structured body of the CDA document.
type Component struct {
	StructuredBody *StructuredBody `xml:"structuredBody,omitempty"`
}

// StructuredBody holds the document sections.
type StructuredBody struct {
	Components []SectionComponent `xml:"component,omitempty"`
}

// SectionComponent wraps a single section.
type SectionComponent struct {
	Section *Section `xml:"section,omitempty"`
}

// Section represents a CDA section with code, narrative, and entries.
type Section struct {
	Code    *Code      `xml:"code,omitempty"`
	Title   string     `xml:"title,omitempty"`
	Text    *Narrative `xml:"text,omitempty"`
	Entries []Entry    `xml:"entry,omitempty"`
}

// Narrative holds the human-readable narrative block for a section.
type Narrative struct {
	Content string `xml:",innerxml"`
}

// Entry represents a CDA entry element containing clinical data.
type Entry struct {
	Act                     *Act                     `xml:"act,omitempty"`
	Organizer               *Organizer               `xml:"organizer,omitempty"`
	SubstanceAdministration *SubstanceAdministration `xml:"substanceAdministration,omitempty"`
	Observation             *ObservationEntry        `xml:"observation,omitempty"`
}

// Act represents a CDA act element.
type Act struct {
	StatusCode         *Code               `xml:"statusCode,omitempty"`
	EffectiveTime      *TimeRange          `xml:"effectiveTime,omitempty"`
	EntryRelationships []EntryRelationship `xml:"entryRelationship,omitempty"`
}

// EntryRelationship links entries together.
type EntryRelationship struct {
	Observation *ObservationEntry `xml:"observation,omitempty"`
}

// ObservationEntry represents a CDA observation.
type ObservationEntry struct {
	Code          *Code      `xml:"code,omitempty"`
	StatusCode    *Code      `xml:"statusCode,omitempty"`
	EffectiveTime *TimeRange `xml:"effectiveTime,omitempty"`
	Value         *Value     `xml:"value,omitempty"`
}

// Value represents a typed value (physical quantity, coded value, etc.).
type Value struct {
	Value       string `xml:"value,attr,omitempty"`
	Unit        string `xml:"unit,attr,omitempty"`
	Code        string `xml:"code,attr,omitempty"`
	CodeSystem  string `xml:"codeSystem,attr,omitempty"`
	DisplayName string `xml:"displayName,attr,omitempty"`
}

// SubstanceAdministration represents a medication entry.
type SubstanceAdministration struct {
	StatusCode    *Code       `xml:"statusCode,omitempty"`
	EffectiveTime *TimeRange  `xml:"effectiveTime,omitempty"`
	Consumable    *Consumable `xml:"consumable,omitempty"`
	DoseQuantity  *Value      `xml:"doseQuantity,omitempty"`
}

// Consumable wraps a manufactured product (medication).
type Consumable struct {
	ManufacturedProduct *ManufacturedProduct `xml:"manufacturedProduct,omitempty"`
}

// ManufacturedProduct holds a medication material.
type ManufacturedProduct struct {
	ManufacturedMaterial *ManufacturedMaterial `xml:"manufacturedMaterial,omitempty"`
}

// ManufacturedMaterial holds the medication code.
type ManufacturedMaterial struct {
	Code *Code `xml:"code,omitempty"`
}

// Organizer groups related observations (lab panels, vital sign sets).
type Organizer struct {
	Code       *Code                `xml:"code,omitempty"`
	StatusCode *Code                `xml:"statusCode,omitempty"`
	Components []OrganizerComponent `xml:"component,omitempty"`
}

// OrganizerComponent wraps an observation inside an organizer.
type OrganizerComponent struct {
	Observation *ObservationEntry `xml:"observation,omitempty"`
}
