package epic

import (
	"encoding/json"
	"fmt"
)

// Sandbox data returned in mock mode. Shapes follow the Epic R4 sandbox.

func mockPatient(patientID string) json.RawMessage {
	return rawf(`{
		"resourceType": "Patient",
		"id": %q,
		"name": [{"family": "Anderson", "given": ["John"]}],
		"birthDate": "1965-03-15",
		"gender": "male",
		"address": [{"city": "Seattle", "state": "WA", "postalCode": "98101"}],
		"telecom": [{"system": "phone", "value": "206-555-0123"}],
		"identifier": [{"system": "MRN", "value": "12345678"}]
	}`, patientID)
}

func mockSearch(resourceType, patientID string) []json.RawMessage {
	subject := fmt.Sprintf("Patient/%s", patientID)
	switch resourceType {
	case "Encounter":
		return []json.RawMessage{rawf(`{
			"resourceType": "Encounter",
			"id": "encounter_%s",
			"status": "in-progress",
			"class": {"code": "inpatient"},
			"subject": {"reference": %q},
			"period": {"start": "2024-08-01T08:00:00Z"},
			"reasonCode": [{"text": "Pneumonia"}],
			"location": [{"location": {"display": "Med-Surg 4A, Room 401B"}}]
		}`, patientID, subject)}
	case "Condition":
		return []json.RawMessage{
			rawf(`{
				"resourceType": "Condition",
				"id": "condition_1_%s",
				"code": {"coding": [{"system": "ICD-10", "code": "J44.1", "display": "COPD with exacerbation"}]},
				"subject": {"reference": %q},
				"clinicalStatus": {"coding": [{"code": "active"}]}
			}`, patientID, subject),
			rawf(`{
				"resourceType": "Condition",
				"id": "condition_2_%s",
				"code": {"coding": [{"system": "ICD-10", "code": "E11.9", "display": "Type 2 diabetes"}]},
				"subject": {"reference": %q},
				"clinicalStatus": {"coding": [{"code": "active"}]}
			}`, patientID, subject),
		}
	case "MedicationRequest":
		return []json.RawMessage{
			rawf(`{
				"resourceType": "MedicationRequest",
				"id": "med_1_%s",
				"status": "active",
				"medicationCodeableConcept": {"coding": [{"system": "RxNorm", "code": "197454", "display": "Albuterol inhaler"}]},
				"subject": {"reference": %q},
				"dosageInstruction": [{"text": "2 puffs every 4-6 hours as needed"}]
			}`, patientID, subject),
			rawf(`{
				"resourceType": "MedicationRequest",
				"id": "med_2_%s",
				"status": "active",
				"medicationCodeableConcept": {"coding": [{"system": "RxNorm", "code": "860975", "display": "Metformin 500mg"}]},
				"subject": {"reference": %q},
				"dosageInstruction": [{"text": "500mg twice daily with meals"}]
			}`, patientID, subject),
		}
	case "Observation":
		return []json.RawMessage{
			rawf(`{
				"resourceType": "Observation",
				"id": "obs_1_%s",
				"status": "final",
				"category": [{"coding": [{"code": "vital-signs"}]}],
				"code": {"coding": [{"system": "LOINC", "code": "8480-6", "display": "Systolic blood pressure"}]},
				"subject": {"reference": %q},
				"valueQuantity": {"value": 142, "unit": "mmHg"}
			}`, patientID, subject),
			rawf(`{
				"resourceType": "Observation",
				"id": "obs_2_%s",
				"status": "final",
				"category": [{"coding": [{"code": "vital-signs"}]}],
				"code": {"coding": [{"system": "LOINC", "code": "8462-4", "display": "Diastolic blood pressure"}]},
				"subject": {"reference": %q},
				"valueQuantity": {"value": 88, "unit": "mmHg"}
			}`, patientID, subject),
		}
	}
	return nil
}

func rawf(format string, args ...interface{}) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(format, args...))
}
