package patient

import (
	"time"

	"github.com/google/uuid"
)

// Default demographics applied when EMR parsing yields none.
const (
	DefaultName   = "John Anderson"
	DefaultMRN    = "12345678"
	DefaultAge    = 59
	DefaultGender = "Male"
)

// Patient maps to the patients table. It is the admission record every other
// discharge artifact hangs off.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	MRN       string     `db:"mrn" json:"mrn"`
	Name      string     `db:"name" json:"name"`
	Age       int        `db:"age" json:"age"`
	Gender    string     `db:"gender" json:"gender"`
	Attending *string    `db:"attending" json:"attending,omitempty"`
	Room      *string    `db:"room" json:"room,omitempty"`
	AdmitDate *time.Time `db:"admit_date" json:"admit_date,omitempty"`
	Diagnosis *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// ApplyDefaults fills missing demographics with the standard placeholders.
func (p *Patient) ApplyDefaults() {
	if p.Name == "" {
		p.Name = DefaultName
	}
	if p.MRN == "" {
		p.MRN = DefaultMRN
	}
	if p.Age == 0 {
		p.Age = DefaultAge
	}
	if p.Gender == "" {
		p.Gender = DefaultGender
	}
}
