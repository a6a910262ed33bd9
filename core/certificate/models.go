package certificate

import (
	"time"

	"github.com/trezcool/elimu/core/catalog"
)

// Certificate is an immutable completion record. Display fields are
// snapshotted at issuance, not live references.
type Certificate struct {
	ID             int           `json:"id"`
	StudentID      int           `json:"student_id"`
	ModuleID       int           `json:"module_id"`
	EnrollmentID   int           `json:"enrollment_id"`
	StudentName    string        `json:"student_name"`
	ModuleName     string        `json:"module_name"`
	Level          catalog.Level `json:"level"`
	CategoryName   string        `json:"category_name"`
	InstructorName string        `json:"instructor_name"`
	Score          int           `json:"score"`
	Number         string        `json:"number"`
	// PublicID is the opaque verification id exposed to the outside world.
	PublicID string    `json:"public_id"`
	IssuedAt time.Time `json:"issued_at"` // UTC
}

// Renderer produces a downloadable document for a certificate (e.g. PDF).
// Rendering happens on demand, never during grading.
type Renderer interface {
	Render(cert Certificate) ([]byte, string, error) // bytes, content type
}
