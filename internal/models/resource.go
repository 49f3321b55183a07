package models

import "time"

// ResourceType is the closed set of library categories.
type ResourceType string

const (
	ResourceTypePYQ        ResourceType = "PYQ"
	ResourceTypeNotes      ResourceType = "NOTES"
	ResourceTypeSyllabus   ResourceType = "SYLLABUS"
	ResourceTypeAssignment ResourceType = "ASSIGNMENT"
	ResourceTypeLabManual  ResourceType = "LAB_MANUAL"
)

// ResourceTypes lists every ResourceType in display order.
var ResourceTypes = []ResourceType{
	ResourceTypePYQ,
	ResourceTypeNotes,
	ResourceTypeSyllabus,
	ResourceTypeAssignment,
	ResourceTypeLabManual,
}

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	for _, known := range ResourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Resource is a single uploaded file positioned at (college, type, department, batch).
type Resource struct {
	ID           string       `db:"id" json:"id"`
	CollegeID    string       `db:"college_id" json:"college_id"`
	ResourceType ResourceType `db:"resource_type" json:"resource_type"`
	Department   string       `db:"department" json:"department"`
	Batch        string       `db:"batch" json:"batch"`
	FileName     string       `db:"file_name" json:"file_name"`
	FileURL      string       `db:"file_url" json:"file_url"`
	Description  *string      `db:"description" json:"description,omitempty"`
	UploadedBy   string       `db:"uploaded_by" json:"uploaded_by"`
	UploadDate   time.Time    `db:"upload_date" json:"upload_date"`
}
