package dto

import (
	"time"

	"github.com/noah-isme/collegehub-api/internal/models"
)

// UploadResourceRequest is the metadata accepted for a new resource.
type UploadResourceRequest struct {
	ResourceType models.ResourceType `json:"resourceType" validate:"required,oneof=PYQ NOTES SYLLABUS ASSIGNMENT LAB_MANUAL"`
	Department   string              `json:"department" validate:"required,max=120"`
	Batch        string              `json:"batch" validate:"required,max=40"`
	FileName     string              `json:"fileName" validate:"required,max=255"`
	FileURL      string              `json:"fileUrl" validate:"required,url"`
	Description  *string             `json:"description" validate:"omitempty,max=1000"`
}

// FileView is the full view of a resource the caller may open. The stored file location is only
// handed out by exchanging DownloadToken.
type FileView struct {
	ID            string              `json:"id"`
	CollegeID     string              `json:"collegeId"`
	ResourceType  models.ResourceType `json:"resourceType"`
	Department    string              `json:"department"`
	Batch         string              `json:"batch"`
	FileName      string              `json:"fileName"`
	Description   *string             `json:"description,omitempty"`
	UploadedBy    string              `json:"uploadedBy"`
	UploadDate    time.Time           `json:"uploadDate"`
	AccessType    models.AccessType   `json:"accessType"`
	DownloadToken string              `json:"downloadToken"`
	TokenExpires  time.Time           `json:"downloadTokenExpiresAt"`
}
