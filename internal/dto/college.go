package dto

// ApproveCollegeRequest registers an institution and its email domain.
type ApproveCollegeRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	EmailDomain string  `json:"emailDomain" validate:"required,fqdn"`
	LogoURL     *string `json:"logoUrl" validate:"omitempty,url"`
}

// AssignModeratorRequest promotes a user to moderator of a college.
type AssignModeratorRequest struct {
	CollegeID string `json:"collegeId" validate:"required,uuid"`
}
