package dto

import "time"

// HierarchyTree is College → ResourceType → Department → Batch → File.
type HierarchyTree struct {
	College       HierarchyCollege        `json:"college"`
	ResourceTypes []HierarchyResourceType `json:"resourceTypes"`
}

// HierarchyCollege summarises the browsed college.
type HierarchyCollege struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	LogoURL *string `json:"logoUrl,omitempty"`
}

// HierarchyResourceType groups departments under one resource type.
type HierarchyResourceType struct {
	Name        string                `json:"name"`
	Departments []HierarchyDepartment `json:"departments"`
}

// HierarchyDepartment groups batches.
type HierarchyDepartment struct {
	Name    string           `json:"name"`
	Batches []HierarchyBatch `json:"batches"`
}

// HierarchyBatch holds the leaf files.
type HierarchyBatch struct {
	Name  string          `json:"name"`
	Files []HierarchyFile `json:"files"`
}

// HierarchyFile is a leaf; locked files still expose their metadata as a preview.
type HierarchyFile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	UploadedBy  string    `json:"uploadedBy"`
	Batch       string    `json:"batch"`
	Description *string   `json:"description,omitempty"`
	UploadDate  time.Time `json:"uploadDate"`
	IsLocked    bool      `json:"isLocked"`
	IsUnlocked  bool      `json:"isUnlocked"`
}
