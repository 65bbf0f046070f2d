package models

import "time"

// DocumentInfo is a lightweight description of a script or notebook on disk.
type DocumentInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
