package dto

import "time"

type KioskResponse struct {
	ID         string                 `json:"id"`
	BrandID    string                 `json:"brandId"`
	OrgID      string                 `json:"orgId,omitempty"`
	Status     string                 `json:"status"`
	LastSeen   time.Time              `json:"lastSeen"`
	Specs      map[string]interface{} `json:"specs,omitempty"`
	AppVersion string                 `json:"appVersion,omitempty"`
	Location   string                 `json:"location,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type SetURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

type SetURLResponse struct {
	OK        bool   `json:"ok"`
	Outcome   string `json:"outcome"`
	CommandID string `json:"commandId"`
}
