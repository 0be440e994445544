package store

import (
	"time"
)

const (
	KioskStatusOnline  = "online"
	KioskStatusOffline = "offline"
)

// Tenant is a brand: an organizationally distinct customer scope with its own
// socket namespace.
type Tenant struct {
	ID        string
	Name      string
	OrgID     string
	Namespace string
	CreatedAt time.Time
}

type Kiosk struct {
	ID             string
	BrandID        string
	OrgID          string
	Status         string
	LastSeen       time.Time
	Specs          map[string]interface{}
	AppVersion     string
	Location       string
	Metadata       map[string]interface{}
	LastScreenshot string
	CreatedAt      time.Time
}

// UpsertKioskParams carries a partial kiosk update. Nil pointer fields and an
// empty Status are left untouched in the stored record; last_seen is always
// written.
type UpsertKioskParams struct {
	ID             string
	BrandID        string
	Status         string
	LastSeen       time.Time
	OrgID          *string
	Specs          map[string]interface{}
	AppVersion     *string
	Location       *string
	Metadata       map[string]interface{}
	LastScreenshot *string
}
