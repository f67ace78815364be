package domain

import (
	"fmt"
	"strings"
	"time"
)

// LicenseType enumerates the commercial variants a license can be sold as.
type LicenseType string

const (
	LicenseTypeSingle    LicenseType = "single"
	LicenseTypeMulti     LicenseType = "multi"
	LicenseTypeDeveloper LicenseType = "developer"
	LicenseTypeExtended  LicenseType = "extended"
	LicenseTypeRegular   LicenseType = "regular"
)

// LicenseTypes lists every supported license type.
var LicenseTypes = []LicenseType{
	LicenseTypeSingle,
	LicenseTypeMulti,
	LicenseTypeDeveloper,
	LicenseTypeExtended,
	LicenseTypeRegular,
}

// ParseLicenseType normalises textual input into a supported license type.
func ParseLicenseType(value string) (LicenseType, error) {
	candidate := LicenseType(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range LicenseTypes {
		if t == candidate {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown license type %q", value)
}

// LicenseStatus is the lifecycle state of a license record.
type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusInactive  LicenseStatus = "inactive"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusExpired   LicenseStatus = "expired"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseStatusActive, LicenseStatusInactive, LicenseStatusSuspended, LicenseStatusExpired:
		return true
	default:
		return false
	}
}

// License represents one granted right to use a product.
type License struct {
	ID                  int64
	PurchaseCode        string
	LicenseKey          string
	UserID              *int64
	ProductID           int64
	Type                LicenseType
	Status              LicenseStatus
	MaxDomains          int
	LicenseExpiresAt    *time.Time
	SupportExpiresAt    *time.Time
	ActivationCount     int64
	LastActivatedAt     *time.Time
	Notes               string
	MarketplaceMetadata map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsExpired reports whether the license window has closed at the supplied moment.
// A nil expiry is perpetual.
func (l License) IsExpired(at time.Time) bool {
	if l.LicenseExpiresAt == nil {
		return false
	}
	return !l.LicenseExpiresAt.After(at)
}

// IsUsable reports whether the license is active and unexpired.
func (l License) IsUsable(at time.Time) bool {
	return l.Status == LicenseStatusActive && !l.IsExpired(at)
}

// CheckUsable returns the taxonomy error describing why the license cannot be used, if any.
func (l License) CheckUsable(at time.Time) error {
	if l.Status != LicenseStatusActive {
		if l.Status == LicenseStatusExpired {
			return ErrLicenseExpired
		}
		return ErrLicenseInactive
	}
	if l.IsExpired(at) {
		return ErrLicenseExpired
	}
	return nil
}

// LicenseStatusChange describes a requested lifecycle transition.
type LicenseStatusChange struct {
	LicenseID int64
	From      LicenseStatus
	To        LicenseStatus
	Actor     string
	Reason    string
	ChangedAt time.Time
}

// ActorAdmin identifies administrative callers allowed to reactivate licenses.
const ActorAdmin = "admin"

// CanTransition reports whether a license may move from one status to another for the given actor.
// Transitions move one way toward terminal states; only admins may reactivate.
func CanTransition(from, to LicenseStatus, actor string) bool {
	if from == to {
		return false
	}
	switch from {
	case LicenseStatusActive:
		return to == LicenseStatusInactive || to == LicenseStatusSuspended || to == LicenseStatusExpired
	case LicenseStatusInactive:
		switch to {
		case LicenseStatusActive, LicenseStatusSuspended, LicenseStatusExpired:
			return true
		}
		return false
	case LicenseStatusSuspended:
		if to == LicenseStatusActive {
			return actor == ActorAdmin
		}
		return to == LicenseStatusExpired
	case LicenseStatusExpired:
		return to == LicenseStatusActive && actor == ActorAdmin
	default:
		return false
	}
}

// LicenseView is the caller-facing projection of a license.
type LicenseView struct {
	LicenseKey           string        `json:"license_key"`
	ProductID            int64         `json:"product_id"`
	Type                 LicenseType   `json:"license_type"`
	Status               LicenseStatus `json:"status"`
	MaxDomains           int           `json:"max_domains"`
	ActivationCount      int64         `json:"activation_count"`
	LicenseExpiresAt     *time.Time    `json:"license_expires_at,omitempty"`
	SupportExpiresAt     *time.Time    `json:"support_expires_at,omitempty"`
	LicenseState         WindowStatus  `json:"license_state"`
	SupportState         WindowStatus  `json:"support_state"`
	DaysRemaining        *int          `json:"days_remaining,omitempty"`
	SupportDaysRemaining *int          `json:"support_days_remaining,omitempty"`
}

// NewLicenseView projects the license with lifecycle information computed at the supplied moment.
func NewLicenseView(l License, at time.Time) LicenseView {
	view := LicenseView{
		LicenseKey:       l.LicenseKey,
		ProductID:        l.ProductID,
		Type:             l.Type,
		Status:           l.Status,
		MaxDomains:       l.MaxDomains,
		ActivationCount:  l.ActivationCount,
		LicenseExpiresAt: l.LicenseExpiresAt,
		SupportExpiresAt: l.SupportExpiresAt,
		LicenseState:     LicenseWindowStatus(l.LicenseExpiresAt, at),
		SupportState:     SupportWindowStatus(l.SupportExpiresAt, at),
	}
	if l.LicenseExpiresAt != nil {
		days := RemainingDays(*l.LicenseExpiresAt, at)
		view.DaysRemaining = &days
	}
	if l.SupportExpiresAt != nil {
		days := SupportRemainingDays(*l.SupportExpiresAt, at)
		view.SupportDaysRemaining = &days
	}
	return view
}
