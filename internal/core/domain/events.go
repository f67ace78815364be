package domain

import "time"

// LicenseMaterializedEvent is emitted when a remote purchase becomes a local license.
type LicenseMaterializedEvent struct {
	EventID     string
	LicenseID   int64
	LicenseKey  string
	ProductID   int64
	UserID      *int64
	LicenseType LicenseType
	CreatedAt   time.Time
	Metadata    map[string]any
}

// DomainActivatedEvent is emitted after an activation commits.
type DomainActivatedEvent struct {
	EventID         string
	LicenseID       int64
	Domain          string
	Reactivated     bool
	ActivationCount int64
	ActivatedAt     time.Time
}

// DomainDeactivatedEvent is emitted when a domain binding is switched off.
type DomainDeactivatedEvent struct {
	EventID       string
	LicenseID     int64
	Domain        string
	Reason        string
	DeactivatedAt time.Time
}

// LicenseStatusChangedEvent is emitted after a lifecycle transition commits.
type LicenseStatusChangedEvent struct {
	EventID   string
	LicenseID int64
	From      LicenseStatus
	To        LicenseStatus
	Actor     string
	Reason    string
	ChangedAt time.Time
}

// VerificationFailedEvent is emitted for failed or erroring verification attempts.
type VerificationFailedEvent struct {
	EventID   string
	CodeHash  string
	Domain    string
	IPAddress string
	Status    VerificationStatus
	Message   string
	At        time.Time
}

// BillingCommand is an inbound instruction from the payment collaborator.
type BillingCommand struct {
	EventID      string    `json:"event_id"`
	Type         string    `json:"type"`
	PurchaseCode string    `json:"purchase_code"`
	LicenseKey   string    `json:"license_key"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"occurred_at"`
}

const (
	BillingCommandRefunded   = "license.refunded"
	BillingCommandChargeback = "license.chargeback"
)
