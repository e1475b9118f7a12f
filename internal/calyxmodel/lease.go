package calyxmodel

import "time"

// CosignerRole is either a human or an agent. A lease is usable only when
// it carries at least one of each.
type CosignerRole string

const (
	RoleHuman CosignerRole = "human"
	RoleAgent CosignerRole = "agent"
)

// Cosignature is an attestation attached to a lease.
type Cosignature struct {
	Role      CosignerRole `json:"role"`
	ID        string       `json:"id"`
	Sig       string       `json:"sig"`
	Timestamp time.Time    `json:"timestamp"`
}

// LeaseLimits bounds what the lease authorizes.
type LeaseLimits struct {
	WallclockTimeoutS int `json:"wallclock_timeout_s"`
}

// LeaseStatus tracks a lease's own lifecycle (separate from "usable").
type LeaseStatus string

const (
	LeasePending LeaseStatus = "pending"
	LeaseRevoked LeaseStatus = "revoked"
)

// Lease is a time-bounded, two-key authorization token for a privileged
// action. The lease directory is write-once-per-key: IssueLease creates
// the file, and AddCosignature appends — never rewrites — a cosigner.
type Lease struct {
	LeaseID     string        `json:"lease_id"`
	IntentID    string        `json:"intent_id"`
	Actor       string        `json:"actor"`
	IssuedAt    time.Time     `json:"issued_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Limits      LeaseLimits   `json:"limits"`
	Cosigners   []Cosignature `json:"cosigners"`
	Status      LeaseStatus   `json:"status"`
}

// HasRole reports whether l carries at least one cosignature with role.
func (l Lease) HasRole(role CosignerRole) bool {
	for _, c := range l.Cosigners {
		if c.Role == role {
			return true
		}
	}
	return false
}
