package auth

import "time"

// Partition names one of the three disjoint principal namespaces. An email may
// exist once per partition; the partitions share no identity space.
type Partition string

const (
	PartitionClient   Partition = "client"
	PartitionProvider Partition = "provider"
	PartitionAdmin    Partition = "admin"
)

// AdminTier is the privilege level carried by an admin account.
type AdminTier string

const (
	TierSuperAdmin AdminTier = "super-admin"
	TierAdmin      AdminTier = "admin"
	TierModerator  AdminTier = "moderator"
)

// Account holds the credential fields shared by every principal kind. It
// mirrors the common columns of the three principal tables and carries no JSON
// annotations so it can be reused by different presentation layers.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	Active       bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Client is a booking principal.
type Client struct {
	Account
	DateOfBirth *time.Time
	Gender      *string
}

// AvailabilityWindow is one entry of a provider's declared weekly template.
// The template is informational only; slot derivation uses the business-hours
// grid (see the appointment package).
type AvailabilityWindow struct {
	Weekday string `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Enabled bool   `json:"enabled"`
}

// Education is one entry of a provider's credentials list.
type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        int    `json:"year"`
}

// Provider is a session-offering principal. Rating and TotalSessions are
// derived fields owned by the appointment package and are never written
// directly by callers.
type Provider struct {
	Account
	LicenseNumber   string
	Specializations []string
	Education       []Education
	ExperienceYears int
	Bio             string
	HourlyRate      float64
	Languages       []string
	Availability    []AvailabilityWindow
	Verified        bool
	Rating          float64
	TotalSessions   int
}

// Admin is an administrative principal.
type Admin struct {
	Account
	Tier        AdminTier
	Permissions []string
}

// Principal is the tagged union resolved from a verified token: exactly one of
// the three arms is non-nil, matching Partition. Dispatch on Partition, never
// on the pointer fields directly.
type Principal struct {
	Partition Partition
	Client    *Client
	Provider  *Provider
	Admin     *Admin
}

// Acct returns the shared account fields of whichever arm is set, or nil for
// the zero Principal.
func (p Principal) Acct() *Account {
	switch p.Partition {
	case PartitionClient:
		if p.Client != nil {
			return &p.Client.Account
		}
	case PartitionProvider:
		if p.Provider != nil {
			return &p.Provider.Account
		}
	case PartitionAdmin:
		if p.Admin != nil {
			return &p.Admin.Account
		}
	}
	return nil
}

// ID returns the principal's opaque id, or "" for the zero Principal.
func (p Principal) ID() string {
	if a := p.Acct(); a != nil {
		return a.ID
	}
	return ""
}

func validPartition(p Partition) bool {
	switch p {
	case PartitionClient, PartitionProvider, PartitionAdmin:
		return true
	default:
		return false
	}
}

func validTier(t AdminTier) bool {
	switch t {
	case TierSuperAdmin, TierAdmin, TierModerator:
		return true
	default:
		return false
	}
}
