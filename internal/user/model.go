package user

import (
	"time"

	"github.com/gofrs/uuid"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Tier classifies a customer for the pending-order expiration policy:
// only member orders expire, reseller orders are left alone.
type Tier string

const (
	TierMember   Tier = "member"
	TierReseller Tier = "reseller"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `json:"role"`
	Tier         Tier      `json:"tier"`
	// PriceCategoryID is the customer's pricing classification sourced from
	// the external accounting system. Nil for uncategorized customers.
	PriceCategoryID *string   `json:"price_category_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
