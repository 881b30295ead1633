package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	UserTypeEmployee  = "employee"
	UserTypeCandidate = "candidate"
	UserTypeVendor    = "vendor"
)

const (
	RoleCandidate = "candidate"
	RoleClient    = "client"
	RoleStaff     = "staff"
	RoleAdmin     = "admin"
)

// EmployeeRecord is the internal projection of a hired employee, keyed by email.
type EmployeeRecord struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone,omitempty"`
	Department    string          `json:"department"`
	Position      string          `json:"position"`
	Status        string          `json:"status"`
	JoinDate      time.Time       `json:"joinDate"`
	Salary        decimal.Decimal `json:"salary"`
	ApplicationID string          `json:"applicationId,omitempty"`
	JobID         string          `json:"jobId,omitempty"`
	HiredAt       *time.Time      `json:"hiredAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// EmployeeUpdate lists the fields merged into an existing record. Nil
// pointers leave the stored value untouched.
type EmployeeUpdate struct {
	ApplicationID string
	JobID         string
	HiredAt       *time.Time
	Department    *string
	Salary        *decimal.Decimal
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	UserType     string    `json:"userType"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the enrichment data held by the external profile store.
type Profile struct {
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	UserType   string   `json:"userType"`
	Location   string   `json:"location"`
	Skills     []string `json:"skills"`
	Experience string   `json:"experience"`
}
