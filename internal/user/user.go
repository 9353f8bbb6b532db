package user

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleEmployee   Role = "employee"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// User is an employee record. AdvanceBalance is the running cash-advance
// scalar maintained by the ledger; BalanceVersion is the optimistic
// concurrency token guarding its read-modify-write.
type User struct {
	ID             int64           `json:"id" gorm:"primaryKey"`
	Email          string          `json:"email" gorm:"uniqueIndex;not null"`
	Name           string          `json:"name" gorm:"not null"`
	PasswordHash   string          `json:"-" gorm:"column:password_hash;not null"`
	Role           Role            `json:"role" gorm:"not null;default:employee"`
	ReportsTo      *int64          `json:"reports_to,omitempty" gorm:"column:reports_to"`
	AdvanceBalance decimal.Decimal `json:"advance_balance" gorm:"column:advance_balance;type:numeric(14,2);not null"`
	BalanceVersion int64           `json:"-" gorm:"column:balance_version;not null"`
	IsActive       bool            `json:"is_active" gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

// Scope describes which records an actor may see. Repositories translate it
// into a WHERE clause: employees see their own rows, admins additionally see
// rows of users who report to them, superadmins see everything.
type Scope struct {
	ActorID int64
	Role    Role
}

func ScopeFor(u *User) Scope {
	return Scope{ActorID: u.ID, Role: u.Role}
}

func (s Scope) Unrestricted() bool {
	return s.Role == RoleSuperAdmin
}

type RepositoryAPI interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, scope Scope, limit, offset int) ([]*User, error)
}
