package postgres

import (
	"github.com/waypoint-hq/field-expense/internal/user"
	"gorm.io/gorm"
)

// Scoped narrows a query to the rows an actor may see. ownerColumn is the
// column holding the owning user id ("id" on the users table itself,
// "user_id" elsewhere). Admins see their own rows plus those of users
// assigned to them via the reports_to edge; superadmins are unrestricted.
func Scoped(db *gorm.DB, scope user.Scope, ownerColumn string) *gorm.DB {
	switch scope.Role {
	case user.RoleSuperAdmin:
		return db
	case user.RoleAdmin:
		return db.Where(
			ownerColumn+" = ? OR "+ownerColumn+" IN (SELECT id FROM users WHERE reports_to = ?)",
			scope.ActorID, scope.ActorID,
		)
	default:
		return db.Where(ownerColumn+" = ?", scope.ActorID)
	}
}
