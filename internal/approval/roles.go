package approval

import "github.com/procure2pay/server/internal/domain/entity"

// levelRoles maps each approval level to the role allowed to decide it.
// Expressed as a table so permission checks stay declarative.
var levelRoles = map[int]string{
	1: entity.RoleApproverL1,
	2: entity.RoleApproverL2,
}

// RequiredRole returns the approver role for the given level, or "" for an
// unknown level.
func RequiredRole(level int) string {
	return levelRoles[level]
}
