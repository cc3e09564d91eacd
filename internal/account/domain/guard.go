package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account_not_found")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrRoleMismatch    = errors.New("account_role_mismatch")
	ErrRoleNotAccepted = errors.New("account_role_not_accepted")
)

// EnsureActiveRole checks that the account exists, holds role and has accepted it.
func EnsureActiveRole(account *Account, role Role) error {
	if account == nil {
		return ErrAccountNotFound
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	if account.Role != role {
		return ErrRoleMismatch
	}
	if !account.RoleAccepted {
		return ErrRoleNotAccepted
	}
	return nil
}
