// Package identity carries the authenticated caller through a request.
package identity

import (
	"context"
	"slices"
)

type Role string

const (
	RoleUsuario  Role = "usuario"
	RoleOperador Role = "operador"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUsuario, RoleOperador, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

type Identity struct {
	UserID  string   `json:"user_id"`
	Role    Role     `json:"role"`
	Centros []string `json:"centros,omitempty"`
}

// System is the caller used by background workers and event consumers.
func System() *Identity {
	return &Identity{UserID: "system", Role: RoleSystem}
}

func (i *Identity) IsPrivileged() bool {
	return i != nil && (i.Role == RoleAdmin || i.Role == RoleSystem)
}

// CanOperate reports whether the caller may manage resources of centroID.
func (i *Identity) CanOperate(centroID string) bool {
	if i == nil {
		return false
	}
	if i.IsPrivileged() {
		return true
	}
	return i.Role == RoleOperador && slices.Contains(i.Centros, centroID)
}

// CanAccess reports whether the caller may read or change a resource owned by
// ownerID inside centroID.
func (i *Identity) CanAccess(ownerID, centroID string) bool {
	if i == nil {
		return false
	}
	return i.UserID == ownerID || i.CanOperate(centroID)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}
