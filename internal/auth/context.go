package auth

import "context"

type schoolIDKey struct{}
type roleKey struct{}
type subjectKey struct{}

// WithIdentity stores the authenticated caller's identity in context.
func WithIdentity(ctx context.Context, schoolID string, role Role, subject string) context.Context {
	ctx = context.WithValue(ctx, schoolIDKey{}, schoolID)
	ctx = context.WithValue(ctx, roleKey{}, role)
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SchoolIDFromContext extracts the caller's school id, or "" for
// unauthenticated contexts.
func SchoolIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	schoolID, _ := ctx.Value(schoolIDKey{}).(string)
	return schoolID
}

// RoleFromContext extracts the caller's role.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	role, _ := ctx.Value(roleKey{}).(Role)
	return role
}

// SubjectFromContext extracts the token subject.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	subject, _ := ctx.Value(subjectKey{}).(string)
	return subject
}
