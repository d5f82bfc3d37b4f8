// Package recordstore is the clinic's only database contract: a string-keyed
// map of JSON values. Each key holds one logical table. Backends live under
// internal/adapters/storage.
package recordstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrMalformed marks a persisted value that could not be decoded.
	// Readers treat it as "absent".
	ErrMalformed = errors.New("recordstore: malformed value")
	ErrEmptyKey  = errors.New("recordstore: empty key")
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Persisted keys. They are a schema: never rename them.
const (
	KeyPatients     = "patients"
	KeyAppointments = "appointments"
	KeyInvoices     = "invoices"
	KeyProfile      = "professional_profile"
	KeyLoggedIn     = "isLoggedIn"

	PrefixDocuments = "patient_docs_"
	PrefixBudgets   = "patient_budgets_"
)

func DocumentsKey(patientID string) string { return PrefixDocuments + patientID }
func BudgetsKey(patientID string) string   { return PrefixBudgets + patientID }

// ScopeOf returns the patient id embedded in a scoped key.
func ScopeOf(prefix, key string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	scope := strings.TrimPrefix(key, prefix)
	return scope, scope != ""
}

// Family groups keys for metrics: scoped keys collapse to their prefix.
func Family(key string) string {
	for _, p := range []string{PrefixDocuments, PrefixBudgets} {
		if strings.HasPrefix(key, p) {
			return strings.TrimSuffix(p, "_")
		}
	}
	return key
}

type ctxKey string

const sourceKey ctxKey = "recordstore_source"

// WithSource tags writes made with ctx so change notifications can tell
// who wrote a key.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

func SourceFrom(ctx context.Context) string {
	if v, ok := ctx.Value(sourceKey).(string); ok {
		return v
	}
	return ""
}
