package router

import (
	"context"
	"fmt"
)

// Lookup command kinds recognized in model output
const (
	KindSearch = "search"
	KindMemory = "memory"
	KindQuery  = "query"
)

// LookupProvider executes lookup commands. A real provider would hit the
// web, a memory store or a database; none ships with this module.
type LookupProvider interface {
	SearchInternet(ctx context.Context, query string) (string, error)
	SearchMemory(ctx context.Context, query string) (string, error)
	QueryDatabase(ctx context.Context, query string) (string, error)
}

// Placeholders answers every lookup with a visible annotation instead of a result
type Placeholders struct{}

// SearchInternet implements LookupProvider
func (Placeholders) SearchInternet(_ context.Context, query string) (string, error) {
	return placeholder(KindSearch, query), nil
}

// SearchMemory implements LookupProvider
func (Placeholders) SearchMemory(_ context.Context, query string) (string, error) {
	return placeholder(KindMemory, query), nil
}

// QueryDatabase implements LookupProvider
func (Placeholders) QueryDatabase(_ context.Context, query string) (string, error) {
	return placeholder(KindQuery, query), nil
}

func placeholder(kind, query string) string {
	switch kind {
	case KindSearch:
		return fmt.Sprintf("[Searching internet for: %s]", query)
	case KindMemory:
		return fmt.Sprintf("[Searching memory for: %s]", query)
	case KindQuery:
		return fmt.Sprintf("[Querying database for: %s]", query)
	}
	return ""
}
