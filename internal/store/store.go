package store

import (
	"context"
	"errors"
	"strconv"
)

var ErrNotFound = errors.New("report not found")

// DefaultListLimit caps ListReports when no positive limit is given.
const DefaultListLimit = 20

// Store persists rehearsal reports so authors can compare runs over time.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	SaveReport(ctx context.Context, r *StoredReport) error
	GetReport(ctx context.Context, id string) (*StoredReport, error)
	ListReports(ctx context.Context, storyworld string, limit int) ([]ReportSummary, error)
	PruneReports(ctx context.Context, storyworld string, keep int) (int64, error)

	// RunSQL runs a read-only query. params are positional, keyed "1".."n".
	RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// PositionalArgs orders params keyed "1".."n" into query arguments. Keys
// outside that range are ignored.
func PositionalArgs(params map[string]any) []any {
	args := make([]any, 0, len(params))
	for i := 1; i <= len(params); i++ {
		if val, ok := params[strconv.Itoa(i)]; ok {
			args = append(args, val)
		}
	}
	return args
}
