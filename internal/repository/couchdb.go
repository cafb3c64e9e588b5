package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kivik/kivik/v4"
)

const (
	docTypeWorkspace = "workspace"
	docTypeTodo      = "todo"

	designDoc = "taskspace"
)

// timeLayout keeps a fixed fraction width so stored timestamps sort
// lexicographically in the same order as chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ListOptions pages through list results. A zero Limit means the
// repository default.
type ListOptions struct {
	Limit int
	Skip  int
}

// EnsureDatabase creates dbName on the server when it does not exist yet.
func EnsureDatabase(ctx context.Context, client *kivik.Client, dbName string) (bool, error) {
	exists, err := client.DBExists(ctx, dbName)
	if err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	if exists {
		return false, nil
	}

	if err := client.CreateDB(ctx, dbName); err != nil {
		return false, fmt.Errorf("failed to create database: %w", err)
	}

	return true, nil
}

// EnsureIndexes creates the Mango indexes backing the newest-first listings.
// CouchDB treats index creation as idempotent.
func EnsureIndexes(ctx context.Context, db *kivik.DB) error {
	indexes := map[string][]string{
		"workspaces-by-owner":      {"doc_type", "user_id", "created_at"},
		"todos-by-owner-workspace": {"doc_type", "user_id", "workspace_id", "created_at"},
	}

	for name, fields := range indexes {
		index := map[string]interface{}{"fields": fields}
		if err := db.CreateIndex(ctx, designDoc, name, index); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return nil
}

// descendingSort builds a Mango sort over every field of an index, since
// CouchDB only serves a sort from an index when all fields share a direction.
func descendingSort(fields ...string) []map[string]string {
	sort := make([]map[string]string, len(fields))
	for i, f := range fields {
		sort[i] = map[string]string{f: "desc"}
	}
	return sort
}

func applyListOptions(query map[string]interface{}, opts ListOptions, defaultLimit int) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query["limit"] = limit
	if opts.Skip > 0 {
		query["skip"] = opts.Skip
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func statusOf(err error) int {
	return kivik.HTTPStatus(err)
}
