package docstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-service/internal/changefeed"
)

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		wantSQL  []string
		wantArgs int
	}{
		{
			name:     "collection scan",
			query:    Collection("users"),
			wantSQL:  []string{"collection = $1", "ORDER BY id"},
			wantArgs: 1,
		},
		{
			name:     "equality filter",
			query:    Collection("issues").Where("userId", "u1"),
			wantSQL:  []string{"data @> $2::jsonb"},
			wantArgs: 2,
		},
		{
			name:     "ordered desc",
			query:    Collection("issues").Order("createdAt", Desc),
			wantSQL:  []string{"data ? $2", `(data->>$2) COLLATE "C" DESC`},
			wantArgs: 2,
		},
		{
			name:     "filter and order",
			query:    Collection("notifications").Where("userId", "u1").Order("createdAt", Desc),
			wantSQL:  []string{"data @> $2::jsonb", "data ? $3"},
			wantArgs: 3,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sql, args, err := buildListQuery(tc.query)
			if err != nil {
				t.Fatalf("buildListQuery: %v", err)
			}
			for _, want := range tc.wantSQL {
				if !strings.Contains(sql, want) {
					t.Errorf("sql %q missing %q", sql, want)
				}
			}
			if len(args) != tc.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tc.wantArgs)
			}
		})
	}
}

func TestApplyUpdates(t *testing.T) {
	data := map[string]any{"comments": []any{map[string]any{"text": "a"}}}
	applyUpdates(data, []Update{
		{Path: "status", Value: "Resolved"},
		{Path: "comments", Value: ArrayUnion(map[string]any{"text": "b"}, map[string]any{"text": "a"})},
	})
	if data["status"] != "Resolved" {
		t.Errorf("status = %v", data["status"])
	}
	if got := len(data["comments"].([]any)); got != 2 {
		t.Errorf("comments = %d, want 2", got)
	}
}

// TestPostgresStore runs against a real database when ISSUES_TEST_POSTGRES_DSN
// points at one with the documents table migrated.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("ISSUES_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ISSUES_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	collection := "test_" + strings.ReplaceAll(t.Name(), "/", "_") + "_" + time.Now().Format("150405.000")
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM documents WHERE collection = $1`, collection)
	})

	store := NewPostgresStore(pool, changefeed.NewLocalFeed(), nil)

	if _, err := store.Get(ctx, collection, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
	if err := store.Update(ctx, collection, "missing", []Update{{Path: "a", Value: 1}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing: %v", err)
	}

	snaps := make(chan []Document, 10)
	unsub := store.Watch(ctx, Collection(collection).Order("createdAt", Desc), func(d []Document) { snaps <- d }, nil)
	defer unsub()
	waitSnapshot(t, snaps)

	id, err := store.Add(ctx, collection, map[string]any{"createdAt": "2025-01-01T00:00:00.000Z"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := waitSnapshot(t, snaps); len(got) != 1 || got[0].ID != id {
		t.Fatalf("snapshot = %v", got)
	}

	if err := store.Set(ctx, collection, id, map[string]any{"status": "Open"}, true); err != nil {
		t.Fatalf("Set merge: %v", err)
	}
	doc, err := store.Get(ctx, collection, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Data["status"] != "Open" || doc.Data["createdAt"] == nil {
		t.Errorf("merged = %v", doc.Data)
	}
}
