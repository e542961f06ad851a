package persistence

import (
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames: %v", err)
	}
	if len(names) == 0 || names[0] != "001_documents.sql" {
		t.Fatalf("names = %v", names)
	}
	content, err := migrationFiles.ReadFile("migrations/" + names[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(content), "PRIMARY KEY (collection, id)") {
		t.Error("documents table migration missing primary key")
	}
}
