package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/doeshing/chatwork/internal/domain"
)

func TestFileStoreSaveAndRecords(t *testing.T) {
	store := NewFileStoreAt(filepath.Join(t.TempDir(), "transcripts.jsonl"))

	records := []domain.TranscriptRecord{
		{Timestamp: time.Now(), SessionKey: "feishu_c1", Role: domain.RoleUser, Content: "hello"},
		{Timestamp: time.Now(), SessionKey: "feishu_c1", Role: domain.RoleAssistant, Content: "hi there"},
		{Timestamp: time.Now(), SessionKey: "feishu_c2", Role: domain.RoleUser, Content: "unrelated"},
	}
	for _, rec := range records {
		if err := store.Save(rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := store.Records(0, "")
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	// Newest first.
	if got[0].Content != "unrelated" {
		t.Fatalf("first record = %q", got[0].Content)
	}
}

func TestFileStoreSearchAndLimit(t *testing.T) {
	store := NewFileStoreAt(filepath.Join(t.TempDir(), "transcripts.jsonl"))
	for _, content := range []string{"alpha one", "beta two", "alpha three"} {
		if err := store.Save(domain.TranscriptRecord{SessionKey: "s", Role: domain.RoleUser, Content: content}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Records(0, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}

	got, err = store.Records(1, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "alpha three" {
		t.Fatalf("limit result = %+v", got)
	}
}

func TestFileStoreClear(t *testing.T) {
	store := NewFileStoreAt(filepath.Join(t.TempDir(), "transcripts.jsonl"))
	if err := store.Save(domain.TranscriptRecord{Content: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatal(err)
	}
	got, err := store.Records(0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records after clear, got %d", len(got))
	}
}
