package store

import (
	"context"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAllocateAppendReadVoice(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	const id = 20240305140907123
	if err := s.Allocate(ctx, id, "102", 1000); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	offset := 0
	offset = s.Append(ctx, id, offset, []byte("hello "))
	offset = s.Append(ctx, id, offset, []byte("world"))
	if offset != len("hello world") {
		t.Fatalf("offset = %d, want %d", offset, len("hello world"))
	}

	if err := s.UpdateTime(ctx, id, offset); err != nil {
		t.Fatalf("UpdateTime: %v", err)
	}

	got, err := s.ReadVoice(ctx, id)
	if err != nil {
		t.Fatalf("ReadVoice: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("ReadVoice = %q, want %q", got, "hello world")
	}
}

func TestAppendTruncatesWritesPastCapacity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	const id = 20240305140907456
	const capacity = 10
	if err := s.Allocate(ctx, id, "102", capacity); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	offset := s.Append(ctx, id, 0, []byte("0123456789"))
	if offset != capacity {
		t.Fatalf("offset after in-bounds write = %d, want %d", offset, capacity)
	}

	// This write starts within capacity but would run 5 bytes past it;
	// it must be clamped rather than growing the blob.
	offset = s.Append(ctx, id, 5, []byte("abcdefghij"))
	if offset != capacity {
		t.Fatalf("offset after over-capacity write = %d, want clamped to %d", offset, capacity)
	}

	data, err := s.ReadVoice(ctx, id)
	if err != nil {
		t.Fatalf("ReadVoice: %v", err)
	}
	if len(data) != capacity {
		t.Fatalf("blob length = %d, want unchanged capacity %d", len(data), capacity)
	}
	if string(data) != "01234abcde" {
		t.Fatalf("blob content = %q, want %q", data, "01234abcde")
	}
}

func TestAppendOnMissingRowIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	offset := s.Append(ctx, 999, 5, []byte("x"))
	if offset != 5 {
		t.Fatalf("Append on missing row = %d, want unchanged offset 5", offset)
	}
}

func TestListResolvesContactName(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Allocate(ctx, 20240305140907001, "102", DefaultCapacity); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := s.Allocate(ctx, 20240305140907002, "103", DefaultCapacity); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := s.UpsertContact(ctx, "102", "Jane Doe"); err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	// Most recent (highest id) first.
	if entries[0].ID != 20240305140907002 || entries[0].ContactName != "" {
		t.Errorf("entries[0] = %+v, want id=20240305140907002 with no contact name", entries[0])
	}
	if entries[1].ID != 20240305140907001 || entries[1].ContactName != "Jane Doe" {
		t.Errorf("entries[1] = %+v, want id=20240305140907001 with contact name Jane Doe", entries[1])
	}
}

func TestDeleteAndNullBlob(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	const id = 20240305140907001
	if err := s.Allocate(ctx, id, "102", DefaultCapacity); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if err := s.NullBlob(ctx, id); err != nil {
		t.Fatalf("NullBlob: %v", err)
	}
	data, err := s.ReadVoice(ctx, id)
	if err != nil {
		t.Fatalf("ReadVoice: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("ReadVoice after NullBlob = %q, want empty", data)
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.ReadVoice(ctx, id); err != ErrNotFound {
		t.Errorf("ReadVoice after Delete = %v, want ErrNotFound", err)
	}
}

func TestDeleteMissingRowReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Delete(ctx, 42); err != ErrNotFound {
		t.Errorf("Delete on missing row = %v, want ErrNotFound", err)
	}
}

func TestUpsertAndDeleteContact(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Allocate(ctx, 20240305140907001, "102", DefaultCapacity); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := s.UpsertContact(ctx, "102", "Jane"); err != nil {
		t.Fatalf("UpsertContact: %v", err)
	}
	if err := s.UpsertContact(ctx, "102", "Jane Doe"); err != nil {
		t.Fatalf("UpsertContact (update): %v", err)
	}

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries[0].ContactName != "Jane Doe" {
		t.Fatalf("ContactName = %q, want %q", entries[0].ContactName, "Jane Doe")
	}

	if err := s.DeleteContact(ctx, "102"); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	entries, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries[0].ContactName != "" {
		t.Fatalf("ContactName after delete = %q, want empty", entries[0].ContactName)
	}
}
