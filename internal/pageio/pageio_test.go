package pageio

import (
	"path/filepath"
	"testing"
)

func TestCreateReadWritePage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	if err := CreateFile(path); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}

	n, err := NumPages(path)
	if err != nil {
		t.Fatalf("NumPages: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 page after create, got %d", n)
	}

	var p Page
	if err := WriteUint32(&p, 0, 1); err != nil {
		t.Fatalf("WriteUint32: %v", err)
	}
	if err := WriteUint32(&p, 4, 2); err != nil {
		t.Fatalf("WriteUint32: %v", err)
	}
	if err := WritePage(0, path, &p); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got, err := ReadPage(0, path)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	v0, _ := ReadUint32(got, 0)
	v1, _ := ReadUint32(got, 4)
	if v0 != 1 || v1 != 2 {
		t.Fatalf("got (%d, %d), want (1, 2)", v0, v1)
	}
}

func TestWritePageExtendsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	if err := CreateFile(path); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	var p Page
	if err := WritePage(5, path, &p); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	n, err := NumPages(path)
	if err != nil {
		t.Fatalf("NumPages: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected 6 pages, got %d", n)
	}
}

func TestBoundsChecked(t *testing.T) {
	var p Page
	if err := WriteUint32(&p, PageSize-2, 1); err == nil {
		t.Fatalf("expected bounds error writing past page end")
	}
	if _, err := ReadUint64(&p, PageSize-4); err == nil {
		t.Fatalf("expected bounds error reading past page end")
	}
}

func TestStringRoundTrip(t *testing.T) {
	var p Page
	if err := WriteString(&p, 10, "hello", 20); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	got, err := ReadString(&p, 10, 20)
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestWriteStringTooLong(t *testing.T) {
	var p Page
	if err := WriteString(&p, 0, "too long for this field", 4); err == nil {
		t.Fatalf("expected error for oversized string")
	}
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	if err := CreateFile(path); err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	c := NewCache(4)
	var p Page
	_ = WriteUint32(&p, 0, 42)
	if err := WritePageCached(c, 0, path, &p); err != nil {
		t.Fatalf("WritePageCached: %v", err)
	}
	got, err := ReadPageCached(c, 0, path)
	if err != nil {
		t.Fatalf("ReadPageCached: %v", err)
	}
	v, _ := ReadUint32(got, 0)
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
	c.Invalidate(path, 0)
	if _, ok := c.Get(path, 0); ok {
		t.Fatalf("expected cache miss after invalidate")
	}
}
