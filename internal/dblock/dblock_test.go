package dblock

import (
	"testing"
	"time"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()
	l, err := Acquire(dir, 0)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireFailsWhenHeld(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir, 0)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer first.Release()

	if _, err := Acquire(dir, 0); err == nil {
		t.Fatalf("expected second Acquire to fail while first lock is held")
	}
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir, 0)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer first.Release()

	start := time.Now()
	if _, err := Acquire(dir, 50*time.Millisecond); err == nil {
		t.Fatalf("expected timed-out Acquire to fail while first lock is held")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected Acquire to retry for roughly the timeout window, took %v", elapsed)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir, 0)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := Acquire(dir, 0)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
