package storage

import (
	"testing"
	"time"
)

func TestBuildReceiptPath(t *testing.T) {
	key, err := BuildReceiptPath(42, "0b7f6f0e-8d0a-4bb4-9a4e-3f2c1d5e6a7b", "Taxi Receipt.PDF")
	if err != nil {
		t.Fatalf("BuildReceiptPath() error = %v", err)
	}
	want := "receipts/42/0b7f6f0e-8d0a-4bb4-9a4e-3f2c1d5e6a7b.pdf"
	if key != want {
		t.Fatalf("BuildReceiptPath() = %q, want %q", key, want)
	}
}

func TestBuildReceiptPathDropsOddExtensions(t *testing.T) {
	key, err := BuildReceiptPath(7, "abc", "scan.tar.gz/../../etc")
	if err != nil {
		t.Fatalf("BuildReceiptPath() error = %v", err)
	}
	if key != "receipts/7/abc" {
		t.Fatalf("BuildReceiptPath() = %q", key)
	}
}

func TestBuildExportPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 23, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildExportPath("/exports/expenses/", ts, "run-1")
	if err != nil {
		t.Fatalf("BuildExportPath() error = %v", err)
	}
	want := "exports/expenses/date=2026-02-20/expenses-1771560300-run-1.parquet"
	if key != want {
		t.Fatalf("BuildExportPath() = %q, want %q", key, want)
	}
}

func TestBuildPathRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildReceiptPath(1, "../oops", "a.png"); err == nil {
		t.Fatal("expected invalid object id error")
	}
	if _, err := BuildReceiptPath(0, "abc", "a.png"); err == nil {
		t.Fatal("expected invalid expense id error")
	}
	if _, err := BuildExportPath("exports/../x", time.Now(), "run"); err == nil {
		t.Fatal("expected invalid prefix error")
	}
}
