package storage

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	valid := map[string]string{
		"receipts/1/a.png":        "receipts/1/a.png",
		"//receipts//1/./a.png":   "receipts/1/a.png",
		" exports/x.parquet ":     "exports/x.parquet",
		"receipts/1/../2/b.png":   "receipts/2/b.png",
		"exports/date=2026-03-01": "exports/date=2026-03-01",
	}
	for in, want := range valid {
		got, err := CleanKey(in)
		if err != nil || got != want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	for _, in := range []string{"", "/", ".", "..", "../etc/passwd", "a/../../b"} {
		if _, err := CleanKey(in); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("CleanKey(%q) error = %v, want ErrInvalidKey", in, err)
		}
	}
}
