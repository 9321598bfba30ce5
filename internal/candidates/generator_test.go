package candidates

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestFromRanges_DeterministicSortedUnique(t *testing.T) {
	first, err := FromRanges()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := FromRanges()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(first) == 0 {
		t.Fatal("expected a non-empty candidate set")
	}
	if len(first) != len(second) {
		t.Fatalf("expected deterministic size, got %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected deterministic order, diverged at index %d: %s vs %s", i, first[i], second[i])
		}
	}

	if !sort.StringsAreSorted(first) {
		t.Error("expected candidates to be sorted")
	}
	for i := 1; i < len(first); i++ {
		if first[i] == first[i-1] {
			t.Fatalf("duplicate candidate %s", first[i])
		}
	}
}

func TestFromRanges_IncludesSpecialZips(t *testing.T) {
	zips, err := FromRanges()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	set := make(map[string]struct{}, len(zips))
	for _, z := range zips {
		set[z] = struct{}{}
	}

	for _, want := range []string{"00501", "00601", "99950", "10001", "90210"} {
		if _, ok := set[want]; !ok {
			t.Errorf("expected candidate set to include %s", want)
		}
	}
	if _, ok := set["00000"]; ok {
		t.Error("expected 00000 to be excluded from the synthesized set")
	}
}

func TestFromFile_LoadsAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zips.txt")
	content := "10001\n90210\n10001\n\n00501\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	zips, err := FromFile(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := []string{"00501", "10001", "90210"}
	if len(zips) != len(expected) {
		t.Fatalf("expected %d zips, got %d: %v", len(expected), len(zips), zips)
	}
	for i, want := range expected {
		if zips[i] != want {
			t.Errorf("index %d: expected %s, got %s", i, want, zips[i])
		}
	}
}

func TestFromFile_RejectsBadFormat(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"too short", "1234\n"},
		{"too long", "123456\n"},
		{"letters", "9021A\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "zips.txt")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write fixture: %v", err)
			}
			if _, err := FromFile(path); err == nil {
				t.Fatal("expected error for malformed zip, got nil")
			}
		})
	}
}

func TestFromFile_EmptyIsLoudError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zips.txt")
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	_, err := FromFile(path)
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestFromFile_MissingFile(t *testing.T) {
	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestFilter(t *testing.T) {
	keys := []string{"00501", "10001", "30301", "90210", "99950"}

	tests := []struct {
		name     string
		start    string
		end      string
		expected []string
	}{
		{"unbounded", "", "", keys},
		{"start only", "30000", "", []string{"30301", "90210", "99950"}},
		{"end only", "", "30000", []string{"00501", "10001"}},
		{"both", "10001", "90210", []string{"10001", "30301", "90210"}},
		{"empty result", "99999", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(keys, tt.start, tt.end)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Fatalf("expected %v, got %v", tt.expected, got)
				}
			}
		})
	}
}
