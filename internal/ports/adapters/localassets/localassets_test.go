package localassets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/roughcut/internal/types"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"city-night.jpg",
		"stock/city_night_traffic.png",
		"city-night-drone.mp4",
		"notes.txt",
	)
	a := New(dir)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		kind  string
		want  string
	}{
		{"best overlap wins", "night city traffic", types.AssetKindImage, "city_night_traffic.png"},
		{"kind filter", "city night", types.AssetKindVideo, "city-night-drone.mp4"},
		{"first of equal scores", "city", types.AssetKindImage, "city-night.jpg"},
		{"no match", "ocean waves", types.AssetKindImage, ""},
		{"short words ignored", "a of", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Search(ctx, tt.query, tt.kind)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if tt.want == "" {
				if got != nil {
					t.Fatalf("expected no match, got %+v", got)
				}
				return
			}
			if got == nil || !strings.HasPrefix(got.URL, "file://") || !strings.HasSuffix(got.URL, tt.want) {
				t.Fatalf("Search(%q) = %+v, want %s", tt.query, got, tt.want)
			}
		})
	}
}

func TestSearch_MissingDir(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "missing"))
	if _, err := a.Search(context.Background(), "city", ""); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
