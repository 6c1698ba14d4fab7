package media

import (
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	dir, _ := ForDir(ModeStatic, "public")
	web, _ := ForURL(ModeStatic, "/static/")
	raw, _ := ForDir(ModePassthrough, "public")

	tests := []struct {
		name string
		r    *Resolver
		ref  string
		want string
	}{
		{"dir relative", dir, "scenes/a.mp4", filepath.Join("public", "scenes", "a.mp4")},
		{"dir leading slash", dir, "/a.mp4", filepath.Join("public", "a.mp4")},
		{"dir no escape", dir, "../../etc/passwd", filepath.Join("public", "etc", "passwd")},
		{"url prefix", web, "scenes/clip one.mp4", "/static/scenes/clip%20one.mp4"},
		{"url passes urls", web, "https://cdn.example.com/a.mp4", "https://cdn.example.com/a.mp4"},
		{"passthrough", raw, "scenes/a.mp4", "scenes/a.mp4"},
		{"empty", dir, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Resolve(tt.ref); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestUnknownMode(t *testing.T) {
	if _, err := ForDir("cdn", "public"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}
