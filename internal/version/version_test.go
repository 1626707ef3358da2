package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"no commit", Info{Version: "dev", GitCommit: "unknown"}, "dev"},
		{"short commit", Info{Version: "v1.0.0", GitCommit: "abc"}, "v1.0.0"},
		{"commit", Info{Version: "v1.0.0", GitCommit: "0123456789"}, "v1.0.0 (0123456)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.Short())
		})
	}
}

func TestString(t *testing.T) {
	info := Info{
		Version:   "v1.2.3",
		GitCommit: "deadbeef",
		BuildTime: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
		Dirty:     true,
	}
	assert.Equal(t, "Version: v1.2.3\n"+
		"Commit: deadbeef\n"+
		"Built: 2024-01-02T03:04:05Z\n"+
		"Working directory: dirty\n"+
		"Go: go1.24.4\n"+
		"Platform: linux/amd64", info.String())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
