package version

import (
	"regexp"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	assert.Regexp(t, regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`), Version)
}

func TestGet_ReportsRuntime(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.Date)
}

func TestApplyVCS(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	tests := []struct {
		name       string
		start      Info
		wantCommit string
		wantDate   string
	}{
		{"fills unknown fields", Info{Commit: "unknown", Date: "unknown"}, "0123456789ab", "2026-01-02T03:04:05Z"},
		{"ldflags win", Info{Commit: "abc123", Date: "2025-12-31"}, "abc123", "2025-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.start
			applyVCS(&info, settings)

			assert.Equal(t, tt.wantCommit, info.Commit)
			assert.Equal(t, tt.wantDate, info.Date)
			assert.True(t, info.Modified)
		})
	}
}

func TestInfo_String(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "clean",
			info: Info{Version: "1.2.3", Commit: "abc", Date: "today", GoVersion: "go1.25.5", Platform: "linux/amd64"},
			want: "minirag 1.2.3 (commit: abc, built: today, go1.25.5, linux/amd64)",
		},
		{
			name: "modified tree",
			info: Info{Version: "dev", Commit: "abc", Modified: true, Date: "today", GoVersion: "go1.25.5", Platform: "darwin/arm64"},
			want: "minirag dev (commit: abc-dirty, built: today, go1.25.5, darwin/arm64)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}
