package deps

import (
	"path/filepath"
	"testing"

	"github.com/AxelotlZoons/Word/internal/testutil"
)

func TestCheck_Installed(t *testing.T) {
	script := testutil.WriteScript(t, "ffmpeg", "echo 'ffmpeg version 6.1.1 Copyright (c) 2000-2023'\necho 'built with gcc'\n")

	status := CheckFFmpeg(script)
	if !status.Installed {
		t.Fatal("expected Installed=true for an executable path")
	}
	if status.Path != script {
		t.Errorf("Path = %q, want %q", status.Path, script)
	}
	if status.Version != "ffmpeg version 6.1.1 Copyright (c) 2000-2023" {
		t.Errorf("Version = %q", status.Version)
	}
}

func TestCheck_NotInstalled(t *testing.T) {
	status := CheckYtDlp(filepath.Join(t.TempDir(), "yt-dlp"))
	if status.Installed {
		t.Error("expected Installed=false for a missing binary")
	}
	if status.Path != "" || status.Version != "" {
		t.Errorf("expected empty status, got %+v", status)
	}
}

func TestCheck_VersionFailure(t *testing.T) {
	script := testutil.WriteScript(t, "yt-dlp", "exit 2\n")
	status := CheckYtDlp(script)
	if !status.Installed || status.Version != "" {
		t.Errorf("status = %+v, want installed without version", status)
	}
}

func TestCheck_FromPath(t *testing.T) {
	script := testutil.WriteScript(t, "notify-send", "echo 'notify-send 0.8.3'\n")
	t.Setenv("PATH", filepath.Dir(script))

	status := CheckNotifySend()
	if !status.Installed || status.Version != "notify-send 0.8.3" {
		t.Errorf("status = %+v", status)
	}
}

func TestTools(t *testing.T) {
	tests := []struct {
		name    string
		resolve bool
		desktop bool
		want    []string
	}{
		{"decoder only", false, false, []string{"ffmpeg"}},
		{"with resolver", true, false, []string{"ffmpeg", "yt-dlp"}},
		{"everything", true, true, []string{"ffmpeg", "yt-dlp", "notify-send"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools := Tools("ffmpeg", "yt-dlp", tt.resolve, tt.desktop)
			if len(tools) != len(tt.want) {
				t.Fatalf("Tools() = %+v, want %v", tools, tt.want)
			}
			for i, name := range tt.want {
				if tools[i].Name != name {
					t.Errorf("tools[%d] = %s, want %s", i, tools[i].Name, name)
				}
			}
			if !tools[0].Required {
				t.Error("ffmpeg must be required")
			}
		})
	}
}

func TestCheckAll(t *testing.T) {
	ffmpeg := testutil.WriteScript(t, "ffmpeg", "echo 'ffmpeg version 6'\n")
	missing := filepath.Join(t.TempDir(), "yt-dlp")

	results, ok := CheckAll(Tools(ffmpeg, missing, true, false))
	if !ok {
		t.Error("a missing optional tool should not fail the check")
	}
	if len(results) != 2 || !results[0].Installed || results[1].Installed {
		t.Errorf("results = %+v", results)
	}

	_, ok = CheckAll(Tools(missing, missing, false, false))
	if ok {
		t.Error("a missing decoder should fail the check")
	}
}
