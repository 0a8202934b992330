package tui

import (
	"strings"
	"testing"

	"github.com/AxelotlZoons/Word/internal/config"
	"github.com/AxelotlZoons/Word/internal/language"
)

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"fire, emergency,china", "fire|emergency|china", false},
		{" fire ,, fire ", "fire", false},
		{"white house", "", true},
		{" , ", "", true},
	}
	for _, tt := range tests {
		got, err := parseKeywords(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseKeywords(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if strings.Join(got, "|") != tt.want {
			t.Errorf("parseKeywords(%q) = %v, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseThreshold(t *testing.T) {
	for input, ok := range map[string]bool{"0.85": true, " 1 ": true, "0": true, "1.2": false, "-0.1": false, "high": false} {
		if _, err := parseThreshold(input); (err == nil) != ok {
			t.Errorf("parseThreshold(%q) error = %v", input, err)
		}
	}
}

func TestValidators(t *testing.T) {
	if err := validateURL("https://npr-ice.streamguys1.com/live.mp3"); err != nil {
		t.Errorf("validateURL() error = %v", err)
	}
	if err := validateURL("live.mp3"); err == nil {
		t.Error("validateURL() should reject a relative path")
	}
	if err := validateDuration("3s"); err != nil {
		t.Errorf("validateDuration() error = %v", err)
	}
	if err := validateDuration("0s"); err == nil {
		t.Error("validateDuration() should reject zero")
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey("short"); got != "***" {
		t.Errorf("maskAPIKey(short) = %q", got)
	}
	if got := maskAPIKey("0123456789abcdef"); got != "0123...cdef" {
		t.Errorf("maskAPIKey() = %q", got)
	}
}

func TestModelOptions(t *testing.T) {
	if n := len(modelOptions("nova-2")); n != len(deepgramModels) {
		t.Errorf("known model added an extra option: %d", n)
	}
	opts := modelOptions("my-custom-model")
	if last := opts[len(opts)-1]; last.Value != "my-custom-model" {
		t.Errorf("custom model not kept, last option = %+v", last)
	}
}

func TestLanguageOptions(t *testing.T) {
	base := len(language.List()) + 1
	if n := len(languageOptions("en")); n != base {
		t.Errorf("languageOptions(en) = %d options, want %d", n, base)
	}
	if first := languageOptions("")[0]; first.Value != "" {
		t.Errorf("first option = %+v, want the service default", first)
	}
	opts := languageOptions("es-MX")
	if len(opts) != base+1 || opts[len(opts)-1].Value != "es-MX" {
		t.Errorf("regional tag not kept, last option = %+v", opts[len(opts)-1])
	}
}

func TestLabels(t *testing.T) {
	cfg := config.DefaultConfig()
	if got := formatKeywordsLabel(cfg); got != "Keywords (5)" {
		t.Errorf("formatKeywordsLabel() = %q", got)
	}
	if got := formatNotificationsLabel(cfg); got != "Notifications (off)" {
		t.Errorf("formatNotificationsLabel() = %q", got)
	}
	cfg.Providers["deepgram"] = config.ProviderConfig{APIKey: "secret-key-value"}
	if got := formatDeepgramLabel(cfg); !strings.Contains(got, "set") {
		t.Errorf("formatDeepgramLabel() = %q", got)
	}
	if got := formatSourceLabel(cfg); len(got) > len("Source ()")+40 {
		t.Errorf("formatSourceLabel() too long: %q", got)
	}
}

func TestRenderStatus(t *testing.T) {
	for _, s := range []string{"starting", "streaming", "draining", "stopped", "failed"} {
		if !strings.Contains(RenderStatus(s), s) {
			t.Errorf("RenderStatus(%q) lost the state name", s)
		}
	}
}
