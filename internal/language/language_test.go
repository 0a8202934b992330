package language

import "testing"

func TestFromCode(t *testing.T) {
	tests := []struct {
		code     string
		wantName string
		wantOK   bool
	}{
		{"en", "English", true},
		{"en-GB", "English (UK)", true},
		{"EN-gb", "English (UK)", true},
		{"es-MX", "Spanish", true},
		{"es-419", "Spanish (Latin America)", true},
		{"multi", "Multilingual (English and Spanish)", true},
		{"", Default.Name, true},
		{"xx", Default.Name, false},
		{"xx-YY", Default.Name, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			lang, ok := FromCode(tt.code)
			if ok != tt.wantOK {
				t.Errorf("FromCode(%q) ok = %v, want %v", tt.code, ok, tt.wantOK)
			}
			if lang.Name != tt.wantName {
				t.Errorf("FromCode(%q).Name = %q, want %q", tt.code, lang.Name, tt.wantName)
			}
		})
	}
}

func TestIsValidCode(t *testing.T) {
	for _, code := range []string{"", "en", "en-US", "pt-BR", "zh-TW", "de-AT"} {
		if !IsValidCode(code) {
			t.Errorf("IsValidCode(%q) = false, want true", code)
		}
	}
	for _, code := range []string{"english", "klingon", "-US"} {
		if IsValidCode(code) {
			t.Errorf("IsValidCode(%q) = true, want false", code)
		}
	}
}

func TestListIsCopy(t *testing.T) {
	list := List()
	if len(list) != len(languages) {
		t.Fatalf("List() returned %d languages, want %d", len(list), len(languages))
	}
	list[0].Name = "changed"
	if languages[0].Name == "changed" {
		t.Error("List() should return a copy")
	}
}

func TestCodesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, code := range Codes() {
		if code == "" {
			t.Error("Codes() should not include the default")
		}
		if seen[code] {
			t.Errorf("duplicate code %q", code)
		}
		seen[code] = true
	}
}
