package tui

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/AxelotlZoons/Word/internal/config"
	"github.com/AxelotlZoons/Word/internal/language"
)

var deepgramModels = []string{"nova-2", "nova-3", "nova-2-general", "enhanced", "base"}

func formatSourceLabel(cfg *config.Config) string {
	return fmt.Sprintf("Source (%s)", truncate(cfg.Source.URL, 40))
}

func formatDeepgramLabel(cfg *config.Config) string {
	if cfg.Providers["deepgram"].APIKey != "" {
		return "Deepgram API key (set)"
	}
	return "Deepgram API key (from " + config.APIKeyEnv + ")"
}

func formatTranscriptionLabel(cfg *config.Config) string {
	lang := cfg.Transcription.Language
	if lang == "" {
		lang = "default language"
	}
	return fmt.Sprintf("Transcription (%s, %s)", cfg.Transcription.Model, lang)
}

func formatKeywordsLabel(cfg *config.Config) string {
	return fmt.Sprintf("Keywords (%d)", len(cfg.Spotter.Keywords))
}

func formatOutputLabel(cfg *config.Config) string {
	return "Output"
}

func formatNotificationsLabel(cfg *config.Config) string {
	if !cfg.Notifications.Enabled {
		return "Notifications (off)"
	}
	return fmt.Sprintf("Notifications (%s)", cfg.Notifications.Type)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatKeywords(keywords []string) string {
	return strings.Join(keywords, ", ")
}

// parseKeywords splits comma-separated input into single-word keywords,
// dropping blanks and repeats.
func parseKeywords(input string) ([]string, error) {
	var keywords []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		if strings.ContainsAny(p, " \t") {
			return nil, fmt.Errorf("%q is not a single word", p)
		}
		seen[p] = true
		keywords = append(keywords, p)
	}
	if len(keywords) == 0 {
		return nil, errors.New("at least one keyword is required")
	}
	return keywords, nil
}

func parseThreshold(input string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if v < 0 || v > 1 {
		return 0, errors.New("must be between 0 and 1")
	}
	return v, nil
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("enter an absolute URL")
	}
	return nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return errors.New("use a duration such as 3s or 500ms")
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

// modelOptions lists the known models, keeping a custom current value.
func modelOptions(current string) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(deepgramModels)+1)
	known := false
	for _, m := range deepgramModels {
		options = append(options, huh.NewOption(m, m))
		known = known || m == current
	}
	if current != "" && !known {
		options = append(options, huh.NewOption(current+" (current)", current))
	}
	return options
}

func languageOptions(current string) []huh.Option[string] {
	list := language.List()
	options := make([]huh.Option[string], 0, len(list)+1)
	options = append(options, huh.NewOption(language.Default.Name, language.Default.Code))
	for _, lang := range list {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", lang.Name, lang.Code), lang.Code))
	}
	if lang, ok := language.FromCode(current); ok && lang.Code != current {
		// regional tag that is only known through its base language
		options = append(options, huh.NewOption(current+" (current)", current))
	}
	return options
}

func showSummary(cfg *config.Config) (bool, error) {
	fmt.Println()
	fmt.Println(StyleHeader.Render("Configuration Summary"))

	key := "from " + config.APIKeyEnv
	if k := cfg.Providers["deepgram"].APIKey; k != "" {
		key = maskAPIKey(k)
	}

	fmt.Printf("  %s %s\n", StyleLabel.Render("Source:"), cfg.Source.URL)
	fmt.Printf("  %s %s\n", StyleLabel.Render("API key:"), key)
	fmt.Printf("  %s %s (%s)\n", StyleLabel.Render("Transcription:"), cfg.Transcription.Model, cfg.Transcription.Language)
	fmt.Printf("  %s %s\n", StyleLabel.Render("Keywords:"), formatKeywords(cfg.Spotter.Keywords))
	fmt.Printf("  %s %v\n", StyleLabel.Render("Threshold:"), cfg.Spotter.ConfidenceThreshold)
	fmt.Printf("  %s %s\n", StyleLabel.Render("Counts file:"), cfg.Output.CountsFile)
	if cfg.Output.HTTPAddr != "" {
		fmt.Printf("  %s %s\n", StyleLabel.Render("HTTP:"), cfg.Output.HTTPAddr)
	}
	fmt.Printf("  %s %s\n", StyleLabel.Render("Notifications:"), formatNotificationsLabel(cfg))
	fmt.Println()

	var confirmed bool
	err := runForm(
		huh.NewConfirm().
			Title("Save this configuration?").
			Affirmative("Save").
			Negative("Cancel").
			Value(&confirmed),
	)
	if err != nil {
		return false, err
	}
	return confirmed, nil
}
