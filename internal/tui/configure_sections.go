package tui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/AxelotlZoons/Word/internal/config"
)

func runForm(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).WithTheme(getTheme()).Run()
}

func editSource(cfg *config.Config) error {
	url := cfg.Source.URL
	resolve := cfg.Source.Resolve

	err := runForm(
		huh.NewInput().
			Title("Stream URL").
			Description("Direct audio URL, or a YouTube/Twitch page").
			Value(&url).
			Validate(validateURL),
		huh.NewConfirm().
			Title("Resolve page URLs with yt-dlp?").
			Value(&resolve),
	)
	if err != nil {
		return err
	}

	cfg.Source.URL = url
	cfg.Source.Resolve = resolve
	return nil
}

func editDeepgram(cfg *config.Config) error {
	key := cfg.Providers["deepgram"].APIKey
	desc := "Leave empty to read " + config.APIKeyEnv
	if key != "" {
		desc = "Current: " + maskAPIKey(key)
	}

	err := runForm(
		huh.NewInput().
			Title("Deepgram API key").
			Description(desc).
			EchoMode(huh.EchoModePassword).
			Value(&key),
	)
	if err != nil {
		return err
	}

	cfg.Providers["deepgram"] = config.ProviderConfig{APIKey: key}
	return nil
}

func editTranscription(cfg *config.Config) error {
	model := cfg.Transcription.Model
	language := cfg.Transcription.Language
	interim := cfg.Transcription.InterimResults
	boost := cfg.Transcription.BoostKeywords
	grace := cfg.Transcription.FinalizeGrace.String()

	err := runForm(
		huh.NewSelect[string]().
			Title("Model").
			Options(modelOptions(model)...).
			Value(&model),
		huh.NewSelect[string]().
			Title("Language").
			Options(languageOptions(language)...).
			Height(10).
			Value(&language),
		huh.NewConfirm().
			Title("Show interim results?").
			Value(&interim),
		huh.NewConfirm().
			Title("Boost keywords?").
			Description("Sends the keyword list to Deepgram as recognition hints").
			Value(&boost),
		huh.NewInput().
			Title("Finalize grace").
			Description("How long to wait for trailing results after audio ends").
			Value(&grace).
			Validate(validateDuration),
	)
	if err != nil {
		return err
	}

	cfg.Transcription.Model = model
	cfg.Transcription.Language = language
	cfg.Transcription.InterimResults = interim
	cfg.Transcription.BoostKeywords = boost
	cfg.Transcription.FinalizeGrace, _ = time.ParseDuration(grace)
	return nil
}

func editKeywords(cfg *config.Config) error {
	keywordsInput := formatKeywords(cfg.Spotter.Keywords)
	threshold := strconv.FormatFloat(cfg.Spotter.ConfidenceThreshold, 'f', -1, 64)

	err := runForm(
		huh.NewInput().
			Title("Keywords").
			Description("Comma-separated root words; plurals and possessives are matched too").
			Placeholder("e.g., fire, emergency, china").
			Value(&keywordsInput).
			Validate(func(s string) error {
				_, err := parseKeywords(s)
				return err
			}),
		huh.NewInput().
			Title("Confidence threshold").
			Description("Words below this confidence are not counted (0 to 1)").
			Value(&threshold).
			Validate(func(s string) error {
				_, err := parseThreshold(s)
				return err
			}),
	)
	if err != nil {
		return err
	}

	cfg.Spotter.Keywords, _ = parseKeywords(keywordsInput)
	cfg.Spotter.ConfidenceThreshold, _ = parseThreshold(threshold)
	return nil
}

func editOutput(cfg *config.Config) error {
	countsFile := cfg.Output.CountsFile
	transcript := cfg.Output.Transcript
	httpAddr := cfg.Output.HTTPAddr

	err := runForm(
		huh.NewInput().
			Title("Counts file").
			Description("Truncated at start, one line per count update").
			Value(&countsFile),
		huh.NewConfirm().
			Title("Echo transcripts to the terminal?").
			Value(&transcript),
		huh.NewInput().
			Title("HTTP address").
			Description("Serves /counts and /status, e.g. 127.0.0.1:8765. Empty disables it").
			Value(&httpAddr),
	)
	if err != nil {
		return err
	}

	cfg.Output.CountsFile = countsFile
	cfg.Output.Transcript = transcript
	cfg.Output.HTTPAddr = httpAddr
	return nil
}

func editNotifications(cfg *config.Config) error {
	enabled := cfg.Notifications.Enabled
	notifType := cfg.Notifications.Type
	if notifType == "" {
		notifType = "desktop"
	}

	err := runForm(
		huh.NewConfirm().
			Title("Notify on keyword hits and failures?").
			Value(&enabled),
		huh.NewSelect[string]().
			Title("Notification Type").
			Options(
				huh.NewOption("Desktop notifications (notify-send)", "desktop"),
				huh.NewOption("Log to console only", "log"),
				huh.NewOption("None (silent)", "none"),
			).
			Value(&notifType),
	)
	if err != nil {
		return err
	}

	cfg.Notifications.Enabled = enabled
	cfg.Notifications.Type = notifType
	return nil
}
