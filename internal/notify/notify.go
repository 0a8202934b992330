package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AxelotlZoons/Word/internal/pipeline"
	"github.com/AxelotlZoons/Word/internal/spotter"
)

const (
	appName = "Word"

	defaultSendTimeout = 5 * time.Second
)

type Notifier interface {
	KeywordSpotted(m spotter.Match, total int)
	Error(msg string)
	Notify(title, message string)
}

// New returns the notifier for a notifications.type value. Unknown types
// and disabled notifications get Nop.
func New(enabled bool, typ string) Notifier {
	if !enabled {
		return Nop{}
	}
	switch typ {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}

// Desktop shells out to notify-send. Each notification runs in the
// background, so callers on the transcript path never wait on it.
type Desktop struct {
	// Command overrides the notify-send binary.
	Command string
	// Timeout kills a notify-send that hangs. Zero means 5s.
	Timeout time.Duration
}

func (d Desktop) command() string {
	if d.Command != "" {
		return d.Command
	}
	return "notify-send"
}

func (d Desktop) KeywordSpotted(m spotter.Match, total int) {
	d.send(false, fmt.Sprintf("%s: %q spotted", appName, m.Root),
		fmt.Sprintf("heard %q at %.1fs (total %d)", m.Word, m.Start, total))
}

func (d Desktop) Error(msg string) {
	d.send(true, appName+": error", msg)
}

func (d Desktop) Notify(title, message string) {
	d.send(false, title, message)
}

func (d Desktop) send(critical bool, title, body string) {
	args := []string{"-a", appName}
	if critical {
		args = append(args, "-u", "critical")
	}
	args = append(args, title, body)

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := exec.CommandContext(ctx, d.command(), args...).Run(); err != nil {
			log.Warn("failed to send notification", "err", err)
		}
	}()
}

// Log writes notifications to the default logger.
type Log struct{}

func (Log) KeywordSpotted(m spotter.Match, total int) {
	log.Info(appName+": keyword spotted", "root", m.Root, "word", m.Word, "start", m.Start, "total", total)
}

func (Log) Error(msg string) {
	log.Error(appName+": error", "msg", msg)
}

func (Log) Notify(title, message string) {
	log.Info(title, "msg", message)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) KeywordSpotted(spotter.Match, int) {}
func (Nop) Error(string)                      {}
func (Nop) Notify(string, string)             {}

// Observer forwards keyword matches and run failures from a pipeline to a
// Notifier.
type Observer struct {
	pipeline.NopObserver
	Notifier Notifier
}

func (o Observer) OnState(state pipeline.State, reason pipeline.Reason, err error) {
	if state != pipeline.Failed {
		return
	}
	msg := string(reason)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", reason, err)
	}
	o.Notifier.Error(msg)
}

func (o Observer) OnMatches(matches []spotter.Match, counts spotter.Snapshot) {
	for _, m := range matches {
		o.Notifier.KeywordSpotted(m, counts.Get(m.Root))
	}
}
