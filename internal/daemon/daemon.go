package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AxelotlZoons/Word/internal/audio"
	"github.com/AxelotlZoons/Word/internal/bus"
	"github.com/AxelotlZoons/Word/internal/config"
	"github.com/AxelotlZoons/Word/internal/console"
	"github.com/AxelotlZoons/Word/internal/httpapi"
	"github.com/AxelotlZoons/Word/internal/notify"
	"github.com/AxelotlZoons/Word/internal/pipeline"
	"github.com/AxelotlZoons/Word/internal/projection"
	"github.com/AxelotlZoons/Word/internal/resolve"
	"github.com/AxelotlZoons/Word/internal/spotter"
)

type Options struct {
	Config *config.Config

	// Manager, when set, is watched for changes to the confidence threshold.
	Manager *config.Manager

	// Output receives the transcript echo. Nil means stdout.
	Output io.Writer

	// Notifier overrides the one built from the notifications section.
	Notifier notify.Notifier

	Version string

	// HandleSignals stops the run on SIGINT or SIGTERM; a second signal
	// cancels it.
	HandleSignals bool
}

// Daemon hosts one pipeline run together with its control socket, counts
// file, transcript echo and optional HTTP endpoint.
type Daemon struct {
	opts   Options
	cfg    *config.Config
	spot   *spotter.Spotter
	logger *log.Logger

	mu  sync.RWMutex
	sup *pipeline.Supervisor
}

func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, errors.New("daemon: config is required")
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spot, err := spotter.New(cfg.Spotter.Keywords, cfg.Spotter.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.New(cfg.Notifications.Enabled, cfg.Notifications.Type)
	}
	return &Daemon{
		opts:   opts,
		cfg:    cfg,
		spot:   spot,
		logger: log.Default().WithPrefix("daemon"),
	}, nil
}

// Spotter exposes the counts of the hosted run.
func (d *Daemon) Spotter() *spotter.Spotter { return d.spot }

func (d *Daemon) status() pipeline.Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.sup == nil {
		return pipeline.Status{State: pipeline.Starting}
	}
	return d.sup.Status()
}

func (d *Daemon) stop() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.sup != nil {
		d.sup.Stop()
	}
}

// Run blocks until the pipeline stops or fails and returns its report.
func (d *Daemon) Run(ctx context.Context) (pipeline.Report, error) {
	if err := bus.CheckExistingDaemon(); err != nil {
		return pipeline.Report{}, err
	}

	ln, err := bus.Listen()
	if err != nil {
		return pipeline.Report{}, err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return pipeline.Report{}, fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	sink, err := projection.Open(d.cfg.Output.CountsFile)
	if err != nil {
		return pipeline.Report{}, err
	}
	defer sink.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sup, err := pipeline.New(d.pipelineOptions(sink))
	if err != nil {
		return pipeline.Report{}, err
	}
	d.mu.Lock()
	d.sup = sup
	d.mu.Unlock()

	if d.opts.HandleSignals {
		stopSignals := d.handleSignals(cancel)
		defer stopSignals()
	}

	if d.opts.Manager != nil {
		d.opts.Manager.OnChange(d.applyConfig)
		if err := d.opts.Manager.StartWatching(ctx); err != nil {
			d.logger.Warn("config hot reload unavailable", "err", err)
		} else {
			defer d.opts.Manager.Stop()
		}
	}

	if addr := d.cfg.Output.HTTPAddr; addr != "" {
		srv, err := httpapi.Start(addr, d.spot, d.status)
		if err != nil {
			return pipeline.Report{}, fmt.Errorf("http endpoint: %w", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				d.logger.Warn("http shutdown", "err", err)
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.serve(ln)
	}()
	defer wg.Wait()
	defer ln.Close()

	d.logger.Info("daemon started", "run", sup.RunID(), "source", d.cfg.Source.URL, "counts", sink.Path())
	report, err := sup.Run(ctx)
	d.logger.Info(report.String())
	return report, err
}

func (d *Daemon) pipelineOptions(sink *projection.FileSink) pipeline.Options {
	observers := []pipeline.Observer{sink, notify.Observer{Notifier: d.opts.Notifier}}
	if d.cfg.Output.Transcript {
		observers = append(observers, console.New(d.opts.Output, d.isKeyword))
	}

	var resolver pipeline.Resolver
	if d.cfg.Source.Resolve {
		resolver = resolve.New(d.cfg.ToResolveConfig())
	}

	return pipeline.Options{
		Source:        d.cfg.Source.URL,
		Resolver:      resolver,
		Decoder:       audio.NewDecoder(d.cfg.ToAudioConfig()),
		Transcription: d.cfg.ToTranscriberConfig(),
		Spotter:       d.spot,
		DrainTimeout:  d.cfg.Transcription.DrainTimeout,
		Observers:     observers,
	}
}

// isKeyword matches a displayed token, ignoring smart-format punctuation.
func (d *Daemon) isKeyword(token string) bool {
	_, ok := d.spot.Root(strings.TrimFunc(token, func(r rune) bool {
		return strings.ContainsRune(`.,!?;:"()`, r)
	}))
	return ok
}

func (d *Daemon) handleSignals(cancel context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			d.logger.Info("received signal, draining", "signal", sig)
			d.stop()
		case <-done:
			return
		}
		select {
		case sig := <-sigCh:
			d.logger.Warn("received second signal, aborting", "signal", sig)
			cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// applyConfig takes the parts of a reloaded config that can change while
// streaming.
func (d *Daemon) applyConfig(old, updated *config.Config) {
	if t := updated.Spotter.ConfidenceThreshold; t != d.spot.Threshold() {
		if err := d.spot.SetThreshold(t); err != nil {
			d.logger.Warn("threshold not applied", "err", err)
		} else {
			d.logger.Info("confidence threshold updated", "threshold", t)
		}
	}
	if !slices.Equal(old.Spotter.Keywords, updated.Spotter.Keywords) {
		d.logger.Warn("keyword changes apply on the next run")
	}
}

func (d *Daemon) serve(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				d.logger.Warn("accept failed", "err", err)
			}
			return
		}
		go d.handle(c)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		d.logger.Debug("client read error", "err", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}
	cmd := line[0]

	switch cmd {
	case bus.CmdStatus:
		st := d.status()
		fields := []bus.Field{{Key: "state", Value: string(st.State)}}
		if st.RunID != "" {
			fields = append(fields, bus.Field{Key: "run", Value: st.RunID})
		}
		if st.Reason != pipeline.NoReason {
			fields = append(fields, bus.Field{Key: "reason", Value: string(st.Reason)})
		}
		fields = append(fields,
			bus.Field{Key: "chunks", Value: strconv.FormatInt(st.Stats.ChunksSent, 10)},
			bus.Field{Key: "events", Value: strconv.FormatInt(st.Stats.EventsReceived, 10)},
		)
		fmt.Fprint(c, bus.FormatReply("STATUS", fields...))
	case bus.CmdCounts:
		snap := d.spot.Snapshot()
		fields := make([]bus.Field, 0, len(snap))
		for _, kc := range snap {
			fields = append(fields, bus.Field{Key: kc.Keyword, Value: strconv.Itoa(kc.Count)})
		}
		fmt.Fprint(c, bus.FormatReply("COUNTS", fields...))
	case bus.CmdVersion:
		fmt.Fprint(c, bus.FormatReply("STATUS",
			bus.Field{Key: "proto", Value: bus.ProtoVer},
			bus.Field{Key: "version", Value: d.opts.Version},
		))
	case bus.CmdStop:
		fmt.Fprint(c, "OK stopping\n")
		d.stop()
	default:
		d.logger.Warn("unknown command", "cmd", string(cmd))
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}
