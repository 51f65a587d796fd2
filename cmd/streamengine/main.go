package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/mediagraph/adapter/moqsink"
	"github.com/zsiec/mediagraph/adapter/srtsource"
	"github.com/zsiec/mediagraph/certs"
	"github.com/zsiec/mediagraph/control"
	"github.com/zsiec/mediagraph/filter"
	"github.com/zsiec/mediagraph/filter/audioenc"
	"github.com/zsiec/mediagraph/filter/audiomixer"
	"github.com/zsiec/mediagraph/filter/captionpass"
	"github.com/zsiec/mediagraph/filter/scte35pass"
	"github.com/zsiec/mediagraph/frame"
	"github.com/zsiec/mediagraph/pipeline"
	"github.com/zsiec/mediagraph/queue"
	"github.com/zsiec/mediagraph/worker"
)

var version = "dev"

// cliConfig holds the operator-facing surface cobra/pflag adds on top of
// plain environment-variable defaults.
type cliConfig struct {
	controlAddr string
	srtAddr     string
	moqAddr     string
	logLevel    string
	defaultFps  int
	queueCap    int
	frameBytes  int
}

func main() {
	cfg := &cliConfig{}

	root := &cobra.Command{
		Use:     "streamengine",
		Short:   "Run the media filter-graph engine",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	flags := root.Flags()
	flags.StringVar(&cfg.controlAddr, "control-addr", envOr("CONTROL_ADDR", ":4444"), "control channel listen address")
	flags.StringVar(&cfg.srtAddr, "srt-addr", envOr("SRT_ADDR", ":6000"), "SRT source listen address")
	flags.StringVar(&cfg.moqAddr, "moq-addr", envOr("MOQ_ADDR", ":4443"), "QUIC sink listen address")
	flags.StringVar(&cfg.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flags.IntVar(&cfg.defaultFps, "default-fps", 30, "default worker frame-rate cap")
	flags.IntVar(&cfg.queueCap, "queue-capacity", 8, "frame queue depth, in slots")
	flags.IntVar(&cfg.frameBytes, "frame-bytes", 1316*10, "maximum frame payload size, in bytes")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		slog.Error("streamengine exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *cliConfig) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.logLevel)})))

	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		slog.Error("failed to generate certificate", "error", err)
		os.Exit(2)
	}
	slog.Info("certificate generated", "fingerprint", cert.FingerprintBase64(), "expires", cert.NotAfter.Format(time.RFC3339))

	mgr := pipeline.New(nil)

	scte35Filter, audioFilter, mixerFilter, captionFilter, err := registerFilters(mgr, cfg)
	if err != nil {
		slog.Error("failed to initialize filter graph", "error", err)
		os.Exit(2)
	}
	_, _, _ = audioFilter, mixerFilter, captionFilter

	sourceQ := queue.New(cfg.queueCap, cfg.frameBytes, frame.Format{Kind: frame.KindOpaque}, queue.ForceDrop)
	sourceWriter := queue.NewWriter(sourceQ)
	if _, err := scte35Filter.SetReader(0, sourceQ); err != nil {
		slog.Error("failed to bind source queue to filter graph", "error", err)
		os.Exit(2)
	}
	sourceQ.SetConnected(true)

	sinkQ, err := scte35Filter.AllocQueue(0)
	if err != nil {
		slog.Error("failed to allocate sink queue", "error", err)
		os.Exit(2)
	}
	sinkQ.SetConnected(true)
	sinkReader := queue.NewReader(sinkQ, nil)

	mgr.SetReceiver(int(scte35Filter.ID()))
	mgr.SetTransmitter(int(scte35Filter.ID()))

	w := worker.NewSimple(scte35Filter, cfg.defaultFps, nil)
	if err := mgr.AddWorker(1, w); err != nil {
		slog.Error("failed to register worker", "error", err)
		os.Exit(2)
	}
	if err := mgr.AddPath(&pipeline.Path{ID: 1, FilterIDs: []int{int(scte35Filter.ID())}, WorkerIDs: []int{1}}); err != nil {
		slog.Error("failed to register default path", "error", err)
		os.Exit(2)
	}
	if err := mgr.ConnectPath(1); err != nil {
		slog.Error("failed to connect default path", "error", err)
		os.Exit(2)
	}

	src := srtsource.New(cfg.srtAddr, sourceWriter, slog.Default())
	sink := moqsink.New(cfg.moqAddr, tlsConfigFor(cert), sinkReader, slog.Default())

	ctrl := control.New(cfg.controlAddr, mgr, mgr.Events(), slog.Default())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctrl.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("control channel: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return ctrl.Close()
	})

	g.Go(func() error {
		srtWorker, err := src.Start(ctx)
		if err != nil {
			return fmt.Errorf("srt source: %w", err)
		}
		<-ctx.Done()
		srtWorker.Stop()
		return nil
	})

	g.Go(func() error {
		if err := sink.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("moq sink: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return sink.Close()
	})

	slog.Info("streamengine starting",
		"version", version,
		"control", cfg.controlAddr,
		"srt", cfg.srtAddr,
		"moq", cfg.moqAddr,
		"cert_hash", cert.FingerprintBase64(),
	)

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("clean shutdown")
	return nil
}

// registerFilters constructs the filters available at startup: the
// default SCTE-35 tap the source/sink adapters are wired through, plus an
// audio encoder, audio mixer, and caption pass-through registered but not
// yet connected into any path — an operator wires them in at runtime via
// the control channel's addPath/connectPath/addWorkerToPath actions.
func registerFilters(mgr *pipeline.Manager, cfg *cliConfig) (*scte35pass.Filter, *audioenc.Filter, *audiomixer.Filter, *captionpass.Filter, error) {
	alloc := func(capacity, maxLength int, fmtKind frame.Kind, policy queue.ForcePolicy) filter.QueueAllocator {
		return func(writerID int) (*queue.FrameQueue, error) {
			return queue.New(capacity, maxLength, frame.Format{Kind: fmtKind}, policy), nil
		}
	}

	scte35Filter := scte35pass.New(1, alloc(cfg.queueCap, cfg.frameBytes, frame.KindOpaque, queue.ForceDrop))
	if err := mgr.AddFilter(1, scte35Filter); err != nil {
		return nil, nil, nil, nil, err
	}

	audioFilter := audioenc.New(2, "opus", 48000, 2, alloc(cfg.queueCap, 4096, frame.KindAudio, queue.ForceDuplicate))
	if err := mgr.AddFilter(2, audioFilter); err != nil {
		return nil, nil, nil, nil, err
	}

	mixerFilter := audiomixer.New(3, 8, alloc(cfg.queueCap, 4096, frame.KindAudio, queue.ForceDuplicate))
	if err := mgr.AddFilter(3, mixerFilter); err != nil {
		return nil, nil, nil, nil, err
	}

	captionFilter := captionpass.New(4, 1, alloc(cfg.queueCap, 512, frame.KindOpaque, queue.ForceDrop))
	if err := mgr.AddFilter(4, captionFilter); err != nil {
		return nil, nil, nil, nil, err
	}

	return scte35Filter, audioFilter, mixerFilter, captionFilter, nil
}

// tlsConfigFor builds the QUIC sink's server TLS config from a generated
// self-signed certificate. "mediagraph" is the only ALPN this process
// speaks, since the sink protocol is not the full MoQ/WebTransport stack.
func tlsConfigFor(cert *certs.CertInfo) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert.TLSCert},
		NextProtos:   []string{"mediagraph"},
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
