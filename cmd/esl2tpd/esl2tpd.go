package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sys/unix"

	"github.com/pwlink/esl2tpd/config"
	l2tpmetrics "github.com/pwlink/esl2tpd/internal/metrics"
	"github.com/pwlink/esl2tpd/l2tp"
)

type application struct {
	cfg     *config.Config
	logger  log.Logger
	l2tpCtx *l2tp.Context
	sigChan chan os.Signal
}

func newApplication(cfg *config.Config, verbose, nullRelay bool) (*application, error) {
	app := application{
		cfg:     cfg,
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(app.sigChan, unix.SIGINT, unix.SIGTERM)

	logger := log.NewLogfmtLogger(os.Stderr)
	if verbose {
		app.logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		app.logger = level.NewFilter(logger, level.AllowInfo())
	}

	var collector *l2tpmetrics.Collector
	if cfg.MetricsAddress != "" {
		registry := prometheus.NewRegistry()
		collector = l2tpmetrics.NewCollector(registry)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			err := http.ListenAndServe(cfg.MetricsAddress, mux)
			level.Error(app.logger).Log("message", "metrics server failed", "error", err)
		}()
	}

	var relay l2tp.TrafficRelay
	if !nullRelay && len(cfg.Channels) > 0 {
		relay = newChannelRelay(cfg.Channels, app.logger)
	}

	l2tpCtx, err := l2tp.NewContext(l2tp.ContextConfig{
		Listen:       cfg.Listen,
		HostName:     cfg.HostName,
		RouterID:     cfg.RouterID,
		HelloTimeout: cfg.HelloTimeout,
		RetryTimeout: cfg.RetryTimeout,
		AckTimeout:   cfg.AckTimeout,
		MaxRetries:   cfg.MaxRetries,
		Metrics:      collector,
	}, relay, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create L2TP context: %v", err)
	}

	app.l2tpCtx = l2tpCtx
	app.l2tpCtx.RegisterEventHandler(&app)

	return &app, nil
}

func (app *application) HandleEvent(event interface{}) {
	switch ev := event.(type) {
	case *l2tp.ConnectionUpEvent:
		level.Info(app.logger).Log(
			"message", "connection up",
			"connection_id", ev.ConnectionID,
			"peer_connection_id", ev.PeerConnectionID,
			"peer_host_name", ev.PeerHostName,
			"peer_router_id", ev.PeerRouterID,
			"peer_addr", ev.PeerAddr)
	case *l2tp.ConnectionDownEvent:
		level.Info(app.logger).Log(
			"message", "connection down",
			"connection_id", ev.ConnectionID,
			"peer_addr", ev.PeerAddr,
			"reason", ev.Reason)
	case *l2tp.SessionUpEvent:
		level.Info(app.logger).Log(
			"message", "session up",
			"connection_id", ev.ConnectionID,
			"session_id", ev.SessionID,
			"peer_session_id", ev.PeerSessionID,
			"remote_end_id", ev.RemoteEndID)
	case *l2tp.SessionDownEvent:
		level.Info(app.logger).Log(
			"message", "session down",
			"connection_id", ev.ConnectionID,
			"session_id", ev.SessionID)
	}
}

func (app *application) run() int {
	go func() {
		<-app.sigChan
		level.Info(app.logger).Log("message", "received signal, shutting down")
		app.l2tpCtx.Close()
	}()
	app.l2tpCtx.Run()
	return 0
}

func main() {
	cfgPathPtr := flag.String("config", "/etc/esl2tpd/esl2tpd.toml", "specify configuration file path")
	verbosePtr := flag.Bool("verbose", false, "toggle verbose log output")
	nullRelayPtr := flag.Bool("null", false, "run the control protocol without relaying traffic")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPathPtr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	app, err := newApplication(cfg, *verbosePtr, *nullRelayPtr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to instantiate application: %v\n", err)
		os.Exit(1)
	}

	os.Exit(app.run())
}
