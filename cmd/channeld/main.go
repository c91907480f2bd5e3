package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// appVersion is reported in the CHND startup log line (the build_info gauge
// does not carry it); there is no build-stamping mechanism in this
// repository, so it is a plain constant rather than a linker-injected
// variable.
const appVersion = "0.1.0"

func main() {
	if err := channeldMain(); err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// channeldMain is the true entry point, split out from main the same way
// the teacher's lndMain is: so deferred cleanup still runs even if a later
// code path wants to os.Exit directly.
func channeldMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := initLogging(cfg.DebugLevel); err != nil {
		return err
	}
	chndLog.Infof("channeld version %s starting", appVersion)

	m := newMetrics(appVersion)

	d, err := newDaemon(cfg, m)
	if err != nil {
		return fmt.Errorf("failed to initialise daemon: %v", err)
	}
	d.start()
	defer d.stop()

	router := newRouter(d)
	httpServer := &http.Server{Addr: cfg.HTTPListen, Handler: router}

	go func() {
		chndLog.Infof("JSON API listening on %s", cfg.HTTPListen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			chndLog.Errorf("JSON API server failed: %v", err)
		}
	}()

	if cfg.MetricsListen != "" {
		metricsServer := &http.Server{Addr: cfg.MetricsListen, Handler: promhttp.Handler()}
		go func() {
			chndLog.Infof("Prometheus metrics listening on %s", cfg.MetricsListen)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				chndLog.Errorf("metrics server failed: %v", err)
			}
		}()
		defer metricsServer.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	chndLog.Infof("channeld shutting down")
	return httpServer.Close()
}
