/*
Standalone canopy router service.
*/
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/canopyio/canopy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-c canopy.json]\n", os.Args[0])
}

// newLogger builds a structured zap logger with the provided level string.
func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	var zapLevel zapcore.Level
	if err := zapLevel.Set(strings.ToLower(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "msg"
	return cfg.Build()
}

func main() {
	var cfgFile string
	fs := flag.NewFlagSet("canopyd", flag.ExitOnError)
	fs.StringVar(&cfgFile, "c", "etc/canopy.json", "Path to config file")
	fs.Usage = usage
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	conf := LoadConfig(cfgFile)

	zlog, err := newLogger(conf.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer zlog.Sync()
	// The router logs through the minimal StdLog interface; the standard
	// logger adapter bridges it to zap.
	logger := zap.NewStdLog(zlog)

	r, err := canopy.NewRouter(&conf.Router, logger)
	if err != nil {
		logger.Print(err)
		os.Exit(1)
	}

	var closers []io.Closer
	if conf.WebSocket.Address != "" {
		wss := canopy.NewWebsocketServer(r)
		if conf.WebSocket.OutQueueSize != 0 {
			wss.OutQueueSize = conf.WebSocket.OutQueueSize
			logger.Printf("Websocket outbound queue size: %d", wss.OutQueueSize)
		}
		closer, err := wss.ListenAndServe(conf.WebSocket.Address)
		if err != nil {
			logger.Print(err)
			os.Exit(1)
		}
		closers = append(closers, closer)
		logger.Printf("Listening for websocket connections on ws://%s/",
			conf.WebSocket.Address)
	}
	if len(closers) == 0 {
		logger.Print("No servers configured")
		os.Exit(1)
	}

	if conf.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: conf.MetricsAddress, Handler: mux}
		go metricsServer.ListenAndServe()
		closers = append(closers, metricsServer)
		logger.Printf("Serving metrics on http://%s/metrics",
			conf.MetricsAddress)
	}

	// Shut down if SIGINT (CTRL-c) received.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt)
	<-shutdown

	// If the process does not exit in a few seconds, exit with error.
	exitChan := make(chan struct{})
	go func() {
		select {
		case <-time.After(5 * time.Second):
			logger.Print("Router took too long to stop")
			os.Exit(1)
		case <-exitChan:
		}
	}()

	logger.Print("Shutting down router...")
	for i := range closers {
		closers[i].Close()
	}
	r.Close()
	close(exitChan)
}
