package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"podstream/internal/config"
	"podstream/internal/control"
	"podstream/internal/ctr"
	"podstream/internal/interceptor"
	"podstream/internal/logger"
	"podstream/internal/names"
	"podstream/internal/origin"
	"podstream/internal/registry"
	"podstream/internal/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	var envPath string
	flag.StringVar(&envPath, "env", ".env", "Path to an optional .env file")
	var port int
	flag.IntVar(&port, "port", -1, "Port to listen on (overrides the configured listen address, 0 for random)")
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	var upstream string
	flag.StringVar(&upstream, "upstream", "", "URL that requests outside the prefix are proxied to")
	flag.Parse()

	envErr := godotenv.Load(envPath)

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if port >= 0 {
		cfg.Listen = fmt.Sprintf(":%d", port)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if upstream != "" {
		cfg.Upstream = upstream
	}

	log := logger.Init(cfg.Log.Level)
	defer logger.Sync()

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		zap.S().Fatalf("failed to load %s: %v", envPath, envErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := newOriginRouter(ctx, cfg.Origin)
	if err != nil {
		zap.S().Fatalf("failed to configure origins: %v", err)
	}

	var next http.Handler
	if cfg.Upstream != "" {
		target, err := url.Parse(cfg.Upstream)
		if err != nil {
			zap.S().Fatalf("invalid upstream %q: %v", cfg.Upstream, err)
		}
		next = httputil.NewSingleHostReverseProxy(target)
		zap.S().Infof("proxying other requests to %s", target)
	}

	reg := registry.NewInMemoryRegistry()
	ic := interceptor.NewInterceptor(
		reg,
		fetcher,
		ctr.NewDefaultDecrypter(log),
		interceptor.Options{Prefix: cfg.Prefix, ChunkSize: cfg.ChunkSize},
		next,
		log,
	)

	// The control loop outlives the signal so in-flight control requests
	// still get their ack while the server drains.
	controlCtx, stopControl := context.WithCancel(context.Background())
	messages := make(chan control.Envelope)
	go control.NewHandler(reg, log).Serve(controlCtx, messages)

	mux := http.NewServeMux()
	mux.Handle("/control", control.NewServer(messages))
	mux.Handle("/", ic)

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		zap.S().Fatalf("failed to listen on %s: %v", cfg.Listen, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		zap.S().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.S().Warnf("shutdown: %v", err)
		}
	}()

	zap.S().Infof("listening on %s, decrypting under %s", listener.Addr(), cfg.Prefix)
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.S().Fatalf("server failed: %v", err)
	}
	<-drained
	stopControl()

	// Drop key material before exit.
	reg.Clear()
}

func newOriginRouter(ctx context.Context, cfg config.OriginConfig) (*origin.Router, error) {
	httpClient := origin.NewHTTPClient(cfg.Timeout)
	httpFetcher := origin.NewHTTPFetcher(httpClient)
	router := origin.NewRouter().
		Handle("http", httpFetcher).
		Handle("https", httpFetcher)

	if cfg.S3 != nil {
		client, err := origin.NewS3Client(ctx, origin.S3Options{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		router.Handle("s3", origin.NewS3Fetcher(client))
		zap.S().Infof("s3 origins enabled in region %s", cfg.S3.Region)
	}

	if cfg.StorageURL != "" {
		blobs := origin.NewStorageFetcher(storage.NewClient(cfg.StorageURL, httpClient))
		router.Handle("storage", blobs)
		zap.S().Infof("storage origins enabled at %s", cfg.StorageURL)

		if cfg.NamesURL != "" {
			resolver := names.NewClient(cfg.NamesURL, httpClient)
			router.Handle("name", origin.NewNameFetcher(resolver, blobs, cfg.NameCacheTTL))
			zap.S().Infof("named origins enabled at %s", cfg.NamesURL)
		}
	}

	return router, nil
}
