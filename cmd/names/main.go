package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"podstream/internal/logger"
	"podstream/internal/names"
)

func main() {
	var port int
	flag.IntVar(&port, "port", 0, "Port to listen on (0 for random available port)")
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flag.Parse()

	logger.Init(logLevel)
	defer logger.Sync()

	server := names.NewNamesServer(names.NewInMemoryNames())

	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		zap.S().Fatalf("failed to listen on %s: %v", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port
	zap.S().Infof("listening on :%d...", actualPort)
	zap.S().Info("using in-memory names storage")
	zap.S().Fatal(http.Serve(listener, server))
}
