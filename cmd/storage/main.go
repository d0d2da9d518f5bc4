package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"

	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"

	"podstream/internal/logger"
	"podstream/internal/storage"
)

func main() {
	var dir string
	flag.StringVar(&dir, "dir", "", "Base directory for file system storage")
	var port int
	flag.IntVar(&port, "port", 0, "Port to listen on (0 for random available port)")
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flag.Parse()

	logger.Init(logLevel)
	defer logger.Sync()

	var s storage.Storage
	if dir != "" {
		s = storage.NewFileSystemStorage(osfs.New(dir))
	} else {
		s = storage.NewInMemoryStorage()
	}

	server := storage.NewStorageServer(s)

	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		zap.S().Fatalf("failed to listen on %s: %v", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port
	zap.S().Infof("listening on :%d...", actualPort)
	if dir != "" {
		zap.S().Infof("using file system storage at %s", dir)
	} else {
		zap.S().Info("using in-memory storage")
	}
	zap.S().Fatal(http.Serve(listener, server))
}
