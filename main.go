package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arrowarena/server"
)

// ArrowArena 入口：启动 HTTP + WebSocket 服务，并初始化房间管理器
func main() {
	cfg, err := server.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "server listen address, e.g. :3000")
	flag.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file path")
	flag.IntVar(&cfg.Rules.SyncRate, "sync-rate", cfg.Rules.SyncRate, "lockstep frames per second")
	flag.StringVar(&cfg.Codec, "codec", cfg.Codec, "default wire codec: json or msgpack")
	console := flag.Bool("console", false, "also log to stderr")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel, *console); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	rm := server.NewRoomManager(cfg)
	defer rm.Close()
	// 先预创建一个默认房间，便于快速试跑
	if _, err := rm.GetOrCreateRoom(cfg.DefaultRoom); err != nil {
		server.Log.Fatalf("create default room: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rm.HandleWS)
	// 管理与监控接口
	mux.HandleFunc("/admin/config", rm.HandleAdminConfig)
	mux.HandleFunc("/admin/rooms", rm.HandleRooms)
	mux.HandleFunc("/metrics", rm.HandleMetrics)
	mux.HandleFunc("/schema", server.HandleSchema)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		server.Log.Infof("ArrowArena listening on %s; syncRate=%d codec=%s", cfg.Addr, cfg.Rules.SyncRate, cfg.Codec)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Warnf("shutdown: %v", err)
	}
}
