package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/dsnworks/config"
	"github.com/weiwangfds/dsnworks/internal/database"
	"github.com/weiwangfds/dsnworks/internal/events"
	"github.com/weiwangfds/dsnworks/internal/i18n"
	"github.com/weiwangfds/dsnworks/internal/logger"
	"github.com/weiwangfds/dsnworks/internal/metrics"
	"github.com/weiwangfds/dsnworks/internal/middleware"
	"github.com/weiwangfds/dsnworks/internal/router"
	"github.com/weiwangfds/dsnworks/internal/service/storage"
	workservice "github.com/weiwangfds/dsnworks/internal/service/work"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}
	i18n.GetInstance().SetDefaultLanguage(cfg.Server.Language)
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	if cfg.Metrics.Enabled {
		if sqlDB, err := db.DB(); err == nil {
			if err := metrics.RegisterDB(sqlDB, cfg.Database.Driver); err != nil {
				logger.Warnf("register database metrics: %v", err)
			}
		}
	}

	// 初始化存储，连接失败只告警，上传时再报错
	provider, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage provider: %v", err)
	}
	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 10*time.Second)
	if err := provider.TestConnection(checkCtx); err != nil {
		logger.Warnf("storage provider %s not reachable: %v", cfg.Storage.Provider, err)
	}
	cancelCheck()

	publisher := events.New(cfg.Events.Brokers, cfg.Events.Topic)
	defer publisher.Close()

	verifier, err := middleware.NewTokenVerifier(cfg.Auth)
	if err != nil {
		logger.Fatalf("Failed to initialize token verifier: %v", err)
	}

	workService := workservice.NewWorkService(db, provider, publisher, workservice.OptionsFromConfig(cfg))
	r := router.NewRouter(cfg, db, workService, verifier)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r.GetEngine(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	if cfg.Server.EnableHTTPS {
		srv.TLSConfig = &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		}
		if cfg.Server.EnableHTTP2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				logger.Fatalf("Failed to configure HTTP/2: %v", err)
			}
		}
	} else if cfg.Server.EnableHTTP2 {
		// 明文部署在反向代理之后时使用h2c
		srv.Handler = h2c.NewHandler(r.GetEngine(), &http2.Server{})
	}

	go func() {
		logger.Infof("server listening on %s (https: %v, http2: %v)", srv.Addr, cfg.Server.EnableHTTPS, cfg.Server.EnableHTTP2)
		var err error
		if cfg.Server.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}
