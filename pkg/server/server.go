/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/ascensum/gen-image-factory/pkg/apiutils"
	commonconfig "github.com/ascensum/gen-image-factory/pkg/config"
	"github.com/ascensum/gen-image-factory/pkg/credentials"
	dbclient "github.com/ascensum/gen-image-factory/pkg/database/client"
	"github.com/ascensum/gen-image-factory/pkg/engine"
	commonerrors "github.com/ascensum/gen-image-factory/pkg/errors"
	"github.com/ascensum/gen-image-factory/pkg/handlers"
	commonklog "github.com/ascensum/gen-image-factory/pkg/klog"
	"github.com/ascensum/gen-image-factory/pkg/options"
	"github.com/ascensum/gen-image-factory/pkg/processor"
	"github.com/ascensum/gen-image-factory/pkg/providers"
	"github.com/ascensum/gen-image-factory/pkg/rerun"
	"github.com/ascensum/gen-image-factory/pkg/retry"
)

// Server is the image-generation runner process: one engine, one retry
// queue, one rerun coordinator, one HTTP surface.
type Server struct {
	opts       *options.Options
	httpServer *http.Server
	dbClient   *dbclient.Client
	jobEngine  *engine.Engine
	retryExec  *retry.Executor
	rerunCoord *rerun.Coordinator
	ctx        context.Context
	cancel     context.CancelFunc
	isInited   bool
}

// NewServer creates and returns a new Server instance.
func NewServer() (*Server, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	s := &Server{
		opts:   &options.Options{},
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.init(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// init performs the initial setup: flag parsing, logging, configuration,
// the database client and the component wiring.
func (s *Server) init() error {
	gin.SetMode(gin.ReleaseMode)
	var err error
	if err = s.opts.InitFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if err = s.initLogs(); err != nil {
		klog.ErrorS(err, "failed to init logs")
		return err
	}
	if err = s.initConfig(); err != nil {
		klog.ErrorS(err, "failed to init config")
		return err
	}
	if s.dbClient = dbclient.NewClient(); s.dbClient == nil {
		return commonerrors.NewInternalError("failed to connect to the database")
	}

	pipeline := &processor.Pipeline{Remover: providers.NewRemover()}
	s.jobEngine = engine.New(s.dbClient, providers.NewGenerator(), providers.NewVisionProvider(), pipeline)
	s.retryExec = retry.NewExecutor(s.dbClient, providers.NewVisionProvider(), pipeline)
	s.rerunCoord = rerun.New(s.jobEngine, s.dbClient)

	s.isInited = true
	return nil
}

// Start begins serving and blocks until a stop signal arrives.
func (s *Server) Start() {
	if !s.isInited {
		klog.Errorf("please init the runner first")
		return
	}
	gin.EnableJsonDecoderDisallowUnknownFields()

	klog.Infof("starting the runner")
	go func() {
		if err := s.startHttpServer(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "failed to start http-server")
			s.cancel()
		}
	}()

	<-s.ctx.Done()
	s.Stop()
}

// Stop gracefully shuts down the HTTP surface, the workers and the database
// client, then flushes logs.
func (s *Server) Stop() {
	klog.Info("shutting down http server...")
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			klog.ErrorS(err, "failed to shutdown httpserver")
		}
	}
	s.retryExec.Stop()
	if err := s.jobEngine.StopJob(); err != nil {
		klog.ErrorS(err, "failed to stop the running job")
	}
	s.dbClient.Close()
	klog.Info("the runner is stopped")
	klog.Flush()
}

// initLogs initializes the logging system with the configured log file path
// and size.
func (s *Server) initLogs() error {
	return commonklog.Init(s.opts.LogfilePath, s.opts.LogFileSize)
}

// initConfig loads the runner configuration from the specified config file.
func (s *Server) initConfig() error {
	fullPath, err := filepath.Abs(s.opts.Config)
	if err != nil {
		return err
	}
	if err = commonconfig.LoadConfig(fullPath); err != nil {
		return fmt.Errorf("config path: %s, err: %v", fullPath, err)
	}
	return nil
}

// startHttpServer wires the RPC adapter and starts listening.
func (s *Server) startHttpServer() error {
	if commonconfig.GetServerPort() <= 0 {
		return fmt.Errorf("the runner port is not defined")
	}

	e := gin.New()
	e.Use(apiutils.Logger(), gin.Recovery())
	e.NoRoute(func(c *gin.Context) {
		apiutils.AbortWithApiError(c, commonerrors.NewNotFoundWithMessage(c.Request.RequestURI+" not found"))
	})

	credentialManager := credentials.NewManager(s.dbClient)
	handler := handlers.NewHandler(s.jobEngine, s.retryExec, s.rerunCoord, credentialManager, s.dbClient)
	handlers.InitRouters(e, handler)

	addr := fmt.Sprintf(":%d", commonconfig.GetServerPort())
	s.httpServer = &http.Server{Addr: addr, Handler: e}
	klog.Infof("http-server listen port: %d", commonconfig.GetServerPort())
	return s.httpServer.ListenAndServe()
}
