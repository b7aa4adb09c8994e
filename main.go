package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"taeu.kr/portal/internal/api"
	"taeu.kr/portal/internal/config"
	"taeu.kr/portal/internal/credential"
	"taeu.kr/portal/internal/gateway"
	"taeu.kr/portal/internal/platform/database"
	"taeu.kr/portal/internal/platform/web"
	"taeu.kr/portal/internal/portal"
	"taeu.kr/portal/internal/router"
	"taeu.kr/portal/internal/session"
	"taeu.kr/portal/internal/status"
	"taeu.kr/portal/internal/storage/memory"
	"taeu.kr/portal/internal/storage/store"
)

var goEnv string = "development"

const (
	purgeInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	// 설정을 읽기 전까지는 콘솔 출력
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("[Main] Starting Server...")
	log.Info().Msgf("[Main] environment: %s", goEnv)

	config.SetConfig(goEnv)
	setupLogger(config.Conf.Log)

	db, err := database.NewDB()
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] Failed to open database")
	}
	defer db.Close()

	handler, sessions, err := newServer(db, config.Conf)
	if err != nil {
		log.Fatal().Err(err).Msg("[Main] Failed to create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessions.RunPurge(ctx, purgeInterval)

	srv := &http.Server{
		Addr:              ":" + config.Conf.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("[Main] Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("[Main] Graceful shutdown failed")
		}
	}()

	log.Info().Msgf("[Main] Server is running on port %s", config.Conf.Server.Port)
	log.Info().Msgf("[Main] API server: %s", config.Conf.API.BaseURL)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("[Main] Server failed")
	}
}

// newServer는 상태 확인과 포털 라우트를 등록한 핸들러를 만든다
func newServer(db *sql.DB, conf config.Config) (http.Handler, *session.Manager, error) {
	sessions := session.NewManager(store.NewStore(db), conf.Server.SessionTTL, conf.Server.CookieSecure)
	r := router.New(conf.Server.AppTitle, router.DefaultRoutes())

	apiConfig := gateway.Config{
		BaseURL:    conf.API.BaseURL,
		Timeout:    conf.API.Timeout,
		LoginRoute: router.RouteLogin,
	}

	portalHandler, err := portal.NewHandler(r, apiConfig)
	if err != nil {
		return nil, nil, err
	}

	// 상태 확인은 세션 없이 호출한다
	anonymous := api.NewClient(gateway.New(apiConfig, credential.NewStore(memory.New()), nil))
	statusHandler := status.NewHandler(db, anonymous, conf.Server.Port)

	portalMux := http.NewServeMux()
	portalHandler.RegisterRoutes(portalMux)

	mux := http.NewServeMux()
	statusHandler.RegisterRoutes(mux)
	mux.Handle("/", sessions.Middleware(portalMux))

	return web.Logger(mux), sessions, nil
}

func setupLogger(conf config.Log) {
	level, err := zerolog.ParseLevel(conf.Level)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", conf.Level).Msg("[Main] Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if conf.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
