// boardd is the board state daemon: it owns the Redis cache tier, the
// fallback chain and the per-patient event channels, and exposes them
// over HTTP and SSE.
package main

import (
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/medforce/boardstate/internal/admin"
	"github.com/medforce/boardstate/internal/config"
	"github.com/medforce/boardstate/internal/fallback"
	"github.com/medforce/boardstate/internal/httpapi"
	"github.com/medforce/boardstate/internal/store"
	"github.com/medforce/boardstate/internal/todo"
	"github.com/medforce/boardstate/internal/zones"
	"github.com/medforce/boardstate/pkg/board"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.SetFormatter(&log.JSONFormatter{})

	cfgPath := os.Getenv("BOARD_CONFIG")
	if cfgPath == "" {
		cfgPath = "board.yml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	client, err := board.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Retention())
	if err != nil {
		log.Fatalf("board client: %v", err)
	}
	defer client.Close()

	var sources []fallback.Source
	if cfg.Source.APIBaseURL != "" {
		sources = append(sources, fallback.NewAPISource(cfg.Source.APIBaseURL, cfg.APITimeout()))
	}
	if cfg.Source.StaticDir != "" {
		sources = append(sources, fallback.NewFileSource(cfg.Source.StaticDir))
	}
	resolver := fallback.NewResolver(log.StandardLogger(), sources...)

	positioner := zones.New(client)
	boardStore := store.New(client, resolver, positioner, cfg.Freshness(), log.StandardLogger())

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	httpapi.Register(e, &httpapi.API{
		Store: boardStore,
		Todos: todo.NewIndexer(boardStore),
		Admin: admin.New(boardStore, log.StandardLogger()),
		Log:   log.StandardLogger(),
	})

	log.WithFields(log.Fields{
		"addr":    cfg.Server.Addr,
		"redis":   cfg.Redis.Addr,
		"sources": len(sources),
	}).Info("boardd starting")
	e.Logger.Fatal(e.Start(cfg.Server.Addr))
}
