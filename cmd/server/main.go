package main // Entry point package

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/kidspro/kids-specialists/internal/auth"
	"github.com/kidspro/kids-specialists/internal/config"
	"github.com/kidspro/kids-specialists/internal/database"
	"github.com/kidspro/kids-specialists/internal/handler"
	"github.com/kidspro/kids-specialists/internal/middleware"
	"github.com/kidspro/kids-specialists/internal/queue"
	"github.com/kidspro/kids-specialists/internal/repository"
	"github.com/kidspro/kids-specialists/internal/router"
	"github.com/kidspro/kids-specialists/internal/service"
	"github.com/kidspro/kids-specialists/internal/storage"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	sessions := repository.NewTokenRepo(db)
	specialists := repository.NewSpecialistRepo(db)
	categories := repository.NewCategoryRepo(db)

	issuer := auth.NewIssuer(auth.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  time.Duration(cfg.AccessTTLMin) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
	})
	hasher := auth.Hasher{Cost: cfg.BcryptCost}
	verifier := service.NewMailboxCheck(cfg.EmailCheckKey, cfg.EmailCheckBaseURL, cfg.EmailCheckTimeout)
	files := &storage.DiskStore{Root: cfg.UploadDir}
	events := &service.AMQPPublisher{}

	authHandler := handler.NewAuthHandler(users, sessions, specialists,
		issuer, hasher, verifier, cfg.SessionLimit)
	specialistHandler := handler.NewSpecialistHandler(specialists, users, files, events)
	categoryHandler := handler.NewCategoryHandler(categories)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Static("/uploads", cfg.UploadDir+"/uploads")

	deps := router.Deps{
		Auth:        authHandler,
		Specialists: specialistHandler,
		Categories:  categoryHandler,
		Issuer:      issuer,
		Users:       users,
	}

	// Redis is optional: without it the limiter and cache are simply not
	// installed and every request goes straight to the handlers.
	if rdb := config.NewRedisClient(); rdb != nil {
		deps.RateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
		deps.Cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	} else {
		log.Println("redis unavailable, rate limiting and response cache disabled")
	}

	router.Register(e, deps)

	// Background consumer that records publish events to the activity log.
	go queue.StartActivityConsumer()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
