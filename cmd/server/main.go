// cmd/server/main.go
package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/luizvincenzi/criadores-slots/internal/cache"
	"github.com/luizvincenzi/criadores-slots/internal/config"
	"github.com/luizvincenzi/criadores-slots/internal/db"
	"github.com/luizvincenzi/criadores-slots/internal/handler"
	"github.com/luizvincenzi/criadores-slots/internal/lock"
	"github.com/luizvincenzi/criadores-slots/internal/queue"
	"github.com/luizvincenzi/criadores-slots/internal/repository"
	"github.com/luizvincenzi/criadores-slots/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config: ", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("init logger: ", err)
	}
	defer logger.Sync()

	conn, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer conn.Close()

	provider := repository.NewProvider(conn)
	campaignRepo := &repository.CampaignRepository{}
	slotRepo := &repository.SlotRepository{}
	auditRepo := &repository.AuditRepository{}
	creatorRepo := &repository.CreatorRepository{}

	slotCache := cache.New(cfg.CacheSizeMB, cfg.SlotViewTTL)
	slotCache.SetTTL(cache.EntityRoster, cfg.RosterTTL)

	var q queue.Queue
	if cfg.AMQPURL != "" {
		publisher, err := queue.NewAMQPPublisher(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal("connect amqp", zap.Error(err))
		}
		defer publisher.Close()
		q = publisher
	} else {
		logger.Warn("AMQP_URL not set, slot events stay in-process")
		q = queue.NewInMemoryQueue(logger)
	}

	allocator := &service.AllocationService{
		Provider:  provider,
		Campaigns: campaignRepo,
		Slots:     slotRepo,
		Audit:     auditRepo,
		Creators:  creatorRepo,
		Locks:     lock.NewKeyLock(),
		Queue:     q,
		Cache:     slotCache,
		Logger:    logger,
	}

	views := &service.SlotViewBuilder{
		Provider:  provider,
		Campaigns: campaignRepo,
		Slots:     slotRepo,
		Creators:  creatorRepo,
		Cache:     slotCache,
		Logger:    logger,
	}

	slotHandler := &handler.SlotHandler{
		Allocator: allocator,
		Views:     views,
		Audit:     auditRepo,
		Provider:  provider,
		Logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Campaign creator slot routes
	r.Post("/campaign-creators/add", slotHandler.AddCreator)
	r.Delete("/campaign-creators/delete-line", slotHandler.DeleteLine)
	r.Post("/campaign-creators/swap", slotHandler.SwapCreators)
	r.Get("/creator-slots", slotHandler.GetCreatorSlots)
	r.Get("/campaign-creators/audit", slotHandler.ListAudit)

	logger.Info("server running", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
