package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zqily/pcplanner/internal/api"
	"github.com/zqily/pcplanner/internal/config"
	"github.com/zqily/pcplanner/internal/imagecache"
	"github.com/zqily/pcplanner/internal/refresh"
	"github.com/zqily/pcplanner/internal/scraper"
	"github.com/zqily/pcplanner/internal/store"
	"github.com/zqily/pcplanner/internal/update"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.NewSQLite(cfg.DataDir, cfg.HistoryMaxEntries)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	cache, err := imagecache.New(cfg.CacheDir, cfg.ImageTimeout)
	if err != nil {
		log.Fatalf("Failed to create image cache: %v", err)
	}

	client := scraper.NewClient(scraper.ClientOptions{
		UserAgent:      cfg.ScraperUserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Timeout:        cfg.ScraperTimeout,
		Retries:        cfg.ScraperRetries,
		RetryDelay:     cfg.ScraperRetryDelay,
	})
	tokopedia := scraper.NewTokopediaScraper(client)

	orchestrator := refresh.NewOrchestrator(tokopedia, cache, cfg.ScraperWorkers)
	service := refresh.NewService(orchestrator, st)

	if cfg.RefreshInterval > 0 {
		service.StartAutoRefresh(cfg.RefreshInterval)
		defer service.StopAutoRefresh()
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.SetupRoutes(r, st, service, cache, update.NewChecker(), cfg.CORSOrigins)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: r,
	}

	// graceful shutdown coordination
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[Server] Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] ListenAndServe: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[Server] Shutdown signal received")

	// Let in-flight scrape tasks drain; they are bounded by request timeouts
	service.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Shutdown: %v", err)
	}

	log.Println("[Server] Graceful shutdown complete")
}
