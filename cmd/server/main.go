package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/agui/internal/agent"
	"github.com/xiaot623/agui/internal/api"
	"github.com/xiaot623/agui/internal/approval"
	"github.com/xiaot623/agui/internal/config"
	"github.com/xiaot623/agui/internal/domain"
	"github.com/xiaot623/agui/internal/ingress"
	"github.com/xiaot623/agui/internal/journal"
	"github.com/xiaot623/agui/internal/policy"
	"github.com/xiaot623/agui/internal/service"
	"github.com/xiaot623/agui/internal/state"
	"github.com/xiaot623/agui/internal/tools"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = config.Load()
	}

	log.Printf("Starting agui server...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Journal: %s", cfg.JournalDSN)
	log.Printf("Stream delay: %s", cfg.StreamDelay)

	j, err := journal.Open(cfg.JournalDSN)
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer j.Close()

	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	store := state.NewMemoryStore()
	queue := approval.NewQueue()
	registry := tools.NewBuiltinRegistry(time.Now)

	agents := agent.NewRegistry()
	agents.Register(domain.AgentTypeEcho, agent.NewEchoAgent())
	agents.Register(domain.AgentTypeTool, agent.NewToolAgent(registry))
	agents.Register(domain.AgentTypeState, agent.NewStateAgent(store))
	agents.Register(domain.AgentTypeHitl, agent.NewHitlAgent(store, queue, policyEngine))

	runner := service.NewRunner(agents, store, j, cfg.StreamDelay)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.NewHandler(runner).RegisterRoutes(e)
	ingress.NewServer(runner, cfg.WSWriteTimeout).RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server started on port %d", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown failed: %v", err)
	}
}
