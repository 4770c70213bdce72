// conflux-agentd is the demo trade-log producer. It serves the two-endpoint
// surface confluxd replays against: POST /start-trade runs one simulated
// trading session, GET /logs returns the lines the last run produced.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"conflux/internal/agentsim"
	"conflux/internal/config"
	"conflux/internal/logger"
)

type logBuffer struct {
	mu      sync.RWMutex
	lines   []string
	running bool
}

func (b *logBuffer) snapshot() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *logBuffer) tryStart() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return false
	}
	b.running = true
	b.lines = nil
	return true
}

func (b *logBuffer) finish(lines []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = lines
	b.running = false
}

func main() {
	cfgPath := os.Getenv("CONFLUX_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)

	source := agentsim.NewBinanceSource(agentsim.BinanceConfig{
		RESTBaseURL: cfg.Agent.MarketRESTURL,
	})
	sim := agentsim.NewSimulator(agentsim.SimulatorConfig{
		Symbol:         cfg.Agent.Symbol,
		Interval:       cfg.Agent.Interval,
		History:        cfg.Agent.HistoryLimit,
		InitialBalance: cfg.Agent.InitialBalance,
	}, source, agentsim.NewCandleCache())

	buf := &logBuffer{}
	runSession := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		lines, err := sim.Run(ctx)
		if err != nil {
			logger.Warnf("simulated session failed: %v", err)
			if sc, scErr := agentsim.LoadScenario(cfg.Agent.ScenarioPath); scErr == nil {
				logger.Infof("falling back to scenario %q", sc.Name)
				lines = sc.Lines
			} else {
				buf.finish([]string{"Error: trading session failed."})
				return
			}
		}
		buf.finish(lines)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, buf.snapshot())
	})
	router.POST("/start-trade", func(c *gin.Context) {
		if !buf.tryStart() {
			c.JSON(http.StatusOK, gin.H{"status": "already running"})
			return
		}
		go runSession()
		c.JSON(http.StatusOK, gin.H{"status": "started"})
	})

	addr := cfg.Agent.HTTPAddr
	if addr == "" {
		addr = ":5000"
	}
	logger.Infof("agent listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("agent server: %v", err)
	}
}
