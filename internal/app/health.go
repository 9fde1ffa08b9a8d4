package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/adlink-service/internal/config"
	"github.com/prperemyshlev/adlink-service/internal/domain"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker reports storage reachability and which platforms can be linked
type HealthChecker struct {
	checks    map[string]func(context.Context) error
	platforms config.PlatformsConfig
}

func NewHealthChecker(infra Infrastructure, platforms config.PlatformsConfig) *HealthChecker {
	return &HealthChecker{
		checks: map[string]func(context.Context) error{
			"postgres": infra.Postgres().Ping,
			"redis":    infra.Redis().Ping,
		},
		platforms: platforms,
	}
}

// check runs every dependency probe concurrently and returns the failures by name
func (h *HealthChecker) check(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures = make(map[string]string)
	)
	for name, probe := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := probe(ctx); err != nil {
				mu.Lock()
				failures[name] = err.Error()
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return failures
}

func (h *HealthChecker) configuredPlatforms() []domain.Platform {
	missing := make(map[domain.Platform]bool)
	for _, cfgErr := range h.platforms.Unconfigured() {
		missing[cfgErr.Platform] = true
	}

	configured := make([]domain.Platform, 0, len(domain.Platforms()))
	for _, p := range domain.Platforms() {
		if !missing[p] {
			configured = append(configured, p)
		}
	}
	return configured
}

func (h *HealthChecker) Handler(c *gin.Context) {
	checks := make(map[string]string, len(h.checks))
	for name := range h.checks {
		checks[name] = "pass"
	}

	failures := h.check(c.Request.Context())
	for name, msg := range failures {
		checks[name] = "fail: " + msg
	}

	status, code := "pass", http.StatusOK
	if len(failures) > 0 {
		status, code = "fail", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"platforms": h.configuredPlatforms(),
	})
}
