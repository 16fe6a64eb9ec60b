// Package handlers contains HTTP health checks and reusable middleware.
//
// # Health Checks
//
// CompositeHealthChecker runs named checks in parallel. A failed optional
// check marks the instance degraded but keeps it ready:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewPingCheck(conn))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    logger.Warn("health check failed", "message", status.Message)
//	}
//
// # Authentication
//
// TokenAuth verifies HS256 bearer tokens and puts the token subject into the
// request context; handlers read it with UserIDFromContext and pass it on as
// the acting user. AdminKeyAuth guards administrative routes with a key
// checked against a bcrypt hash.
//
// # Rate Limiting
//
// IPRateLimiter keeps a token bucket per client IP:
//
//	limiter := handlers.NewIPRateLimiter(10, 20)
//	go limiter.Cleanup(ctx, time.Minute)
//	h = limiter.Middleware(h)
package handlers
