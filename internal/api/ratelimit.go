package api

import (
	"net"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/beatvault/beatvault-server/internal/errors"
)

// issueRateLimit is a huma middleware limiting license issuance per client IP.
// chi's RealIP middleware has already resolved proxy headers into RemoteAddr.
func (s *Server) issueRateLimit(ctx huma.Context, next func(huma.Context)) {
	if s.issueLimiter == nil {
		next(ctx)
		return
	}

	key := clientIP(ctx.RemoteAddr())
	if !s.issueLimiter.Allow(key) {
		s.logger.Warn("rate limit exceeded",
			"ip", key,
			"path", ctx.URL().Path,
		)
		_ = huma.WriteErr(s.api, ctx, 429, "too many license requests, try again later",
			domainerrors.RateLimited("too many license requests, try again later"))
		return
	}

	next(ctx)
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
