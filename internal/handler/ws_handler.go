/*
Package handler provides the HTTP surface of the matching server.

This file upgrades connections to WebSocket and hands them to a session. All
protocol traffic after the upgrade lives in the match package.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"mediamatch/internal/app/match"
	"mediamatch/internal/pkg/limiter"
	"mediamatch/internal/pkg/logx"
	"mediamatch/internal/pkg/resp"
)

// HandleWebSocket returns the upgrade handler. The session runs on this
// request's goroutine until the connection ends.
func HandleWebSocket(upgrader websocket.Upgrader, connLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !connLimiter.Allow(r.RemoteAddr) {
			logx.Warn("WebSocket connection rejected: rate limit exceeded")
			resp.RespondError(w, r, http.StatusTooManyRequests, "Too many connections. Please try again later.")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		session := match.NewSession(conn, deps.Registry, deps.Identity, deps.Translator, match.SessionConfig{
			RequiresConfiguration: deps.Config.RequiresConfiguration(),
			RequirePlexTvLogin:    deps.Config.RequirePlexTvLogin,
		})

		deps.Sessions.add(session)
		defer deps.Sessions.remove(session)

		session.Run()
	}
}
