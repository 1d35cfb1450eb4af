/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
upgrading the HTTP connection to WebSocket, checking the supplied identity, and initiating
the client lifecycle. A connection without a valid identity is closed with a distinct
close code so the client knows to re-authenticate out of band.
*/
package handler

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// closeWriteWait bounds the write of the unauthenticated close frame.
const closeWriteWait = 5 * time.Second

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		identity := identityFromRequest(r, deps.Config.JWTSecret)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		// The close code can only be delivered on an established socket, so
		// the identity verdict is applied after the upgrade.
		if !identity.Valid() {
			logx.Warn("WebSocket connection rejected: missing or invalid identity.", "ip", ip)

			closeMessage := websocket.FormatCloseMessage(
				chat.WsCloseCodeUnauthenticated,
				"Authentication required.",
			)
			conn.SetWriteDeadline(time.Now().Add(closeWriteWait))
			if err := conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
				logx.Warn("Failed to send unauthenticated close message.", "error", err)
			}
			conn.Close()
			return
		}

		client := chat.NewClient(deps.Hub, conn, identity, deps.Services, chat.Settings{
			HighWaterMark: deps.Config.HighWaterMark,
			LowWaterMark:  deps.Config.LowWaterMark,
		})

		go client.WritePump()

		client.Admit(r.Context())

		logx.Info("WebSocket connection established and client admitted", "client_id", identity.ID)

		client.ReadPump()
	}
}

// identityFromRequest resolves the authenticated identity for a connection
// attempt. It returns the zero Identity when no valid token accompanies the request.
func identityFromRequest(r *http.Request, secretKey string) user.Identity {
	tokenString := jwt.TokenFromRequest(r)
	if tokenString == "" {
		return user.Identity{}
	}

	payload, err := jwt.ParseToken(tokenString, secretKey)
	if err != nil {
		logx.Warn("WebSocket upgrade carried an invalid token.", "error", err)
		return user.Identity{}
	}

	return user.Identity{
		ID:       payload.ID,
		Nickname: payload.Nickname,
	}
}
