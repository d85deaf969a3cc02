package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mocksh/mocksh-backend/internal/exam"
	"github.com/mocksh/mocksh-backend/internal/middleware"
	"github.com/mocksh/mocksh-backend/internal/service"
	ws "github.com/mocksh/mocksh-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the authoritative countdown to connected clients.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/exam/stream?token=...
// Pushes a tick event once per second while a test is in progress. When the
// session reaches Submitted (by user action or by the countdown expiring) a
// final submitted event is sent and the connection closes.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	userID := claims.UserID
	wsLog := h.log.With().Str("user_id", userID).Logger()

	snapshot := h.sessionService.Snapshot(context.Background(), userID)
	if snapshot.State != exam.StateInProgress {
		ws.WriteError(conn, "no test in progress")
		return
	}

	wsLog.Info().Msg("Countdown stream connected")

	// Reader pump: answers pings and detects the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}

			switch msg.Action {
			case ws.ActionPing:
				ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			default:
				wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
				ws.WriteError(conn, "unknown action: "+string(msg.Action))
			}
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snapshot = h.sessionService.Snapshot(context.Background(), userID)

			if snapshot.State == exam.StateSubmitted && snapshot.Result != nil {
				ws.WriteTyped(conn, ws.SubmittedResponse{
					Event:            ws.EventSubmitted,
					Score:            snapshot.Result.Score,
					TotalQuestions:   snapshot.Result.TotalQuestions,
					TimeTakenSeconds: snapshot.Result.TimeTakenSeconds,
				})
				wsLog.Info().Msg("Session submitted, closing stream")
				return
			}
			if snapshot.State != exam.StateInProgress {
				wsLog.Info().Msg("Session gone, closing stream")
				return
			}

			if err := ws.WriteTyped(conn, ws.TickResponse{
				Event:         ws.EventTick,
				TimeRemaining: snapshot.TimeRemaining,
				AnsweredCount: snapshot.AnsweredCount,
			}); err != nil {
				wsLog.Debug().Err(err).Msg("Tick write failed")
				return
			}
		}
	}
}
