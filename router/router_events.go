package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/router/middleware"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPingPeriod = 30 * time.Second
)

func newEventsUpgrader() websocket.Upgrader {
	origins := config.Get().AllowedOrigins
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			if o == "" || len(origins) == 0 {
				return true
			}
			for _, origin := range origins {
				if origin == "*" || origin == o {
					return true
				}
			}
			return false
		},
	}
}

// getModuleEvents streams registry events over a websocket. Browsers cannot
// set headers on websocket requests, so the session token is passed in the
// query string.
// @Summary Registry event stream
// @Tags Modules
// @Param token query string true "Session token"
// @Success 101
// @Failure 401 {object} ErrorResponse
// @Router /api/modules/events [get]
func getModuleEvents(c *gin.Context) {
	if _, _, err := middleware.Authenticate(c, c.Query("token")); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "You are not authorized to access this endpoint."})
		return
	}

	upgrader := newEventsUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		middleware.ExtractLogger(c).WithField("error", err).Debug("failed to upgrade events websocket")
		return
	}
	defer conn.Close()

	bus := middleware.ExtractServices(c).Events
	ch, unsubscribe := bus.Subscribe(32)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends anything meaningful; reading is only needed to
	// notice when it goes away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		case e, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
