package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"teamquiz-service/internal/app"
)

const tokenKey = "token"

// NewRouter wires the REST API and the observer websocket.
func NewRouter(service *app.ScoringService, ws *WSHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if ws != nil {
		r.GET("/ws", gin.WrapF(ws.ServeWS))
	}

	h := &handler{service: service}
	api := r.Group("/api", bearerToken())
	api.GET("/teams", h.listTeams)
	api.POST("/rooms", h.createRoom)

	room := api.Group("/rooms/:room")
	room.PATCH("", h.updateRoom)
	room.DELETE("", h.deleteRoom)
	room.POST("/join", h.joinRoom)
	room.GET("/scores", h.scoreboard)

	room.POST("/answers", h.submitAnswer)
	room.GET("/answers", h.listAnswers)
	room.GET("/answers/my", h.myAnswers)
	room.PATCH("/answers/:id", h.setCorrectness)
	room.PUT("/answers/:id", h.manualEdit)
	room.DELETE("/answers/:id", h.deleteAnswer)

	room.GET("/questions/:n", h.getQuestion)
	room.PATCH("/questions/:n", h.updateQuestion)
	room.POST("/questions/:n/start", h.startQuestion)
	room.POST("/questions/:n/start-team", h.startTeam)
	room.POST("/questions/:n/apply-points", h.applyPoints)
	room.POST("/questions/:n/finalize", h.finalize)
	return r
}

// bearerToken stores the Authorization bearer token, if any. Authorization
// itself is decided by the service.
func bearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			c.Set(tokenKey, strings.TrimSpace(parts[1]))
		}
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	return c.GetString(tokenKey)
}
