package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/imkonsowa/restaurant-qa/bootstrap"
	"github.com/imkonsowa/restaurant-qa/config"
	"github.com/joho/godotenv"
)

type Agent struct {
	config   *config.Config
	handler  *Handler
	upgrader websocket.Upgrader
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	cfg := config.LoadConfig()
	cfg.Log.Setup()

	engine, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	agent := NewAgent(cfg, NewHandler(engine.Router))

	if err := agent.Run(); err != nil {
		log.Fatalf("failed to run the agent: %v", err)
	}
}

func NewAgent(cfg *config.Config, handler *Handler) *Agent {
	return &Agent{
		config:  cfg,
		handler: handler,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(cfg.Server.AllowedOrigins),
		},
	}
}

func (a *Agent) Run() error {
	return a.Routes().Run(a.config.Server.Address())
}

func (a *Agent) Routes() *gin.Engine {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	if allowAll(a.config.Server.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = a.config.Server.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(ctx *gin.Context) {
		catalog := a.handler.router.Catalog()
		ctx.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"restaurants": len(catalog.Restaurants()),
			"menu_items":  catalog.ItemCount(),
		})
	})

	r.GET("/ask", func(ctx *gin.Context) {
		q, _ := ctx.GetQuery("q")
		a.ask(ctx, AskRequest{Question: q})
	})

	r.POST("/ask", func(ctx *gin.Context) {
		var req AskRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		a.ask(ctx, req)
	})

	r.GET("/search", a.search)

	r.GET("/restaurants", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, a.handler.ListRestaurants())
	})

	r.GET("/restaurants/:name", func(ctx *gin.Context) {
		restaurant, ok := a.handler.GetRestaurant(ctx.Param("name"))
		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "restaurant not found"})
			return
		}
		ctx.JSON(http.StatusOK, restaurant)
	})

	return r
}

func (a *Agent) ask(ctx *gin.Context, req AskRequest) {
	if err := req.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := uuid.NewString()
	response, err := a.handler.Ask(ctx.Request.Context(), requestID, req.Question)
	if err != nil {
		slog.Error("failed to answer question", "request_id", requestID, "error", err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "request_id": requestID})
		return
	}

	ctx.JSON(http.StatusOK, response)
}

func (a *Agent) search(ctx *gin.Context) {
	req := AskRequest{Question: ctx.Query("input")}
	if err := req.Validate(); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c, err := a.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}
	defer c.Close()

	requestID := uuid.NewString()
	resultChan := a.handler.SearchByUserQuery(ctx.Request.Context(), requestID, req.Question)

	for result := range resultChan {
		if errors.Is(result.Err, io.EOF) {
			break
		}
		if result.Err != nil {
			slog.Error("search failed", "request_id", requestID, "error", result.Err)
			result.Msg = WebSocketsMessage{Type: MessageError, RequestID: requestID, Data: result.Err.Error()}
		}

		if err := c.WriteJSON(result.Msg); err != nil {
			slog.Error("failed to write to ws connection", "error", err)
			return
		}
	}

	closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.WriteMessage(websocket.CloseMessage, closing); err != nil {
		slog.Debug("failed to close ws connection", "error", err)
	}
}

func allowAll(origins []string) bool {
	return len(origins) == 0 || slices.Contains(origins, "*")
}

func checkOrigin(origins []string) func(r *http.Request) bool {
	if allowAll(origins) {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
