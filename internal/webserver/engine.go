package webserver

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/playerdata/internal/database"
	"github.com/mdouchement/playerdata/internal/metrics"
	"github.com/mdouchement/playerdata/internal/storage"
	middlewarepkg "github.com/mdouchement/playerdata/internal/webserver/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Version  string
	Logger   logger.Logger
	Database database.Client
	Sprites  storage.Backend
	Audio    storage.Backend
	Observer metrics.Observer
	Gatherer prometheus.Gatherer
	// Timeout bounds every store call except the download streams.
	Timeout   time.Duration
	BodyLimit string
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl Controller) *echo.Echo {
	if ctrl.Observer == nil {
		ctrl.Observer = metrics.Nop()
	}
	if ctrl.Gatherer == nil {
		ctrl.Gatherer = prometheus.DefaultGatherer
	}
	if ctrl.BodyLimit == "" {
		ctrl.BodyLimit = "32M"
	}

	engine := echo.New()
	engine.HideBanner = true
	engine.HidePort = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			// Assets are already compressed.
			return strings.HasSuffix(c.Path(), "file/:id")
		},
	}))
	engine.Use(middlewarepkg.Logger(ctrl.Logger))
	engine.Use(middleware.BodyLimit(ctrl.BodyLimit))

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger)

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	//
	//
	//

	router := engine.Group("")

	// Generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})
	router.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(ctrl.Gatherer, promhttp.HandlerOpts{})))

	// Sprites
	//
	sprite := asset{
		logger:   ctrl.Logger,
		storage:  ctrl.Sprites,
		observer: ctrl.Observer,
		timeout:  ctrl.Timeout,
		kind:     "Sprite",
		idKey:    "sprite_id",
	}
	router.POST("/upload_sprite", sprite.Upload)
	router.GET("/spritefile/:id", sprite.Download)
	router.GET("/spritedata/:id", sprite.Show)
	router.GET("/all_sprites", sprite.List)
	router.DELETE("/delete_sprite/:id", sprite.Delete)

	// Audio
	//
	audio := asset{
		logger:   ctrl.Logger,
		storage:  ctrl.Audio,
		observer: ctrl.Observer,
		timeout:  ctrl.Timeout,
		kind:     "Audio",
		idKey:    "audio_id",
	}
	router.POST("/upload_audio", audio.Upload)
	router.GET("/audiofile/:id", audio.Download)
	router.GET("/audiodata/:id", audio.Show)
	router.GET("/all_audio", audio.List)
	router.DELETE("/delete_audio/:id", audio.Delete)

	// Scores
	//
	score := score{
		logger:  ctrl.Logger,
		db:      ctrl.Database,
		timeout: ctrl.Timeout,
	}
	router.POST("/player_score", score.Create)
	router.GET("/player_score/:name", score.Show)
	router.GET("/all_scores", score.List)
	router.PUT("/update_player_score/:name", score.Update)
	router.DELETE("/delete_player_score/:name", score.Delete)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}

func withTimeout(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(c.Request().Context())
	}
	return context.WithTimeout(c.Request().Context(), timeout)
}
