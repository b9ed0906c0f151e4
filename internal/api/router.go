package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datallboy/gothumb/internal/api/controllers"
	"github.com/datallboy/gothumb/internal/app"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	thumbCtrl := &controllers.ThumbnailController{App: app}

	// Display slots: bind, release, read back the delivered image
	e.PUT("/slots/:slot", thumbCtrl.BindSlot)
	e.DELETE("/slots/:slot", thumbCtrl.ReleaseSlot)
	e.GET("/slots/:slot", thumbCtrl.GetSlot)

	e.POST("/preload", thumbCtrl.Preload)
	e.GET("/cache", thumbCtrl.PeekCache)
	e.DELETE("/cache", thumbCtrl.ClearCache)
	e.DELETE("/queue", thumbCtrl.ClearQueue)
	e.GET("/stats", thumbCtrl.Stats)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))
}
