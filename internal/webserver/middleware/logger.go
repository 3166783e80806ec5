package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
)

// Logger returns a middleware that logs every HTTP request.
func Logger(l logger.Logger) echo.MiddlewareFunc {
	log := l.WithPrefix("[http]")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			method, _ := c.Get("handler_method").(string)
			if method == "" {
				method = "-"
			}

			req := c.Request()
			res := c.Response()
			log.Infof("%s %s %d %s %s %dB (%s)",
				req.Method,
				req.URL.Path,
				res.Status,
				method,
				c.RealIP(),
				res.Size,
				time.Since(start).Round(time.Microsecond),
			)
			return nil
		}
	}
}
