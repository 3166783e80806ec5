package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/playerdata/internal/webserver/weberror"
)

// NewHTTPErrorHandler is a middleware that formats rendered errors.
// Server errors are logged with their details and rendered with an opaque message.
func NewHTTPErrorHandler(log logger.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		var rendered error
		switch e := err.(type) {
		case *echo.HTTPError:
			msg, ok := e.Message.(string)
			if !ok {
				msg = http.StatusText(e.Code)
			}
			if e.Code >= http.StatusInternalServerError {
				msg = weberror.InternalServerError
			}
			rendered = weberror.New(e.Code, msg)
		default:
			rendered = weberror.FromError(err)
		}

		method, _ := c.Get("handler_method").(string)
		if weberror.StatusCode(rendered) >= http.StatusInternalServerError {
			log.Errorf("%s: %+v", method, err)
		} else {
			log.Debugf("%s: %s", method, err)
		}

		if c.Response().Committed {
			return
		}

		var err2 error
		if c.Request().Method == http.MethodHead {
			err2 = c.NoContent(weberror.StatusCode(rendered))
		} else {
			err2 = c.JSON(weberror.StatusCode(rendered), rendered)
		}
		if err2 != nil {
			log.Errorf("HTTPErrorHandler: %s", err2)
		}
	}
}
