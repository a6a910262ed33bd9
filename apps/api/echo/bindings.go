package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// intParam parses a path param as int, 404ing on garbage so probing ids like
// /v1/enrollments/abc never reach a handler.
func intParam(ctx echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return v, nil
}
