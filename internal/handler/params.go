package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func uintParam(c echo.Context, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || value == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(value), nil
}
