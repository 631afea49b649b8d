package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// MaxLimit caps every list endpoint.
const MaxLimit = 100

// Params holds the size of a "newest first" listing.
type Params struct {
	Limit int
}

// FromContext reads the list size from query parameter param. A missing,
// malformed or non-positive value falls back to def; values above MaxLimit
// are clamped.
func FromContext(c echo.Context, param string, def int) Params {
	limit, err := strconv.Atoi(c.QueryParam(param))
	if err != nil || limit <= 0 {
		limit = def
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Limit: limit}
}
