package fhir

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// FHIRContentType is the FHIR JSON content type with charset.
const FHIRContentType = "application/fhir+json; charset=utf-8"

// IsFHIRJSON reports whether a Content-Type header names a JSON body
// acceptable on FHIR endpoints. Parameters such as charset are ignored.
func IsFHIRJSON(contentType string) bool {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch strings.ToLower(mediaType) {
	case "application/fhir+json", "application/json":
		return true
	}
	return false
}

// RequireJSONBody rejects requests whose body is not FHIR JSON with
// 415 Unsupported Media Type and an OperationOutcome.
func RequireJSONBody() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !IsFHIRJSON(c.Request().Header.Get(echo.HeaderContentType)) {
				return WriteOutcome(c, http.StatusUnsupportedMediaType,
					ErrorOutcome("Unsupported Content-Type. Use application/fhir+json."))
			}
			return next(c)
		}
	}
}

// WriteOutcome writes an OperationOutcome with the FHIR content type.
func WriteOutcome(c echo.Context, status int, outcome *OperationOutcome) error {
	c.Response().Header().Set(echo.HeaderContentType, FHIRContentType)
	return c.JSON(status, outcome)
}
