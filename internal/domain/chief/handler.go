package chief

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medsoft/medsoft/internal/platform/fhir"
	"github.com/medsoft/medsoft/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)

	api := e.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/register-patient", h.RegisterPatient)
	api.DELETE("/patient/:id", h.DeletePatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/hl7/last", h.LastHL7)
	api.GET("/fhir/last", h.LastFHIR)

	e.POST("/fhir/Patient", h.CreateFHIRPatient, fhir.RequireJSONBody())
}

func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"service": "Hospital Chief Server",
		"endpoints": []string{
			"POST /api/register-patient",
			"POST /fhir/Patient",
			"DELETE /api/patient/:id",
			"GET /api/patients",
			"GET /api/hl7/last",
			"GET /api/fhir/last",
			"GET /ws/chief",
			"GET /health",
			"GET /metrics",
		},
	})
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "service": "Chief"})
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var reg Registration
	if err := c.Bind(&reg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.RegisterFromReception(c.Request().Context(), reg)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "success",
		"patient_id": p.ID,
	})
}

func (h *Handler) CreateFHIRPatient(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fhir.WriteOutcome(c, http.StatusBadRequest, fhir.InvalidOutcome("unable to read request body"))
	}

	id, err := h.svc.IngestFHIR(c.Request().Context(), raw)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return fhir.WriteOutcome(c, http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
		}
		return fhir.WriteOutcome(c, http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "created", "id": id})
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "deleted_id": id})
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c, "limit", h.svc.opts.ListLimit)
	patients, err := h.svc.ListRecent(c.Request().Context(), pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) LastHL7(c echo.Context) error {
	return h.lastMessages(c, KindHL7)
}

func (h *Handler) LastFHIR(c echo.Context) error {
	return h.lastMessages(c, KindFHIR)
}

func (h *Handler) lastMessages(c echo.Context, kind string) error {
	pg := pagination.FromContext(c, "n", defaultMessageCount)
	messages, err := h.svc.LastMessages(c.Request().Context(), kind, pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, messages)
}
