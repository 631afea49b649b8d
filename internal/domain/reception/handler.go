package reception

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medsoft/medsoft/pkg/pagination"
)

type Handler struct {
	svc        *Service
	staticPage string
}

// NewHandler creates the reception HTTP handler. staticPage, when set, is
// where GET / redirects.
func NewHandler(svc *Service, staticPage string) *Handler {
	return &Handler{svc: svc, staticPage: staticPage}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)

	api := e.Group("/api")
	api.POST("/register", h.Register)
	api.GET("/patients", h.ListPatients)
	api.GET("/hl7/last", h.LastHL7)
	api.GET("/fhir/last", h.LastFHIR)
}

func (h *Handler) Root(c echo.Context) error {
	if h.staticPage != "" {
		return c.Redirect(http.StatusFound, h.staticPage)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":  true,
		"see": "/api/register, /api/patients, /api/hl7/last",
	})
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "service": "Reception"})
}

func (h *Handler) Register(c echo.Context) error {
	var in PatientInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
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
