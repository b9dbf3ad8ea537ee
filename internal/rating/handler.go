package rating

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes rating refresh to the UI layer.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers rating routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/companies/{company}/ratings/refresh", h.refresh)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	company := chi.URLParam(r, "company")

	period := shared.PeriodOf(time.Now())
	if raw := r.URL.Query().Get("period"); raw != "" {
		parsed, err := shared.ParsePeriod(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "period must be YYYYMM")
			return
		}
		period = parsed
	}

	summary, err := h.service.RefreshCompany(r.Context(), company, period)
	if err != nil {
		h.logger.Error("refresh ratings", slog.String("company", company), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{
		"evaluated": summary.Evaluated,
		"updated":   summary.Updated,
	})
}
