package aging

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes aged-balance snapshots to the UI layer.
type Handler struct {
	logger *slog.Logger
	ager   *CachedAger
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, ager *CachedAger) *Handler {
	return &Handler{logger: logger, ager: ager}
}

// MountRoutes registers aging routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts/{company}/{chain}/{number}/aging", h.show)
}

type snapshotResponse struct {
	Account string   `json:"account"`
	Period  string   `json:"period"`
	Opening string   `json:"opening"`
	Closing string   `json:"closing"`
	Buckets []string `json:"buckets"`
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	account := ledger.AccountRef{
		Company: chi.URLParam(r, "company"),
		Chain:   chi.URLParam(r, "chain"),
		Number:  chi.URLParam(r, "number"),
	}

	period := shared.PeriodOf(time.Now())
	if raw := r.URL.Query().Get("period"); raw != "" {
		parsed, err := shared.ParsePeriod(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "period must be YYYYMM")
			return
		}
		period = parsed
	}

	snap, err := h.ager.Snapshot(r.Context(), account, period)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidAccount) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Account", err.Error())
			return
		}
		h.logger.Error("build aging snapshot", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := snapshotResponse{
		Account: snap.Account.String(),
		Period:  snap.Period.String(),
		Opening: snap.Opening.StringFixed(2),
		Closing: snap.Closing.StringFixed(2),
	}
	for _, b := range snap.Buckets {
		resp.Buckets = append(resp.Buckets, b.StringFixed(2))
	}
	httpx.JSON(w, http.StatusOK, resp)
}
