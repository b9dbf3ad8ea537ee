package allocation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LinkReader lists the committed links that reference a transaction.
type LinkReader interface {
	ListLinks(ctx context.Context, company, chain, number, ref string) ([]Link, error)
}

// Handler exposes open-item listing, automatic allocation and link history.
type Handler struct {
	logger  *slog.Logger
	service *Service
	links   LinkReader
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, links LinkReader) *Handler {
	return &Handler{logger: logger, service: service, links: links}
}

// MountRoutes registers allocation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts/{company}/{chain}/{number}/open-items", h.listItems)
	r.Get("/accounts/{company}/{chain}/{number}/links/{ref}", h.listLinks)
	r.Post("/accounts/{company}/{chain}/{number}/allocate", h.autoAllocate)
}

func accountFromRequest(r *http.Request) ledger.AccountRef {
	return ledger.AccountRef{
		Company: chi.URLParam(r, "company"),
		Chain:   chi.URLParam(r, "chain"),
		Number:  chi.URLParam(r, "number"),
	}
}

func periodFromRequest(r *http.Request) (shared.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return shared.PeriodOf(time.Now()), nil
	}
	return shared.ParsePeriod(raw)
}

type itemResponse struct {
	Ref       string `json:"ref"`
	Type      string `json:"type"`
	Date      string `json:"date"`
	Period    string `json:"period"`
	Amount    string `json:"amount"`
	Allocated string `json:"allocated"`
	Balance   string `json:"balance"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	account := accountFromRequest(r)
	period, err := periodFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "period must be YYYYMM")
		return
	}
	mode := ModeNormal
	if r.URL.Query().Get("mode") == "history" {
		mode = ModeHistory
	}

	session, err := h.service.Open(r.Context(), account, mode, period, time.Now())
	if err != nil {
		h.respondOpenError(w, err)
		return
	}

	items := session.Items()
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemResponse{
			Ref:       item.Ref,
			Type:      string(item.Type),
			Date:      item.Date.Format("2006-01-02"),
			Period:    item.Period.String(),
			Amount:    item.Amount.StringFixed(2),
			Allocated: item.Allocated.StringFixed(2),
			Balance:   item.Balance().StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) listLinks(w http.ResponseWriter, r *http.Request) {
	account := accountFromRequest(r)
	ref := chi.URLParam(r, "ref")

	links, err := h.links.ListLinks(r.Context(), account.Company, account.Chain, account.Number, ref)
	if err != nil {
		h.logger.Error("list allocation links", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]linkHistoryResponse, 0, len(links))
	for _, link := range links {
		out = append(out, linkHistoryResponse{
			CreditRef: link.CreditRef,
			DebitRef:  link.DebitRef,
			Amount:    link.Amount.StringFixed(2),
			Period:    link.Period.String(),
			Date:      link.Date.Format("2006-01-02"),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"links": out})
}

type linkHistoryResponse struct {
	CreditRef string `json:"credit_ref"`
	DebitRef  string `json:"debit_ref"`
	Amount    string `json:"amount"`
	Period    string `json:"period"`
	Date      string `json:"date"`
}

type allocateResponse struct {
	Session string         `json:"session"`
	Links   []linkResponse `json:"links"`
}

type linkResponse struct {
	CreditRef string `json:"credit_ref"`
	DebitRef  string `json:"debit_ref"`
	Amount    string `json:"amount"`
	Period    string `json:"period"`
}

func (h *Handler) autoAllocate(w http.ResponseWriter, r *http.Request) {
	account := accountFromRequest(r)
	period, err := periodFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "period must be YYYYMM")
		return
	}

	session, err := h.service.Open(r.Context(), account, ModeNormal, period, time.Now())
	if err != nil {
		h.respondOpenError(w, err)
		return
	}
	if err := session.AutoAllocate(); err != nil {
		h.logger.Error("auto allocate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	links, err := h.service.Decide(r.Context(), session, shared.DecisionComplete)
	if err != nil {
		if errors.Is(err, ErrSessionImbalanced) || errors.Is(err, ErrOverAllocation) {
			httpx.Problem(w, http.StatusConflict, "Allocation Rejected", err.Error())
			return
		}
		h.logger.Error("commit allocation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := allocateResponse{Session: session.ID().String()}
	for _, link := range links {
		resp.Links = append(resp.Links, linkResponse{
			CreditRef: link.CreditRef,
			DebitRef:  link.DebitRef,
			Amount:    link.Amount.StringFixed(2),
			Period:    link.Period.String(),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) respondOpenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidAccount), errors.Is(err, ledger.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Account Not Found", err.Error())
	default:
		h.logger.Error("open allocation session", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
