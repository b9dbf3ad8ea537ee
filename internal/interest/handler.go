package interest

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes interest batch runs over HTTP. Proposals are a dry run;
// the run endpoint commits.
type Handler struct {
	logger *slog.Logger
	svc    *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, svc *Service) *Handler {
	return &Handler{logger: logger, svc: svc}
}

// MountRoutes registers interest routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/companies/{company}/interest/proposals", h.propose)
	r.Post("/companies/{company}/interest/runs", h.run)
}

type postingResponse struct {
	Loan     string `json:"loan"`
	Periods  int    `json:"periods"`
	Interest string `json:"interest"`
}

type skipResponse struct {
	Loan   string `json:"loan"`
	Reason string `json:"reason"`
}

type proposalResponse struct {
	Batch    string            `json:"batch"`
	Company  string            `json:"company"`
	RunDate  string            `json:"run_date"`
	Period   string            `json:"period"`
	Postings []postingResponse `json:"postings"`
	Skipped  []skipResponse    `json:"skipped"`
}

func toProposalResponse(p Proposal) proposalResponse {
	resp := proposalResponse{
		Batch:   p.Batch,
		Company: p.Company,
		RunDate: p.RunDate.Format("2006-01-02"),
		Period:  p.Period.String(),
	}
	for _, posting := range p.Postings {
		resp.Postings = append(resp.Postings, postingResponse{
			Loan:     posting.Loan.String(),
			Periods:  posting.Periods,
			Interest: posting.Interest.StringFixed(2),
		})
	}
	for _, skip := range p.Skipped {
		resp.Skipped = append(resp.Skipped, skipResponse{
			Loan:   skip.Loan.String(),
			Reason: string(skip.Reason),
		})
	}
	return resp
}

func runDateFromRequest(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request) {
	runDate, err := runDateFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return
	}
	company := chi.URLParam(r, "company")

	proposal, err := h.svc.Prepare(r.Context(), company, runDate)
	if err != nil {
		if errors.Is(err, shared.ErrPeriodNotPostable) {
			httpx.Problem(w, http.StatusConflict, "Period Not Postable", err.Error())
			return
		}
		h.logger.Error("prepare interest proposal", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProposalResponse(proposal))
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	runDate, err := runDateFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return
	}
	company := chi.URLParam(r, "company")

	proposal, decision, err := h.svc.Run(r.Context(), company, runDate)
	switch {
	case errors.Is(err, ErrNothingToPost):
		httpx.Problem(w, http.StatusConflict, "Nothing To Post", "every loan was skipped for this run date")
		return
	case errors.Is(err, shared.ErrPeriodNotPostable):
		httpx.Problem(w, http.StatusConflict, "Period Not Postable", err.Error())
		return
	case err != nil:
		h.logger.Error("run interest batch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if decision != shared.DecisionComplete {
		httpx.Problem(w, http.StatusConflict, "Run Not Confirmed", "the batch was not confirmed for commit")
		return
	}
	httpx.JSON(w, http.StatusCreated, toProposalResponse(proposal))
}
