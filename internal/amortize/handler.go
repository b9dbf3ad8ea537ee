package amortize

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes the loan calculator as a stateless endpoint.
type Handler struct {
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger, validator: validator.New()}
}

// MountRoutes registers calculator routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/calculator/amortization", h.solve)
}

type solveRequest struct {
	Solve     string `json:"solve" validate:"required,oneof=payment principal rate"`
	Principal string `json:"principal"`
	Residual  string `json:"residual"`
	Term      int    `json:"term" validate:"required,gt=0"`
	Payment   string `json:"payment"`
	Rate      string `json:"rate"`
}

type solveResponse struct {
	Solve string `json:"solve"`
	Value string `json:"value"`
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (h *Handler) solve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	problem := Problem{Term: req.Term}
	unknown, err := ParseUnknown(req.Solve)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	problem.Solve = unknown

	fields := []struct {
		raw  string
		into *decimal.Decimal
	}{
		{req.Principal, &problem.Principal},
		{req.Residual, &problem.Residual},
		{req.Payment, &problem.Payment},
		{req.Rate, &problem.Rate},
	}
	for _, f := range fields {
		value, err := parseAmount(f.raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amounts must be decimal numbers")
			return
		}
		*f.into = value
	}

	value, err := SolveFor(problem)
	switch {
	case errors.Is(err, ErrInvalidProblem):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Problem", err.Error())
		return
	case errors.Is(err, ErrPrincipalNotFound), errors.Is(err, ErrRateNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Not Solvable", err.Error())
		return
	case err != nil:
		h.logger.Error("solve amortization", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	places := int32(2)
	if problem.Solve == UnknownRate {
		places = 4
	}
	httpx.JSON(w, http.StatusOK, solveResponse{
		Solve: problem.Solve.String(),
		Value: value.StringFixed(places),
	})
}
