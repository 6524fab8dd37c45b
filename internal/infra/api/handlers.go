package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/infra/logging"
	"prepvio-subscription/internal/usecase"
)

func userID(r *http.Request) string {
	p, _ := principalFrom(r.Context())
	return p.UserID
}

// GET /api/payment/plans
func (s *Server) plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "plans": s.catalog.All()})
}

// POST /api/payment/create-order
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	intent, err := s.payments.CreateOrder(r.Context(), userID(r), strings.TrimSpace(req.PlanID), req.PromoCode)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderView(intent))
}

// POST /api/payment/verify
func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var in usecase.VerifyInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ctx := logging.WithOrderID(r.Context(), in.OrderID)
	res, err := s.payments.VerifyAndRedeem(ctx, userID(r), in)
	if err != nil {
		writeError(w, r.WithContext(ctx), s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionView(res))
}

// POST /api/payment/webhook
func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, s.log, domain.Validation("Invalid request body"))
		return
	}
	res, err := s.payments.RedeemWebhook(r.Context(), body, r.Header.Get("X-Razorpay-Signature"))
	if err != nil {
		// unknown orders are acknowledged so the gateway stops redelivering
		if de, ok := domain.AsError(err); ok && de.Kind == domain.KindNotFound {
			l := logging.With(r.Context(), s.log)
			l.Warn().Err(err).Msg("webhook for unknown order")
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "redeemed": false})
			return
		}
		writeError(w, r, s.log, err)
		return
	}
	if res == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "redeemed": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "redeemed": !res.AlreadyRedeemed, "orderId": res.OrderID})
}

// POST /api/payment/consume-interview and /api/payment/use-interview
func (s *Server) consumeInterview(w http.ResponseWriter, r *http.Request) {
	remaining, err := s.subs.ConsumeInterviewCredit(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Interview credit used",
		"remaining": remaining,
	})
}

// GET /api/payment/interview-status
func (s *Server) interviewStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.subs.Status(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	attempts := make([]attemptView, 0, len(st.Attempts))
	for _, a := range st.Attempts {
		attempts = append(attempts, attemptView{ID: a.ID, PlanID: a.PlanID, StartedAt: a.StartedAt, RemainingAfter: a.RemainingAfter})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"subscription":   toSubscriptionView(st.Subscription),
		"expired":        st.Expired,
		"recentAttempts": attempts,
	})
}

// GET /api/payment/history
func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	list, err := s.payments.History(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]paymentView, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payments": out})
}

// GET /api/notifications
func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.notes.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]notificationView, 0, len(list))
	for _, n := range list {
		out = append(out, notificationView{ID: n.ID, Title: n.Title, Message: n.Message, Meta: n.Meta, CreatedAt: n.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notifications": out})
}

// POST /api/promo/validate
func (s *Server) validatePromo(w http.ResponseWriter, r *http.Request) {
	var req validatePromoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	q, err := s.payments.PreviewPromo(r.Context(), userID(r), strings.TrimSpace(req.PlanID), req.Code)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Promo code applied",
		"planId":  q.PlanID,
		"pricing": toPricingView(q.Pricing, q.Promo, q.FinalAmount),
		"promo":   toPromoView(q.Promo),
	})
}

// POST /api/promo/create
func (s *Server) createPromo(w http.ResponseWriter, r *http.Request) {
	var in usecase.CreatePromoInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	p, err := s.promos.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "promo": toPromoCodeView(p)})
}

// PATCH /api/promo/deactivate/{code}
func (s *Server) deactivatePromo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := s.promos.Deactivate(r.Context(), code); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Promo code deactivated"})
}

// GET /api/promo/stats/{code}
func (s *Server) promoStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.promos.Stats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": toPromoStatsView(st)})
}

// GET /api/promo/all
func (s *Server) listPromos(w http.ResponseWriter, r *http.Request) {
	list, err := s.promos.List(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]promoCodeView, 0, len(list))
	for _, p := range list {
		out = append(out, toPromoCodeView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "promos": out})
}

// GET /api/admin/stats
func (s *Server) adminStats(w http.ResponseWriter, r *http.Request) {
	week, month, year, err := s.stats.Revenue(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	byPlan, err := s.stats.ActiveByPlan(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"revenue": map[string]float64{
			"week":  week.InexactFloat64(),
			"month": month.InexactFloat64(),
			"year":  year.InexactFloat64(),
		},
		"activeByPlan": byPlan,
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Message: "Route not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Message: "Method not allowed"})
}
