package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bookease/libs/httpx"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/model"
)

// OwnerHandler serves the dashboard API. Every route expects OwnerAuth in front of it.
type OwnerHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewOwnerHandler(svc *booking.Service, logger *slog.Logger) *OwnerHandler {
	return &OwnerHandler{svc: svc, logger: logger}
}

func (h *OwnerHandler) Register(mux *http.ServeMux, authn httpx.Middleware) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authn(fn))
	}
	route("GET /api/v1/business/profile", h.Profile)
	route("PUT /api/v1/business/profile", h.UpdateProfile)
	route("GET /api/v1/business/services", h.Services)
	route("POST /api/v1/business/services", h.CreateService)
	route("PUT /api/v1/business/services/{id}", h.UpdateService)
	route("DELETE /api/v1/business/services/{id}", h.DeactivateService)
	route("GET /api/v1/business/availability/rules", h.Rules)
	route("PUT /api/v1/business/availability/rules", h.PutRules)
	route("DELETE /api/v1/business/availability/rules/{weekday}", h.DeleteRule)
	route("GET /api/v1/business/availability/exceptions", h.Exceptions)
	route("PUT /api/v1/business/availability/exceptions", h.PutException)
	route("DELETE /api/v1/business/availability/exceptions/{date}", h.DeleteException)
	route("GET /api/v1/business/bookings", h.Bookings)
	route("POST /api/v1/business/bookings/{id}/cancel", h.Cancel)
	route("GET /api/v1/business/overview", h.Overview)
}

func (h *OwnerHandler) Profile(w http.ResponseWriter, r *http.Request) {
	biz, err := h.svc.Profile(r.Context(), businessIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBusinessView(biz, true))
}

type profileRequest struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
}

func (h *OwnerHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	biz, err := h.svc.UpdateProfile(r.Context(), businessIDFrom(r.Context()), booking.ProfileUpdate(req))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBusinessView(biz, true))
}

func (h *OwnerHandler) Services(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	biz, err := h.svc.Profile(ctx, businessIDFrom(ctx))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	services, err := h.svc.OwnerServices(ctx, biz.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]serviceView, 0, len(services))
	for _, s := range services {
		out = append(out, toServiceView(s, biz.Currency))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": out})
}

type serviceRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceMinor      int64  `json:"price_minor"`
	IsActive        *bool  `json:"is_active"`
}

func (req serviceRequest) input() booking.ServiceInput {
	return booking.ServiceInput{
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		PriceMinor:      req.PriceMinor,
		IsActive:        req.IsActive,
	}
}

func (h *OwnerHandler) writeService(w http.ResponseWriter, r *http.Request, status int, svc model.Service) {
	currency := ""
	if biz, err := h.svc.Profile(r.Context(), svc.BusinessID); err == nil {
		currency = biz.Currency
	}
	httpx.WriteJSON(w, status, toServiceView(svc, currency))
}

func (h *OwnerHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	svc, err := h.svc.CreateService(r.Context(), businessIDFrom(r.Context()), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.writeService(w, r, http.StatusCreated, svc)
}

func (h *OwnerHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	svc, err := h.svc.UpdateService(r.Context(), businessIDFrom(r.Context()), r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.writeService(w, r, http.StatusOK, svc)
}

func (h *OwnerHandler) DeactivateService(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeactivateService(r.Context(), businessIDFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OwnerHandler) Rules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.WeeklyRules(r.Context(), businessIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]ruleView, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleView(rule))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (h *OwnerHandler) PutRules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rules []ruleView `json:"rules"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	rules := make([]availability.WeeklyRule, 0, len(req.Rules))
	for _, v := range req.Rules {
		rules = append(rules, v.rule())
	}
	if err := h.svc.PutWeeklyRules(r.Context(), businessIDFrom(r.Context()), rules); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.Rules(w, r)
}

func (h *OwnerHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	weekday, err := strconv.Atoi(r.PathValue("weekday"))
	if err != nil || weekday < 0 || weekday > 6 {
		http.Error(w, "weekday must be 0-6", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteWeeklyRule(r.Context(), businessIDFrom(r.Context()), time.Weekday(weekday)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func optionalDate(r *http.Request, key string) (availability.Date, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return availability.Date{}, true
	}
	d, err := availability.ParseDate(raw)
	return d, err == nil
}

func (h *OwnerHandler) Exceptions(w http.ResponseWriter, r *http.Request) {
	from, okFrom := optionalDate(r, "from")
	to, okTo := optionalDate(r, "to")
	if !okFrom || !okTo {
		http.Error(w, "from and to must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	list, err := h.svc.Exceptions(r.Context(), businessIDFrom(r.Context()), from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]exceptionView, 0, len(list))
	for _, ex := range list {
		out = append(out, toExceptionView(ex))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"exceptions": out})
}

func (h *OwnerHandler) PutException(w http.ResponseWriter, r *http.Request) {
	var req exceptionView
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	day, err := availability.ParseDate(req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	saved, err := h.svc.PutException(r.Context(), businessIDFrom(r.Context()), model.DateException{
		Date:     day,
		IsClosed: req.IsClosed,
		Start:    req.StartTime,
		End:      req.EndTime,
		Breaks:   req.Breaks,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toExceptionView(saved))
}

func (h *OwnerHandler) DeleteException(w http.ResponseWriter, r *http.Request) {
	day, err := availability.ParseDate(r.PathValue("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteException(r.Context(), businessIDFrom(r.Context()), day); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OwnerHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.BookingFilter{Status: strings.TrimSpace(q.Get("status"))}
	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, key+" must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		*dst = t
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	list, err := h.svc.OwnerBookings(r.Context(), businessIDFrom(r.Context()), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]bookingView, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingView(b))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

func (h *OwnerHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
	}
	b, err := h.svc.Cancel(r.Context(), businessIDFrom(r.Context()), r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingView(b))
}

func (h *OwnerHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Overview(r.Context(), businessIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOverviewView(ov))
}
