package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bookease/libs/httpx"
	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/booking"
)

// PublicHandler serves the unauthenticated booking pages.
type PublicHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewPublicHandler(svc *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger}
}

// Register mounts the public routes; limit wraps each of them, e.g. with a rate limiter.
func (h *PublicHandler) Register(mux *http.ServeMux, limit httpx.Middleware) {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, limit(fn))
	}
	route("GET /api/v1/public/services", h.Services)
	route("GET /api/v1/public/availability", h.Slots)
	route("GET /api/v1/public/availability/calendar", h.Calendar)
	route("POST /api/v1/public/bookings", h.Book)
	route("GET /api/v1/public/bookings/{id}", h.Booking)
	route("GET /api/v1/public/bookings/{id}/ics", h.CalendarFile)
}

func (h *PublicHandler) Services(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(r.URL.Query().Get("slug"))
	if slug == "" {
		http.Error(w, "slug is required", http.StatusBadRequest)
		return
	}
	biz, services, err := h.svc.PublicServices(r.Context(), slug)
	if isMissingTarget(err) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": []serviceView{}})
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]serviceView, 0, len(services))
	for _, s := range services {
		out = append(out, toServiceView(s, biz.Currency))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"business": toBusinessView(biz, false),
		"services": out,
	})
}

func requiredQuery(w http.ResponseWriter, r *http.Request, keys ...string) (map[string]string, bool) {
	q := r.URL.Query()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v := strings.TrimSpace(q.Get(k))
		if v == "" {
			http.Error(w, strings.Join(keys, ", ")+" are required", http.StatusBadRequest)
			return nil, false
		}
		out[k] = v
	}
	return out, true
}

func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q, ok := requiredQuery(w, r, "slug", "service_id", "date")
	if !ok {
		return
	}
	day, err := h.svc.DaySlots(r.Context(), q["slug"], q["service_id"], q["date"])
	if isMissingTarget(err) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"slots": []slotView{}})
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"date":     day.Date.String(),
		"timezone": day.Business.Timezone,
		"slots":    toSlotViews(day.Slots),
	})
}

func (h *PublicHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	q, ok := requiredQuery(w, r, "slug", "service_id", "month")
	if !ok {
		return
	}
	sum, err := h.svc.MonthSummary(r.Context(), q["slug"], q["service_id"], q["month"])
	if isMissingTarget(err) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"available_dates": []string{}, "closed_dates": []string{}})
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"available_dates": dateStrings(sum.Available),
		"closed_dates":    dateStrings(sum.Closed),
	})
}

type bookRequest struct {
	Slug      string `json:"slug"`
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	// StartAt is a slot's RFC 3339 start instant. It wins over date and start_time and is the
	// only way to pick the second run of a repeated wall time on a DST fall-back day.
	StartAt       string `json:"start_at"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Note          string `json:"note"`
}

func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	var startAt time.Time
	if raw := strings.TrimSpace(req.StartAt); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "start_at must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		startAt = t
	}
	conf, err := h.svc.Book(r.Context(), booking.BookRequest{
		Slug:           req.Slug,
		ServiceID:      req.ServiceID,
		Date:           req.Date,
		StartTime:      req.StartTime,
		StartAt:        startAt,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if conf.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	httpx.WriteJSON(w, http.StatusCreated, toConfirmationView(conf))
}

func (h *PublicHandler) Booking(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.PublicBooking(r.Context(), r.PathValue("id"), r.URL.Query().Get("slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPublicBookingView(details))
}

func (h *PublicHandler) CalendarFile(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.CalendarFile(r.Context(), r.PathValue("id"), r.URL.Query().Get("slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="booking.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}
