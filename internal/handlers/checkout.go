package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"ticketpesa/internal/models"
	"ticketpesa/internal/services"
)

const (
	sessionName       = "ticketpesa_session"
	sessionCheckoutID = "checkout_id"
)

// CheckoutHandler exposes the checkout subsystem to the dashboard/UI layer.
type CheckoutHandler struct {
	checkoutService *services.CheckoutService
	promoService    *services.PromoService
	store           sessions.Store
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *services.CheckoutService, promoService *services.PromoService, store sessions.Store) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		promoService:    promoService,
		store:           store,
	}
}

// RegisterRoutes mounts the checkout routes on a chi router.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Route("/checkout", func(r chi.Router) {
		r.Post("/", h.BeginCheckout)
		r.Get("/", h.Mount)
		r.Delete("/", h.Teardown)
		r.Post("/promo", h.ApplyPromo)
		r.Post("/submit", h.Submit)
		r.Post("/confirm", h.ConfirmNow)
		r.Post("/restart", h.Restart)
		r.Get("/status", h.Status)
	})
}

// BeginCheckoutRequest is the payload sent when the buyer proceeds from an
// event page. A promo code present here arrived via URL attribution and is
// locked against manual edits.
type BeginCheckoutRequest struct {
	EventID     int                    `json:"event_id"`
	EventTitle  string                 `json:"event_title"`
	TicketTypes []models.TicketTypeRef `json:"ticket_types"`
	Cart        models.CartSelection   `json:"cart"`
	Attendee    models.AttendeeDetails `json:"attendee"`
	PromoCode   string                 `json:"promo_code,omitempty"`
}

// ApplyPromoRequest is the manual promo code entry payload. An empty code
// clears the current (unlocked) promo.
type ApplyPromoRequest struct {
	Code string `json:"code"`
}

// PricingLine is one cart line of the pricing breakdown.
type PricingLine struct {
	TicketTypeID int    `json:"ticket_type_id"`
	Name         string `json:"name"`
	UnitPrice    int    `json:"unit_price"`
	Quantity     int    `json:"quantity"`
	Subtotal     int    `json:"subtotal"`
}

// PricingBreakdown is the recomputed-on-every-read pricing for a session.
type PricingBreakdown struct {
	Lines          []PricingLine `json:"lines"`
	TicketCount    int           `json:"ticket_count"`
	Subtotal       int           `json:"subtotal"`
	DiscountAmount int           `json:"discount_amount"`
	Total          int           `json:"total"`
	CanSubmit      bool          `json:"can_submit"`
}

// CheckoutSummary is the full state returned to the UI.
type CheckoutSummary struct {
	Status  services.CheckoutStatus `json:"status"`
	Pricing *PricingBreakdown       `json:"pricing,omitempty"`
	Promo   *models.PromoCode       `json:"promo,omitempty"`
}

// BeginCheckout creates the checkout session when the buyer proceeds from
// an event page. Any existing checkout for this browser session is torn
// down first.
func (h *CheckoutHandler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	var req BeginCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.store.Get(r, sessionName)
	if err != nil {
		log.Printf("Begin checkout: failed to get session: %v", err)
	}

	// One live checkout per browser session.
	if previousID, ok := session.Values[sessionCheckoutID].(string); ok && previousID != "" {
		h.checkoutService.Teardown(previousID)
	}

	checkoutSession := &models.CheckoutSession{
		EventID:     req.EventID,
		EventTitle:  req.EventTitle,
		TicketTypes: req.TicketTypes,
		Cart:        req.Cart.Pruned(),
		Attendee:    req.Attendee,
	}

	// A URL-attributed referral code is validated as soon as the session
	// loads and locked so the buyer cannot silently override it.
	if req.PromoCode != "" {
		checkoutSession.Promo = h.promoService.Validate(r.Context(), req.PromoCode, req.EventID, models.PromoSourceURL)
	}

	checkout, err := h.checkoutService.Begin(checkoutSession)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	session.Values[sessionCheckoutID] = checkout.ID
	if err := session.Save(r, w); err != nil {
		log.Printf("Begin checkout: failed to save session: %v", err)
		h.checkoutService.Teardown(checkout.ID)
		writeJSONError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	writeJSON(w, http.StatusCreated, h.summary(checkout))
}

// Mount returns the full checkout state for a freshly loaded view.
func (h *CheckoutHandler) Mount(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.loadCheckout(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.summary(checkout))
}

// ApplyPromo validates and applies a manually entered promo code, or clears
// the current one when the code is empty.
func (h *CheckoutHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.loadCheckout(w, r)
	if !ok {
		return
	}

	var req ApplyPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Promo edits are a details-step operation; reject before spending a
	// backend call on a code that cannot be applied.
	if checkout.Status().Step != models.StepDetails {
		writeCheckoutError(w, models.ErrInvalidStep)
		return
	}
	session := checkout.Session()
	if session == nil {
		writeCheckoutError(w, models.ErrSessionNotFound)
		return
	}

	var promo *models.PromoCode
	if models.NormalizePromoCode(req.Code) != "" {
		promo = h.promoService.Validate(r.Context(), req.Code, session.EventID, models.PromoSourceManual)
	}

	if err := checkout.ApplyPromo(promo); err != nil {
		writeCheckoutError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.summary(checkout))
}

// Submit converts the cart into an order and starts the payment flow. The
// UI disables its submit control until this responds; the service-side
// guard backs that up against double-clicks.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.loadCheckout(w, r)
	if !ok {
		return
	}

	if _, err := checkout.Submit(r.Context()); err != nil {
		// The checkout keeps its own user-facing message; the status code
		// tells the UI which kind of failure this was.
		writeJSON(w, submitErrorStatus(err), h.summary(checkout))
		return
	}

	writeJSON(w, http.StatusOK, h.summary(checkout))
}

// ConfirmNow handles the "I have completed payment" action.
func (h *CheckoutHandler) ConfirmNow(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.loadCheckout(w, r)
	if !ok {
		return
	}

	if _, _, err := checkout.ConfirmNow(r.Context()); err != nil {
		writeCheckoutError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.summary(checkout))
}

// Restart returns the buyer to the details step after a terminal payment
// failure.
func (h *CheckoutHandler) Restart(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.loadCheckout(w, r)
	if !ok {
		return
	}

	if err := checkout.Restart(); err != nil {
		writeCheckoutError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.summary(checkout))
}

// Status returns the observable checkout state for polling UIs.
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.loadCheckout(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.summary(checkout))
}

// Teardown is the navigation-away path: the poll timer is released and the
// checkout forgotten.
func (h *CheckoutHandler) Teardown(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.Get(r, sessionName)
	if err != nil {
		log.Printf("Teardown: failed to get session: %v", err)
	}

	if checkoutID, ok := session.Values[sessionCheckoutID].(string); ok && checkoutID != "" {
		h.checkoutService.Teardown(checkoutID)
	}

	delete(session.Values, sessionCheckoutID)
	if err := session.Save(r, w); err != nil {
		log.Printf("Teardown: failed to save session: %v", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// loadCheckout resolves the live checkout for the request's browser
// session, writing the error response itself when there is none.
func (h *CheckoutHandler) loadCheckout(w http.ResponseWriter, r *http.Request) (*services.Checkout, bool) {
	session, err := h.store.Get(r, sessionName)
	if err != nil {
		log.Printf("Failed to get session: %v", err)
	}

	checkoutID, ok := session.Values[sessionCheckoutID].(string)
	if !ok || checkoutID == "" {
		writeJSONError(w, http.StatusNotFound, "no checkout in progress")
		return nil, false
	}

	checkout, err := h.checkoutService.Get(checkoutID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "no checkout in progress")
		return nil, false
	}

	return checkout, true
}

// summary assembles the response body: observable status plus, while the
// session is alive, the recomputed pricing breakdown and promo state.
func (h *CheckoutHandler) summary(checkout *services.Checkout) CheckoutSummary {
	summary := CheckoutSummary{Status: checkout.Status()}

	if session := checkout.Session(); session != nil {
		summary.Pricing = buildPricing(session)
		summary.Promo = session.Promo
	}

	return summary
}

// buildPricing recomputes the pricing breakdown from the session. Nothing
// is cached: every read reflects the cart and promo as they are now.
func buildPricing(session *models.CheckoutSession) *PricingBreakdown {
	subtotal := session.Subtotal()
	discount := session.DiscountAmount()
	count := models.TicketCount(session.Cart)

	breakdown := &PricingBreakdown{
		Lines:          []PricingLine{},
		TicketCount:    count,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          models.Total(subtotal, discount),
		CanSubmit:      count >= 1,
	}

	for _, tt := range session.TicketTypes {
		quantity := session.Cart[tt.ID]
		if quantity <= 0 {
			continue
		}
		breakdown.Lines = append(breakdown.Lines, PricingLine{
			TicketTypeID: tt.ID,
			Name:         tt.Name,
			UnitPrice:    tt.Price,
			Quantity:     quantity,
			Subtotal:     tt.Price * quantity,
		})
	}

	return breakdown
}

// submitErrorStatus maps a submission error to an HTTP status.
func submitErrorStatus(err error) int {
	switch {
	case models.IsOrderRejected(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrSubmitInProgress), errors.Is(err, models.ErrOrderAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, models.ErrPushNotAccepted):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		// Attendee/cart validation failures and transport errors both leave
		// the buyer on details to retry.
		return http.StatusBadRequest
	}
}

// writeCheckoutError maps service errors onto HTTP responses.
func writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrPromoCodeLocked):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidStep):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	default:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	}
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
