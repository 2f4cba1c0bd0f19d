package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/leaselens/internal/services"
)

// WebhookHandler receives purchase notifications from the payment stores.
// Deliveries are not de-duplicated; a replay credits again.
type WebhookHandler struct {
	payments         *services.PaymentService
	gumroadSellerID  string
	revenueCatSecret string
	log              *zap.SugaredLogger
}

func NewWebhookHandler(payments *services.PaymentService, gumroadSellerID, revenueCatSecret string, log *zap.SugaredLogger) *WebhookHandler {
	return &WebhookHandler{
		payments:         payments,
		gumroadSellerID:  gumroadSellerID,
		revenueCatSecret: revenueCatSecret,
		log:              log,
	}
}

// gumroadUserFields lists where a buyer's user id may appear, in priority order.
var gumroadUserFields = []string{"custom_fields[user_id]", "user_id", "UserID", "custom_fields[UserID]"}

// Gumroad handles form-encoded sale pings. An unconfigured seller id rejects everything.
func (h *WebhookHandler) Gumroad(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Webhook Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	sellerID := r.PostForm.Get("seller_id")
	if h.gumroadSellerID == "" || sellerID != h.gumroadSellerID {
		h.log.Warnw("Gumroad: unauthorized webhook", "seller_id", sellerID)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	saleID := r.PostForm.Get("sale_id")
	productID := r.PostForm.Get("product_id")
	var userID string
	for _, f := range gumroadUserFields {
		if v := r.PostForm.Get(f); v != "" {
			userID = v
			break
		}
	}

	if saleID != "" && userID != "" {
		if _, err := h.payments.TopUp(r.Context(), userID, productID); err != nil {
			h.log.Errorw("Gumroad: credit failed", "user_id", userID, "sale_id", saleID, "error", err)
		}
	} else {
		h.log.Infow("Gumroad: ignored ping", "sale_id", saleID, "has_user", userID != "")
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type revenueCatPayload struct {
	Event *struct {
		Type      string `json:"type"`
		AppUserID string `json:"app_user_id"`
		ProductID string `json:"product_id"`
	} `json:"event"`
}

var revenueCatPurchaseTypes = map[string]bool{
	"INITIAL_PURCHASE":      true,
	"NON_RENEWING_PURCHASE": true,
	"RENEWAL":               true,
}

// RevenueCat handles JSON purchase events. The store retries anything that is
// not a 200, so processing errors are logged and still acknowledged.
func (h *WebhookHandler) RevenueCat(w http.ResponseWriter, r *http.Request) {
	if h.revenueCatSecret != "" && r.Header.Get("Authorization") != h.revenueCatSecret {
		h.log.Warnw("RevenueCat: unauthorized webhook")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body revenueCatPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Event == nil {
		h.log.Warnw("RevenueCat: empty or malformed body", "error", err)
		writeError(w, http.StatusBadRequest, "No event provided")
		return
	}
	ev := body.Event

	if !revenueCatPurchaseTypes[ev.Type] {
		h.log.Infow("RevenueCat: ignored event", "type", ev.Type, "product_id", ev.ProductID)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	_, known, err := h.payments.TopUpKnown(r.Context(), ev.AppUserID, ev.ProductID)
	switch {
	case err != nil:
		h.log.Errorw("RevenueCat: credit failed", "user_id", ev.AppUserID, "product_id", ev.ProductID, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"error": "Internal processing error"})
		return
	case !known:
		h.log.Infow("RevenueCat: ignored product", "type", ev.Type, "product_id", ev.ProductID)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
