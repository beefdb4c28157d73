package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ticketpesa/internal/models"
)

// TicketingAPIConfig represents ticketing backend client configuration
type TicketingAPIConfig struct {
	BaseURL     string
	APIKey      string
	Environment string // "sandbox" or "production"
	Timeout     time.Duration
}

// TicketingAPIClient talks to the ticketing backend that owns orders,
// transactions, push payments and promo codes. Everything behind this client
// is an external collaborator; this subsystem only orchestrates the calls.
type TicketingAPIClient struct {
	config  TicketingAPIConfig
	client  *http.Client
	baseURL string
}

// NewTicketingAPIClient creates a new ticketing backend client
func NewTicketingAPIClient(config TicketingAPIConfig) *TicketingAPIClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.ticketpesa.com/v1"
		if config.Environment == "sandbox" {
			baseURL = "https://sandbox.api.ticketpesa.com/v1"
		}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &TicketingAPIClient{
		config:  config,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// OrderItem represents one cart line in an order request
type OrderItem struct {
	TicketTypeID int `json:"ticket_type_id"`
	Quantity     int `json:"quantity"`
}

// CreateOrderRequest represents an order submission. One request covers every
// ticket type in the cart so the resulting transaction is atomic for the
// buyer: either all tickets are created awaiting payment, or none are.
type CreateOrderRequest struct {
	Reference     string      `json:"reference"`
	EventID       int         `json:"event_id"`
	Items         []OrderItem `json:"items"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone string      `json:"customer_phone"`
	PromoCode     string      `json:"promo_code,omitempty"`
}

// createOrderResponse represents the backend order creation response
type createOrderResponse struct {
	TransactionID string                `json:"transaction_id"`
	AmountDue     int                   `json:"amount_due"`
	Tickets       []models.IssuedTicket `json:"tickets"`
	Error         string                `json:"error,omitempty"`
	Message       string                `json:"message,omitempty"`
}

// initiatePushResponse represents the push initiation response
type initiatePushResponse struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

// transactionStatusResponse represents the transaction status response
type transactionStatusResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// PromoValidation is the backend's answer for a promo code lookup.
type PromoValidation struct {
	Valid              bool    `json:"valid"`
	DiscountPercentage float64 `json:"discount_percentage"`
}

// promoValidationResponse represents the promo validation response
type promoValidationResponse struct {
	PromoValidation
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateOrder submits the whole cart as a single order and returns the
// payable transaction. A 4xx response becomes an OrderRejectedError whose
// message is surfaced verbatim to the buyer.
func (c *TicketingAPIClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Transaction, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create order request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send order request: %w", err)
	}
	defer resp.Body.Close()

	var orderResponse createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&orderResponse); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, &models.OrderRejectedError{
			StatusCode: resp.StatusCode,
			Message:    responseMessage(orderResponse.Error, orderResponse.Message),
		}
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("order submission failed with status %d: %s",
			resp.StatusCode, responseMessage(orderResponse.Error, orderResponse.Message))
	}

	if orderResponse.TransactionID == "" {
		return nil, fmt.Errorf("order response is missing a transaction id")
	}

	return &models.Transaction{
		ID:        orderResponse.TransactionID,
		Reference: req.Reference,
		AmountDue: orderResponse.AmountDue,
		Tickets:   orderResponse.Tickets,
	}, nil
}

// InitiatePush triggers the out-of-band mobile-money prompt for a
// transaction. Acceptance only means the prompt was dispatched to the
// buyer's phone; completion is reported asynchronously via status polling.
func (c *TicketingAPIClient) InitiatePush(ctx context.Context, transactionID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/transactions/%s/push", c.baseURL, url.PathEscape(transactionID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create push request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	var pushResponse initiatePushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResponse); err != nil {
		return false, fmt.Errorf("failed to decode push response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("push initiation failed with status %d: %s",
			resp.StatusCode, responseMessage(pushResponse.Error, pushResponse.Message))
	}

	return pushResponse.Accepted, nil
}

// GetTransactionStatus queries the authoritative payment status of a
// transaction.
func (c *TicketingAPIClient) GetTransactionStatus(ctx context.Context, transactionID string) (models.PaymentStatus, error) {
	endpoint := fmt.Sprintf("%s/transactions/%s/status", c.baseURL, url.PathEscape(transactionID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create status request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send status request: %w", err)
	}
	defer resp.Body.Close()

	var statusResponse transactionStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResponse); err != nil {
		return "", fmt.Errorf("failed to decode status response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status request failed with status %d: %s",
			resp.StatusCode, responseMessage(statusResponse.Error, statusResponse.Message))
	}

	status := models.PaymentStatus(statusResponse.Status)
	if !status.IsKnown() {
		return "", fmt.Errorf("backend reported unknown payment status %q", statusResponse.Status)
	}

	return status, nil
}

// ValidatePromoCode asks the backend whether a code is valid for an event
// and what discount percentage it carries. A not-found or malformed code is
// a normal negative answer, not an error.
func (c *TicketingAPIClient) ValidatePromoCode(ctx context.Context, code string, eventID int) (*PromoValidation, error) {
	endpoint := fmt.Sprintf("%s/events/%d/promo-codes/%s", c.baseURL, eventID, url.PathEscape(code))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create promo request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send promo request: %w", err)
	}
	defer resp.Body.Close()

	// Unknown codes come back as 404 with valid=false; treat any 4xx the
	// same way instead of failing the checkout.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &PromoValidation{Valid: false}, nil
	}

	var promoResponse promoValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&promoResponse); err != nil {
		return nil, fmt.Errorf("failed to decode promo response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("promo validation failed with status %d: %s",
			resp.StatusCode, responseMessage(promoResponse.Error, promoResponse.Message))
	}

	return &promoResponse.PromoValidation, nil
}

// TestConnection verifies the backend is reachable with the configured key.
func (c *TicketingAPIClient) TestConnection(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ticketing backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ticketing backend health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// setHeaders applies the standard headers for backend requests
func (c *TicketingAPIClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// responseMessage picks the most useful message out of an error envelope
func responseMessage(errField, message string) string {
	if errField != "" {
		return errField
	}
	if message != "" {
		return message
	}
	return "unknown error"
}
