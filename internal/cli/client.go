package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// SubscriptionResponse — подписка из API.
type SubscriptionResponse struct {
	ID           string   `json:"id"`
	AccountID    string   `json:"account_id"`
	URL          string   `json:"url"`
	Events       []string `json:"events"`
	Active       bool     `json:"active"`
	MaskedSecret string   `json:"masked_secret,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// SecretResponse — подписка с открытым секретом (создание/ротация).
type SecretResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	Secret       string               `json:"secret"`
}

// DeliveryResponse — запись доставки из API.
type DeliveryResponse struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Status         string          `json:"status"`
	AttemptCount   int             `json:"attempt_count"`
	StatusCode     *int            `json:"status_code,omitempty"`
	ResponseBody   string          `json:"response_body,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	NextRetryAt    string          `json:"next_retry_at,omitempty"`
	DeliveredAt    string          `json:"delivered_at,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

// VerifyResponse — результат проверки подписи.
type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// PublishEventResponse — подтверждение приёма события.
type PublishEventResponse struct {
	Accepted bool   `json:"accepted"`
	Event    string `json:"event"`
}

// --- Request types ---

// CreateSubscriptionRequest — регистрация подписки.
type CreateSubscriptionRequest struct {
	AccountID string   `json:"account_id"`
	URL       string   `json:"url"`
	Events    []string `json:"events"`
}

// UpdateSubscriptionRequest — обновление подписки.
type UpdateSubscriptionRequest struct {
	URL    *string   `json:"url,omitempty"`
	Events *[]string `json:"events,omitempty"`
	Active *bool     `json:"active,omitempty"`
}

// VerifyRequest — проверка подписи.
type VerifyRequest struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
	Timestamp int64           `json:"timestamp"`
}

// TestRequest — тестовая доставка.
type TestRequest struct {
	Event string         `json:"event,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// PublishEventRequest — приём события.
type PublishEventRequest struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
	AccountID string         `json:"account_id,omitempty"`
}

// ListSubscriptionsOpts — параметры фильтрации подписок.
type ListSubscriptionsOpts struct {
	AccountID string
	Active    string // "", "true", "false"
	Limit     int
}

// ListDeliveriesOpts — параметры фильтрации доставок.
type ListDeliveriesOpts struct {
	SubscriptionID string
	Status         string
	EventType      string
	Limit          int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Courier API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Subscriptions ---

// ListSubscriptions возвращает подписки с фильтрацией.
func (c *Client) ListSubscriptions(opts ListSubscriptionsOpts) ([]SubscriptionResponse, error) {
	params := url.Values{}
	if opts.AccountID != "" {
		params.Set("account_id", opts.AccountID)
	}
	if opts.Active != "" {
		params.Set("active", opts.Active)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var subs []SubscriptionResponse
	err := c.list("/api/v1/subscriptions", params, &subs)
	return subs, err
}

// CreateSubscription регистрирует подписку. Ответ содержит секрет —
// он показывается один раз и больше не возвращается.
func (c *Client) CreateSubscription(req CreateSubscriptionRequest) (*SecretResponse, error) {
	var resp SecretResponse
	err := c.post("/api/v1/subscriptions", req, &resp)
	return &resp, err
}

// GetSubscription возвращает подписку по ID.
func (c *Client) GetSubscription(id string) (*SubscriptionResponse, error) {
	var sub SubscriptionResponse
	err := c.get("/api/v1/subscriptions/"+id, &sub)
	return &sub, err
}

// UpdateSubscription обновляет подписку.
func (c *Client) UpdateSubscription(id string, req UpdateSubscriptionRequest) (*SubscriptionResponse, error) {
	var sub SubscriptionResponse
	err := c.put("/api/v1/subscriptions/"+id, req, &sub)
	return &sub, err
}

// DeleteSubscription удаляет подписку.
func (c *Client) DeleteSubscription(id string) error {
	return c.delete("/api/v1/subscriptions/" + id)
}

// RotateSecret заменяет секрет подписки. Новый секрет — в ответе, один раз.
func (c *Client) RotateSecret(id string) (*SecretResponse, error) {
	var resp SecretResponse
	err := c.post("/api/v1/subscriptions/"+id+"/rotate", nil, &resp)
	return &resp, err
}

// VerifySignature проверяет подпись от имени подписки.
func (c *Client) VerifySignature(id string, req VerifyRequest) (*VerifyResponse, error) {
	var resp VerifyResponse
	err := c.post("/api/v1/subscriptions/"+id+"/verify", req, &resp)
	return &resp, err
}

// TestSubscription выполняет тестовую доставку.
func (c *Client) TestSubscription(id string, req TestRequest) (*DeliveryResponse, error) {
	var delivery DeliveryResponse
	err := c.post("/api/v1/subscriptions/"+id+"/test", req, &delivery)
	return &delivery, err
}

// --- Deliveries ---

// ListDeliveries возвращает журнал доставок с фильтрацией.
func (c *Client) ListDeliveries(opts ListDeliveriesOpts) ([]DeliveryResponse, error) {
	params := url.Values{}
	if opts.SubscriptionID != "" {
		params.Set("subscription_id", opts.SubscriptionID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.EventType != "" {
		params.Set("event_type", opts.EventType)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var deliveries []DeliveryResponse
	err := c.list("/api/v1/deliveries", params, &deliveries)
	return deliveries, err
}

// GetDelivery возвращает запись доставки по ID.
func (c *Client) GetDelivery(id string) (*DeliveryResponse, error) {
	var delivery DeliveryResponse
	err := c.get("/api/v1/deliveries/"+id, &delivery)
	return &delivery, err
}

// Redeliver ставит доставку в очередь на повторную отправку.
func (c *Client) Redeliver(id string) (*DeliveryResponse, error) {
	var delivery DeliveryResponse
	err := c.post("/api/v1/deliveries/"+id+"/redeliver", nil, &delivery)
	return &delivery, err
}

// --- Events ---

// PublishEvent отправляет доменное событие на рассылку.
func (c *Client) PublishEvent(req PublishEventRequest) (*PublishEventResponse, error) {
	var resp PublishEventResponse
	err := c.post("/api/v1/events", req, &resp)
	return &resp, err
}

// ListEventTypes возвращает поддерживаемые типы событий.
func (c *Client) ListEventTypes() ([]string, error) {
	var types []string
	err := c.list("/api/v1/event-types", nil, &types)
	return types, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
