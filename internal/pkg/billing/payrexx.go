package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// PayrexxClient talks to the Payrexx REST API. Every request is signed with
// ApiSignature = base64(HMAC-SHA256(secret, encoded params)).
type PayrexxClient struct {
	Instance   string
	APISecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewPayrexxClient builds a client from cfg. The HTTP timeout bounds every
// call independently of the caller's context.
func NewPayrexxClient(cfg *Config) *PayrexxClient {
	c := cfg.withDefaults()
	return &PayrexxClient{
		Instance:   c.Instance,
		APISecret:  c.APISecret,
		APIBaseURL: strings.TrimRight(c.APIBaseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: c.LookupTimeout,
		},
	}
}

type payrexxEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Sign computes the ApiSignature for params. url.Values encodes keys sorted.
func (c *PayrexxClient) Sign(params url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.APISecret))
	mac.Write([]byte(params.Encode()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *PayrexxClient) configured() error {
	if strings.TrimSpace(c.Instance) == "" || strings.TrimSpace(c.APISecret) == "" {
		return fmt.Errorf("%w: PAYREXX_INSTANCE/PAYREXX_API_SECRET missing", ErrNotConfigured)
	}
	return nil
}

func (c *PayrexxClient) endpoint(path string) string {
	return c.APIBaseURL + path + "?" + url.Values{"instance": {c.Instance}}.Encode()
}

// GetTransaction fetches the authoritative state of a transaction.
func (c *PayrexxClient) GetTransaction(ctx context.Context, id string) (*TransactionRecord, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("transaction id is required")
	}

	u := c.endpoint("/Transaction/"+url.PathEscape(id)+"/") + "&" + url.Values{"ApiSignature": {c.Sign(url.Values{})}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	items, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("payrexx transaction %s: %w", id, err)
	}
	tx := extractTransaction(items[0])
	if tx.ID == "" {
		tx.ID = id
	}
	if tx.Status == "" {
		return nil, fmt.Errorf("payrexx transaction %s: response without status", id)
	}
	return &tx, nil
}

// CreateGateway creates a hosted payment page and returns its id and link.
func (c *PayrexxClient) CreateGateway(ctx context.Context, in GatewayRequest) (*Gateway, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(in.AmountMinor, 10))
	form.Set("currency", in.Currency)
	form.Set("referenceId", in.ReferenceID)
	form.Set("purpose", in.Purpose)
	if in.SuccessRedirectURL != "" {
		form.Set("successRedirectUrl", in.SuccessRedirectURL)
	}
	if in.FailedRedirectURL != "" {
		form.Set("failedRedirectUrl", in.FailedRedirectURL)
	}
	if in.CancelRedirectURL != "" {
		form.Set("cancelRedirectUrl", in.CancelRedirectURL)
	}
	form.Set("ApiSignature", c.Sign(form))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/Gateway/"), bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	items, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("payrexx gateway: %w", err)
	}
	gw := &Gateway{
		ID:   firstString(items[0], "id"),
		Link: firstString(items[0], "link"),
	}
	if gw.ID == "" || gw.Link == "" {
		return nil, errors.New("payrexx gateway: response without id or link")
	}
	return gw, nil
}

// do executes req and unwraps the {"status","data"} envelope. data may be a
// list or a single object; at least one item is guaranteed on success.
func (c *PayrexxClient) do(req *http.Request) ([]map[string]any, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var env payrexxEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !strings.EqualFold(env.Status, "success") {
		return nil, fmt.Errorf("payrexx error: %s", env.Message)
	}

	items, err := decodeItems(env.Data)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errors.New("empty response data")
	}
	return items, nil
}

func decodeItems(raw json.RawMessage) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if trimmed[0] == '[' {
		var list []map[string]any
		if err := dec.Decode(&list); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
		return list, nil
	}
	var one map[string]any
	if err := dec.Decode(&one); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return []map[string]any{one}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
