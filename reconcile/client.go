package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// providerClient is a thin JSON client for payment-processor transaction
// APIs (Payme, Click, Uzum). Each provider exposes the same paginated
// transaction listing shape behind its own base URL and API key.
type providerClient struct {
	provider  string
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   *time.Ticker
}

func newProviderClient(provider string) (*providerClient, error) {
	prefix := strings.ToUpper(provider)
	baseURL := strings.TrimSpace(os.Getenv(prefix + "_API_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("%s_API_BASE_URL is not set", prefix)
	}
	apiKey := strings.TrimSpace(os.Getenv(prefix + "_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("%s_API_KEY is not set", prefix)
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv(prefix + "_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}

	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv(prefix + "_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &providerClient{
		provider:  provider,
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.NewTicker(interval),
	}, nil
}

// close releases the rate-limit ticker. Callers own the client lifetime; a
// client is built per load, so leaving the ticker running would leak one
// goroutine per provider per run.
func (c *providerClient) close() {
	c.limiter.Stop()
}

type providerTransaction struct {
	ID            string      `json:"id"`
	OrderNumber   string      `json:"order_number"`
	MachineCode   string      `json:"machine_code"`
	Time          string      `json:"time"`
	Amount        json.Number `json:"amount"`
	PaymentMethod string      `json:"payment_method"`
	State         string      `json:"state"`
}

type providerListResponse struct {
	Data       []providerTransaction `json:"data"`
	Items      []providerTransaction `json:"items"`
	NextCursor string                `json:"next_cursor"`
	HasMore    *bool                 `json:"has_more"`
}

func (c *providerClient) getList(ctx context.Context, path string, params url.Values) (providerListResponse, error) {
	<-c.limiter.C
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return providerListResponse{}, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return providerListResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providerListResponse{}, fmt.Errorf("%s api error %d: %s", c.provider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed providerListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return providerListResponse{}, err
	}
	return parsed, nil
}

// listTransactions pages through the provider's transaction feed for a date
// window. Providers return either `data` or `items`; both are accepted.
func (c *providerClient) listTransactions(ctx context.Context, from, to time.Time) ([]providerTransaction, error) {
	var out []providerTransaction
	cursor := ""
	for {
		params := url.Values{}
		params.Set("from", from.UTC().Format(time.RFC3339))
		params.Set("to", to.UTC().Format(time.RFC3339))
		params.Set("limit", "500")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		page, err := c.getList(ctx, "/v1/transactions", params)
		if err != nil {
			return nil, err
		}

		rows := page.Data
		if len(rows) == 0 {
			rows = page.Items
		}
		out = append(out, rows...)

		if page.NextCursor == "" || (page.HasMore != nil && !*page.HasMore) || len(rows) == 0 {
			break
		}
		if page.NextCursor == cursor {
			return nil, errors.New("provider cursor did not advance")
		}
		cursor = page.NextCursor
	}
	return out, nil
}
