package bitflyer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitflyer-broker/internal/core"
	"bitflyer-broker/internal/metrics"
)

const (
	DefaultRestBaseURL = "https://api.bitflyer.com"
	defaultTimeout     = 10 * time.Second
)

// Client is the signed REST transport. It holds credentials and timeouts
// only, so one Client can serve concurrent calls.
type Client struct {
	apiKey      string
	apiSecret   string
	baseURL     string
	getTimeout  time.Duration
	postTimeout time.Duration
	httpClient  *http.Client
	now         func() time.Time
}

type Options struct {
	APIKey      string
	APISecret   string
	RestBaseURL string
	GetTimeout  time.Duration
	PostTimeout time.Duration
	HTTPClient  *http.Client
	Now         func() time.Time
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.RestBaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultRestBaseURL
	}
	getTimeout := opts.GetTimeout
	if getTimeout <= 0 {
		getTimeout = defaultTimeout
	}
	postTimeout := opts.PostTimeout
	if postTimeout <= 0 {
		postTimeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:      opts.APIKey,
		apiSecret:   opts.APISecret,
		baseURL:     baseURL,
		getTimeout:  getTimeout,
		postTimeout: postTimeout,
		httpClient:  httpClient,
		now:         now,
	}
}

func (c *Client) Name() string { return "bitflyer" }

// Call performs one request and returns the JSON body decoded with numbers
// kept as json.Number. An empty success body yields nil.
func (c *Client) Call(ctx context.Context, ep Endpoint, params Params) (any, error) {
	timeout := c.getTimeout
	if ep.Method != http.MethodGet {
		timeout = c.postTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	body, status, err := c.doRequest(ctx, ep, params)
	metrics.ObserveTransport(ep.Name(), status, started)
	if err != nil {
		return nil, err
	}
	return decodeBody(ep, body)
}

func (c *Client) doRequest(ctx context.Context, ep Endpoint, params Params) ([]byte, string, error) {
	if ep.Private && (c.apiKey == "" || c.apiSecret == "") {
		return nil, "unsent", errors.Join(core.ErrTransport, core.ErrUnauthorized, errors.New("api_key/api_secret required"))
	}
	path := ep.Path
	var payload []byte
	if ep.Method == http.MethodGet {
		if encoded := encodeQuery(params).Encode(); encoded != "" {
			path += "?" + encoded
		}
	} else {
		if params == nil {
			params = Params{}
		}
		data, err := json.Marshal(params)
		if err != nil {
			return nil, "unsent", fmt.Errorf("%w: encode %s params: %v", core.ErrTransport, ep.Name(), err)
		}
		payload = data
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, "unsent", fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ep.Private {
		ts := strconv.FormatInt(c.now().Unix(), 10)
		req.Header.Set("ACCESS-KEY", c.apiKey)
		req.Header.Set("ACCESS-TIMESTAMP", ts)
		req.Header.Set("ACCESS-SIGN", sign(c.apiSecret, ts+ep.Method+path+string(payload)))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "error", fmt.Errorf("%w: %s %s: %v", core.ErrTransport, ep.Method, ep.Path, err)
	}
	defer resp.Body.Close()
	status := strconv.Itoa(resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, status, fmt.Errorf("%w: read %s: %v", core.ErrTransport, ep.Path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, status, parseAPIError(resp.StatusCode, body)
	}
	return body, status, nil
}

func decodeBody(ep Endpoint, body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDecode, ep.Path, err)
	}
	return out, nil
}

func encodeQuery(params Params) url.Values {
	values := url.Values{}
	for k, v := range params {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
			values.Set(k, val)
		case json.Number:
			values.Set(k, val.String())
		case decimal.Decimal:
			values.Set(k, val.String())
		default:
			values.Set(k, fmt.Sprint(val))
		}
	}
	return values
}

func parseAPIError(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.ErrorMessage != "" || apiErr.Status != 0) {
		return classifyAPIError(APIError{HTTPStatus: status, Status: apiErr.Status, Message: apiErr.ErrorMessage})
	}
	return classifyAPIError(APIError{HTTPStatus: status, Message: strings.TrimSpace(string(body))})
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
