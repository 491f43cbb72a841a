package bitflyer

import (
	"encoding/json"
	"strconv"
	"strings"
)

type apiError struct {
	Status       int    `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	HTTPStatus int
	Status     int
	Message    string
}

func (e APIError) Error() string {
	if e.Status == 0 {
		return "bitflyer http error " + strconv.Itoa(e.HTTPStatus) + ": " + e.Message
	}
	return "bitflyer api error " + strconv.Itoa(e.Status) + ": " + e.Message
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcEnvelope struct {
	ID     string    `json:"id,omitempty"`
	Method string    `json:"method,omitempty"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
	Params *struct {
		Channel string          `json:"channel"`
		Message json.RawMessage `json:"message"`
	} `json:"params,omitempty"`
}

func normalizeMessage(msg string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(msg), "."))
}
