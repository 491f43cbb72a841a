package bitflyer

import (
	"errors"
	"net/http"

	"bitflyer-broker/internal/core"
)

const (
	apiCodeInsufficientFunds  = -200
	apiCodeInsufficientMargin = -205
	apiCodeOrderNotAccepted   = -208
	apiCodeInvalidKey         = -500
)

var apiErrorMessageKinds = map[string]error{
	"insufficient funds":                           core.ErrInsufficientBalance,
	"margin amount is insufficient for this order": core.ErrInsufficientBalance,
	"order not found":                              core.ErrOrderNotFound,
	"the order is not accepted":                    core.ErrOrderRejected,
	"invalid signature":                            core.ErrUnauthorized,
	"key not found":                                core.ErrUnauthorized,
	"permission denied":                            core.ErrUnauthorized,
}

// classifyAPIError returns the APIError joined with core.ErrTransport and
// every matching exchange error kind, so callers can use errors.Is on either.
func classifyAPIError(apiErr APIError) error {
	kinds := classifyAPIErrorKinds(apiErr)
	errChain := make([]error, 0, 2+len(kinds))
	errChain = append(errChain, apiErr, core.ErrTransport)
	errChain = append(errChain, kinds...)
	return errors.Join(errChain...)
}

func classifyAPIErrorKinds(apiErr APIError) []error {
	kinds := make([]error, 0, 2)

	switch apiErr.Status {
	case apiCodeInsufficientFunds, apiCodeInsufficientMargin:
		kinds = appendErrorKind(kinds, core.ErrInsufficientBalance)
	case apiCodeOrderNotAccepted:
		kinds = appendErrorKind(kinds, core.ErrOrderRejected)
	case apiCodeInvalidKey:
		kinds = appendErrorKind(kinds, core.ErrUnauthorized)
	}
	switch apiErr.HTTPStatus {
	case http.StatusUnauthorized, http.StatusForbidden:
		kinds = appendErrorKind(kinds, core.ErrUnauthorized)
	case http.StatusNotFound:
		kinds = appendErrorKind(kinds, core.ErrOrderNotFound)
	}
	if kind, ok := apiErrorMessageKinds[normalizeMessage(apiErr.Message)]; ok {
		kinds = appendErrorKind(kinds, kind)
	}
	return kinds
}

func appendErrorKind(kinds []error, kind error) []error {
	for _, existing := range kinds {
		if existing == kind {
			return kinds
		}
	}
	return append(kinds, kind)
}

func AsAPIError(err error) (APIError, bool) {
	if err == nil {
		return APIError{}, false
	}
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return APIError{}, false
	}
	return apiErr, true
}
