package bitflyer

import "net/http"

// Endpoint names one REST method of the exchange.
type Endpoint struct {
	Method  string
	Path    string
	Private bool
}

// Name is the last path segment, used as a metrics label.
func (e Endpoint) Name() string {
	for i := len(e.Path) - 1; i >= 0; i-- {
		if e.Path[i] == '/' {
			return e.Path[i+1:]
		}
	}
	return e.Path
}

// Params is the request parameter mapping. GET endpoints send it as a query
// string, POST endpoints as a JSON body.
type Params map[string]any

var (
	GetBalance            = Endpoint{Method: http.MethodGet, Path: "/v1/me/getbalance", Private: true}
	GetCollateral         = Endpoint{Method: http.MethodGet, Path: "/v1/me/getcollateral", Private: true}
	GetCollateralAccounts = Endpoint{Method: http.MethodGet, Path: "/v1/me/getcollateralaccounts", Private: true}
	GetPositions          = Endpoint{Method: http.MethodGet, Path: "/v1/me/getpositions", Private: true}
	GetChildOrders        = Endpoint{Method: http.MethodGet, Path: "/v1/me/getchildorders", Private: true}
	GetParentOrder        = Endpoint{Method: http.MethodGet, Path: "/v1/me/getparentorder", Private: true}
	SendChildOrder        = Endpoint{Method: http.MethodPost, Path: "/v1/me/sendchildorder", Private: true}
	CancelChildOrder      = Endpoint{Method: http.MethodPost, Path: "/v1/me/cancelchildorder", Private: true}
	CancelAllChildOrders  = Endpoint{Method: http.MethodPost, Path: "/v1/me/cancelallchildorders", Private: true}
	SendParentOrder       = Endpoint{Method: http.MethodPost, Path: "/v1/me/sendparentorder", Private: true}
	CancelParentOrder     = Endpoint{Method: http.MethodPost, Path: "/v1/me/cancelparentorder", Private: true}

	GetMarkets    = Endpoint{Method: http.MethodGet, Path: "/v1/getmarkets"}
	GetBoard      = Endpoint{Method: http.MethodGet, Path: "/v1/getboard"}
	GetTicker     = Endpoint{Method: http.MethodGet, Path: "/v1/getticker"}
	GetExecutions = Endpoint{Method: http.MethodGet, Path: "/v1/getexecutions"}
	GetBoardState = Endpoint{Method: http.MethodGet, Path: "/v1/getboardstate"}
	GetHealth     = Endpoint{Method: http.MethodGet, Path: "/v1/gethealth"}
	GetChats      = Endpoint{Method: http.MethodGet, Path: "/v1/getchats"}
)
