package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lucifergaming/savagetech/internal/sdk"
	"github.com/lucifergaming/savagetech/internal/widget"
)

// userIDHeader carries the signed-in user's id when an upstream proxy
// has already authenticated the request.
const userIDHeader = "X-User-Id"

const maxRequestBody = 1 << 20

type errorBody struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type eventResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and error body. Event endpoints also
// report "success": false.
func writeError(w http.ResponseWriter, err error, event bool) {
	body := errorBody{Error: err.Error()}
	if event {
		f := false
		body.Success = &f
	}

	status := http.StatusInternalServerError
	var up *sdk.UpstreamError
	var rej *sdk.RejectedError
	switch {
	case errors.As(err, &rej):
		status = http.StatusServiceUnavailable
		if errors.Is(rej, sdk.ErrRateLimited) {
			status = http.StatusTooManyRequests
		}
		if secs := int(rej.RetryIn.Seconds()); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	case errors.As(err, &up):
		status = up.Status()
		body.Error = up.Message
		if body.Error == "" {
			body.Error = up.Error()
		}
		body.Details = up.Details()
	case errors.Is(err, sdk.ErrMissingUserID):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string, event bool) {
	body := errorBody{Error: msg}
	if event {
		f := false
		body.Success = &f
	}
	writeJSON(w, http.StatusBadRequest, body)
}

func (s *Server) currency(requested string) string {
	if requested != "" {
		return requested
	}
	return s.Settings().DefaultCurrency
}

func queryUserID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("user_id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	settings := s.Settings()
	if !settings.WidgetEnabled {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "widget is disabled"})
		return
	}

	userID := queryUserID(r)
	if userID == "" {
		badRequest(w, "user id is required", false)
		return
	}

	res, err := widget.Generate(r.Context(), s.backend, s.backend.VendorID(), userID,
		widgetConfig(r.URL.Query().Get("config")), s.currency(r.URL.Query().Get("currency")))
	if err != nil {
		writeError(w, err, false)
		return
	}

	writeJSON(w, http.StatusOK, widget.NewInitPayload(res, settings.RefreshBeforeMinutes()))
}

// widgetConfig decodes the optional config query parameter. Anything that
// is not a JSON object is treated as no config.
func widgetConfig(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil
	}
	return cfg
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	settings := s.Settings()
	if !settings.WidgetEnabled {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "widget is disabled"})
		return
	}

	userID := queryUserID(r)
	if userID == "" {
		badRequest(w, "user id is required", false)
		return
	}

	tok, err := s.backend.FetchRefresh(r.Context(), sdk.TokenRequest{
		UserID:   userID,
		Currency: s.currency(r.URL.Query().Get("currency")),
	})
	if err != nil {
		writeError(w, err, false)
		return
	}

	writeJSON(w, http.StatusOK, widget.NewRefreshPayload(tok, settings.RefreshBeforeMinutes()))
}

// eventRequest is the body of the deposit and bet endpoints. Numbers may be
// sent as JSON numbers or numeric strings.
type eventRequest struct {
	UserID   json.RawMessage `json:"user_id"`
	Amount   *json.Number    `json:"amount"`
	Odds     *json.Number    `json:"odds"`
	Currency string          `json:"currency"`
}

// userID accepts string or numeric ids and falls back to the header.
func (e eventRequest) userID(r *http.Request) string {
	if len(e.UserID) > 0 && string(e.UserID) != "null" {
		var s string
		if json.Unmarshal(e.UserID, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		} else {
			return strings.TrimSpace(string(e.UserID))
		}
	}
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (eventRequest, bool) {
	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		badRequest(w, "request body must be a JSON object", true)
		return req, false
	}
	return req, true
}

func parseNumber(n *json.Number) (float64, bool) {
	if n == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	return v, err == nil
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	userID := req.userID(r)
	amount, amountOK := parseNumber(req.Amount)
	if userID == "" || !amountOK {
		badRequest(w, "user id and amount are required", true)
		return
	}

	resp, err := s.backend.DepositMade(r.Context(), userID, amount, s.currency(req.Currency))
	if err != nil {
		writeError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Success: true, Data: resp.Data})
}

func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	userID := req.userID(r)
	amount, amountOK := parseNumber(req.Amount)
	odds, oddsOK := parseNumber(req.Odds)
	if userID == "" || !amountOK || !oddsOK {
		badRequest(w, "user id, amount and odds are required", true)
		return
	}

	resp, err := s.backend.BetPlaced(r.Context(), userID, amount, odds, s.currency(req.Currency))
	if err != nil {
		writeError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Success: true, Data: resp.Data})
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currencies map[string]sdk.Currency `json:"currencies"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		badRequest(w, "request body must be a JSON object", true)
		return
	}
	if len(req.Currencies) == 0 {
		badRequest(w, "currencies are required", true)
		return
	}

	resp, err := s.backend.SetCurrencies(r.Context(), req.Currencies)
	if err != nil {
		writeError(w, err, true)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Success: true, Data: resp.Data})
}
