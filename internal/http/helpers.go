package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"finscope/internal/core"
	"finscope/internal/middleware/trace"
	"finscope/internal/session"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps domain errors onto HTTP statuses. Validation failures are
// 422, identity problems 401, absence 404, duplicate registration 409;
// anything else is an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrUnauthenticated), errors.Is(err, core.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"request_id", trace.GetRequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// authenticate resolves the bearer token on the request to an identity.
func (s *Server) authenticate(r *http.Request) (session.Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		// The live endpoint cannot set headers from a browser websocket, so
		// the token may ride in the query string instead.
		token = r.URL.Query().Get("token")
	}
	if strings.TrimSpace(token) == "" {
		return session.Identity{}, core.ErrUnauthenticated
	}
	return s.sessions.Verify(strings.TrimSpace(token))
}

// DTOs: the wire shapes are decoupled from the core types, with timestamps
// as epoch milliseconds.
type transactionDTO struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	CreatedAt   int64   `json:"created_at"`
}

type profileDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Age       int    `json:"age"`
	CreatedAt int64  `json:"created_at"`
}

func toTransactionDTO(record core.TransactionRecord) transactionDTO {
	return transactionDTO{
		ID:          record.ID,
		Kind:        string(record.Kind),
		Title:       record.Title,
		Amount:      record.Amount,
		Description: record.Description,
		CreatedAt:   core.EpochMillis(record.CreatedAt),
	}
}

func toTransactionDTOs(records []core.TransactionRecord) []transactionDTO {
	out := make([]transactionDTO, len(records))
	for i, record := range records {
		out[i] = toTransactionDTO(record)
	}
	return out
}

func toProfileDTO(profile core.UserProfile) profileDTO {
	return profileDTO{
		ID:        profile.ID,
		Name:      profile.Name,
		Email:     profile.Email,
		Age:       profile.Age,
		CreatedAt: core.EpochMillis(profile.CreatedAt),
	}
}
