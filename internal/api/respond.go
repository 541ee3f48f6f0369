package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	gwerrors "github.com/cognigate/cognigate/pkg/errors"
)

// errorResponse is the OpenAI-compatible error envelope.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps gateway errors onto the wire envelope. Unclassified
// errors become opaque 500s so upstream detail never leaks to clients.
func writeError(w http.ResponseWriter, err error) {
	var ge *gwerrors.GatewayError
	if errors.As(err, &ge) {
		writeJSON(w, ge.HTTPStatusCode(), errorResponse{
			Error: errorDetail{
				Message: ge.Message,
				Type:    string(ge.Kind),
			},
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error: errorDetail{
			Message: "internal server error",
			Type:    "internal_error",
		},
	})
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error: errorDetail{
			Message: detail,
			Type:    "invalid_request_error",
		},
	})
}
