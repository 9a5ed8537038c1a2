package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/signalsfoundry/leo-route-optimizer/internal/dto"
	"github.com/signalsfoundry/leo-route-optimizer/internal/logging"
)

// maxBodyBytes bounds request bodies accepted by the JSON handlers.
const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid json body")

// writeJSON encodes v before touching w, so an unencodable value becomes a
// 500 with a JSON error body instead of a bare status line.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logging.FromContextOr(r.Context(), nil).Error(r.Context(), "encode response failed",
			logging.String("path", r.URL.Path),
			logging.Err(err),
		)
		buf.Reset()
		_ = json.NewEncoder(&buf).Encode(dto.ErrorResponse{Error: "failed to encode response"})
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, dto.ErrorResponse{Error: msg})
}

// decodeJSON reads exactly one JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	defer r.Body.Close()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: body must contain only one JSON object", errInvalidBody)
	}
	return nil
}
