package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("encode response body")
	}
}

func message(text string) map[string]string {
	return map[string]string{"message": text}
}

func messagef(format string, args ...any) map[string]string {
	return message(fmt.Sprintf(format, args...))
}
