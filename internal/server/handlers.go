package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"castgrab/internal/auth"
	"castgrab/internal/httputil"
	"castgrab/internal/media"
)

// SuccessMessage accompanies every successful extraction.
const SuccessMessage = "MP3 URL extracted successfully!"

const maxRequestBody = 64 * 1024

// ExtractResponse is the JSON body of the extract endpoint.
type ExtractResponse struct {
	Success  bool   `json:"success"`
	AudioURL string `json:"audioUrl,omitempty"`
	Message  string `json:"message"`
}

// ResponseFor maps a result to the body shown to portal users. Failure
// reasons are replaced by the kind's sanitized message.
func ResponseFor(res media.Result) ExtractResponse {
	if res.OK() {
		return ExtractResponse{Success: true, AudioURL: res.AudioURL(), Message: SuccessMessage}
	}
	return ExtractResponse{Message: res.Kind().UserMessage()}
}

// StatusFor maps a result to its HTTP status.
func StatusFor(res media.Result) int {
	switch {
	case res.OK():
		return http.StatusOK
	case res.Kind() == media.InvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

type toolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Endpoint    string `json:"endpoint"`
	Method      string `json:"method"`
	Permission  string `json:"permission"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toolDescriptor{
		Name:        "MP3 URL Extractor",
		Description: "Extract the direct MP3 URL from a Zencastr episode page.",
		Endpoint:    extractPath,
		Method:      http.MethodPost,
		Permission:  string(auth.UseMP3Tools),
	})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	rawURL, err := readURL(w, r)
	if err != nil {
		log.Debug().Err(err).Msg("unreadable extract request")
	}
	rawURL = strings.TrimSpace(rawURL)
	if err != nil || httputil.ValidateURL(rawURL) != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ExtractResponse{Message: media.InvalidInput.UserMessage()})
		return
	}

	res := s.extractor.Extract(r.Context(), rawURL)
	if !res.OK() {
		log.Error().
			Str("url", rawURL).
			Str("strategy", string(res.Strategy())).
			Str("kind", res.Kind().String()).
			Str("reason", res.Reason()).
			Msg("error extracting mp3 url")
	}

	writeJSON(w, StatusFor(res), ResponseFor(res))
}

// readURL accepts either a JSON body or a form field named url.
func readURL(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var req media.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return req.URL, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostForm.Get("url"), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
