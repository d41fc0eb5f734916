package voice

import (
	"net/http"
)

// twilioOnly parses the webhook form and, when an auth token is configured,
// rejects requests whose X-Twilio-Signature does not match.
func (h *Handler) twilioOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		if h.validator != nil {
			params := make(map[string]string, len(r.PostForm))
			for key, values := range r.PostForm {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}

			url := h.publicURL + r.URL.RequestURI()
			if !h.validator.Validate(url, params, r.Header.Get("X-Twilio-Signature")) {
				h.logger.Warn("rejecting unsigned webhook", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, "invalid signature", http.StatusForbidden)
				return
			}
		}

		next(w, r)
	})
}
