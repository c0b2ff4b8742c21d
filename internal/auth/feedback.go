package auth

import "net/http"

// AuthenticateFeedback implements spec §9's resolved Open Question: feedback
// endpoints accept EITHER a valid API key (already verified by Middleware,
// so the caller has an Identity) OR a matching feedback_secret_key supplied
// in the request body, without requiring a user token. It returns true if
// either path is satisfied.
func AuthenticateFeedback(r *http.Request, keyMatches bool) bool {
	if keyMatches {
		return true
	}
	id := FromContext(r.Context())
	return id != nil && id.Method == MethodAPIKey
}
