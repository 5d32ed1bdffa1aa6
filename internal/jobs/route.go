package jobs

import "strings"

// ParseRoute extracts the session ID from a path like /api/videos/{id}.
// apiPrefix should include the trailing slash, e.g. "/api/videos/".
func ParseRoute(path, apiPrefix string) (sessionID string, ok bool) {
	if !strings.HasPrefix(path, apiPrefix) {
		return "", false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(path, apiPrefix), "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
