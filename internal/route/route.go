// Package route names the application paths shared by the web server and the
// call session navigator.
package route

import "net/url"

const (
	Home         = "/"
	SignIn       = "/sign-in"
	SignUp       = "/sign-up"
	SignOut      = "/sign-out"
	NewInterview = "/interview"
	Generate     = "/api/vapi/generate"
	Healthz      = "/healthz"
)

// Interview is the page for one interview.
func Interview(interviewID string) string {
	return "/interview/" + url.PathEscape(interviewID)
}

// Feedback is the feedback page for one interview.
func Feedback(interviewID string) string {
	return Interview(interviewID) + "/feedback"
}

// WithToast appends a toast message to a path.
func WithToast(path, message string) string {
	if message == "" {
		return path
	}
	return path + "?" + url.Values{"toast": {message}}.Encode()
}
