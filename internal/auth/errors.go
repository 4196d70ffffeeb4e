package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorKind classifies auth backend failures for callers and clients.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindEmailTaken         ErrorKind = "email_taken"
	KindEmailNotConfirmed  ErrorKind = "email_not_confirmed"
	KindWeakPassword       ErrorKind = "weak_password"
	KindSessionExpired     ErrorKind = "session_expired"
	KindRateLimited        ErrorKind = "rate_limited"
	KindUnavailable        ErrorKind = "unavailable"
	KindUnknown            ErrorKind = "unknown"
)

var messages = map[ErrorKind]string{
	KindInvalidCredentials: "Invalid email or password.",
	KindEmailTaken:         "An account with this email already exists.",
	KindEmailNotConfirmed:  "Please confirm your email address before signing in.",
	KindWeakPassword:       "Password is too weak. Use at least 8 characters with letters and numbers.",
	KindSessionExpired:     "Your session has expired. Please sign in again.",
	KindRateLimited:        "Too many attempts. Please wait a moment and try again.",
	KindUnavailable:        "The authentication service is unavailable. Please try again later.",
	KindUnknown:            "Something went wrong. Please try again.",
}

// Error is a translated auth backend failure. Message is safe to show users;
// Code and Detail carry what the backend returned.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int
	Code    string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return "auth: " + string(e.Kind) + ": " + e.Detail
	}
	return "auth: " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an auth error, KindUnknown for anything else.
func KindOf(err error) ErrorKind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, status int, code, detail string, cause error) *Error {
	return &Error{Kind: kind, Message: messages[kind], Status: status, Code: code, Detail: detail, Err: cause}
}

// translate maps a GoTrue error response to an *Error. GoTrue has used both
// {"error_code","msg"} and the OAuth {"error","error_description"} shapes.
func translate(status int, body []byte) *Error {
	parsed := gjson.ParseBytes(body)
	code := firstString(parsed, "error_code", "error")
	detail := firstString(parsed, "msg", "message", "error_description")
	lowerDetail := strings.ToLower(detail)

	switch code {
	case "invalid_credentials", "invalid_grant":
		if strings.Contains(lowerDetail, "email not confirmed") {
			return newError(KindEmailNotConfirmed, status, code, detail, nil)
		}
		return newError(KindInvalidCredentials, status, code, detail, nil)
	case "user_already_exists", "email_exists":
		return newError(KindEmailTaken, status, code, detail, nil)
	case "email_not_confirmed":
		return newError(KindEmailNotConfirmed, status, code, detail, nil)
	case "weak_password":
		return newError(KindWeakPassword, status, code, detail, nil)
	case "bad_jwt", "session_not_found", "session_expired", "refresh_token_not_found", "refresh_token_already_used":
		return newError(KindSessionExpired, status, code, detail, nil)
	case "over_request_rate_limit", "over_email_send_rate_limit", "over_sms_send_rate_limit":
		return newError(KindRateLimited, status, code, detail, nil)
	}

	switch {
	case strings.Contains(lowerDetail, "already registered"):
		return newError(KindEmailTaken, status, code, detail, nil)
	case strings.Contains(lowerDetail, "password should be"):
		return newError(KindWeakPassword, status, code, detail, nil)
	case status == http.StatusTooManyRequests:
		return newError(KindRateLimited, status, code, detail, nil)
	case status == http.StatusUnauthorized:
		return newError(KindSessionExpired, status, code, detail, nil)
	case status >= 500:
		return newError(KindUnavailable, status, code, detail, nil)
	}
	return newError(KindUnknown, status, code, detail, nil)
}

func firstString(parsed gjson.Result, paths ...string) string {
	for _, path := range paths {
		v := parsed.Get(path)
		if v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}
