package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"mosaic/internal/auth"
	"mosaic/internal/domain"
	"mosaic/internal/middleware"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordResetRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

type passwordUpdateRequest struct {
	Password string `json:"password"`
}

type sessionResponse struct {
	Session              *auth.Session `json:"session,omitempty"`
	User                 *auth.User    `json:"user,omitempty"`
	ConfirmationRequired bool          `json:"confirmation_required,omitempty"`
}

func validEmail(raw string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	return err == nil && addr.Address == strings.TrimSpace(raw)
}

func (a *App) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	if !validEmail(req.Email) || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "a valid email and password are required")
		return
	}
	locale := middleware.LocaleFromContext(r.Context())
	meta := map[string]any{"locale": locale}
	if name := strings.TrimSpace(req.FullName); name != "" {
		meta["full_name"] = name
	}
	session, user, err := a.Auth.SignUp(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		a.fail(w, r, err, "sign up failed")
		return
	}
	if user != nil && user.ID != "" {
		profile, err := a.Profiles.Upsert(r.Context(), &domain.Profile{
			ID:       user.ID,
			Email:    user.Email,
			FullName: user.FullName(),
			Locale:   locale,
		})
		if err != nil {
			a.log(r).Error().Err(err).Str("user_id", user.ID).Msg("mirror profile after sign up")
		} else if a.Mailer != nil {
			if err := a.Mailer.Welcome(r.Context(), *profile); err != nil {
				a.log(r).Warn().Err(err).Str("user_id", user.ID).Msg("welcome email failed")
			}
		}
	}
	resp := sessionResponse{User: user, ConfirmationRequired: session.Empty()}
	if !session.Empty() {
		resp.Session = session
	}
	a.json(w, http.StatusCreated, resp)
}

func (a *App) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "email and password are required")
		return
	}
	session, err := a.Auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err, "sign in failed")
		return
	}
	if u := session.User; u != nil && u.ID != "" {
		if _, err := a.Profiles.Upsert(r.Context(), &domain.Profile{ID: u.ID, Email: u.Email, FullName: u.FullName()}); err != nil {
			a.log(r).Error().Err(err).Str("user_id", u.ID).Msg("mirror profile after sign in")
		}
	}
	a.json(w, http.StatusOK, sessionResponse{Session: session, User: session.User})
}

func (a *App) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !a.decode(w, r, &req) {
		return
	}
	session, err := a.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.fail(w, r, err, "refresh session failed")
		return
	}
	a.json(w, http.StatusOK, sessionResponse{Session: session, User: session.User})
}

func (a *App) SignOut(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if err := a.Auth.SignOut(r.Context(), token); err != nil {
		// An expired session is already signed out.
		if auth.KindOf(err) != auth.KindSessionExpired {
			a.fail(w, r, err, "sign out failed")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset always answers 202 for well-formed emails so the
// endpoint cannot be used to discover accounts.
func (a *App) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !a.decode(w, r, &req) {
		return
	}
	if !validEmail(req.Email) {
		a.error(w, http.StatusBadRequest, "bad_request", "a valid email is required")
		return
	}
	redirect := a.PublicURL + "/reset-password"
	if req.RedirectTo != "" && strings.HasPrefix(req.RedirectTo, a.PublicURL+"/") {
		redirect = req.RedirectTo
	}
	if err := a.Auth.SendPasswordReset(r.Context(), req.Email, redirect); err != nil {
		if kind := auth.KindOf(err); kind == auth.KindRateLimited || kind == auth.KindUnavailable {
			a.fail(w, r, err, "password reset failed")
			return
		}
		a.log(r).Warn().Err(err).Msg("password reset rejected")
	}
	a.json(w, http.StatusAccepted, map[string]bool{"sent": true})
}

func (a *App) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	var req passwordUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "password is required")
		return
	}
	user, err := a.Auth.UpdatePassword(r.Context(), token, req.Password)
	if err != nil {
		a.fail(w, r, err, "update password failed")
		return
	}
	a.json(w, http.StatusOK, sessionResponse{User: user})
}
