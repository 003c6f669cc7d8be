package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"psikoadmin/internal/app/apiresp"
)

const tokenCookieName = "psikoadmin_token"

type Handler struct {
	svc     *Service
	checker *Checker
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Principal   *Principal `json:"principal"`
}

func NewHandler(svc *Service, checker *Checker) *Handler {
	if checker == nil {
		checker = NewChecker(nil)
	}
	return &Handler{svc: svc, checker: checker}
}

func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.svc.AuthenticateLocal(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrLocalAuthDisabled):
			apiresp.WriteError(w, r, http.StatusNotFound, "local auth disabled")
		case errors.Is(err, ErrInvalidCredentials):
			apiresp.WriteError(w, r, http.StatusUnauthorized, "invalid credentials")
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	token, expiresAt, err := h.svc.Issue(*p)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "cannot issue token")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	apiresp.WriteOK(w, r, http.StatusOK, tokenResponse{AccessToken: token, ExpiresAt: expiresAt, Principal: p})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := CurrentPrincipal(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, p)
}

func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.svc.Verify(readToken(r))
		if err != nil {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

func (h *Handler) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := CurrentPrincipal(r.Context())
			if !ok {
				apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !h.checker.Has(p.Role, perm) {
				apiresp.WriteError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func readToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	c, err := r.Cookie(tokenCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
