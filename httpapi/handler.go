// Package httpapi is the routing layer over an [mfauth.Engine]. Bodies may
// be form encoded or JSON; responses are JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/mfauth"
	"github.com/MrEthical07/mfauth/middleware"
	"github.com/MrEthical07/mfauth/session"
)

const maxBodyBytes = 64 << 10

// Options tunes the handler.
type Options struct {
	Logger *slog.Logger
	// TrustProxy honours forwarding headers when deriving the client
	// address.
	TrustProxy bool
	// Metrics, when set, is served on GET /metrics.
	Metrics http.Handler
}

// Handler serves the authentication routes.
type Handler struct {
	engine *mfauth.Engine
	cookie mfauth.SessionConfig
	logger *slog.Logger
	mux    *http.ServeMux
}

// New builds the route table.
func New(engine *mfauth.Engine, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{
		engine: engine,
		cookie: engine.Config().Session,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	gate := engine.Gate()
	base := []middleware.Middleware{
		middleware.ClientIP(opts.TrustProxy),
		middleware.LoadSession(gate, h.cookie.CookieName, h.writeError),
	}
	route := func(pattern string, class mfauth.RouteClass, fn http.HandlerFunc, onDeny middleware.ErrorHandler) {
		mws := append([]middleware.Middleware{}, base...)
		if class == mfauth.RouteLogin {
			mws = append([]middleware.Middleware{base[0], middleware.RateLimit(gate, h.writeError)}, base[1:]...)
		}
		if onDeny == nil {
			onDeny = h.writeError
		}
		mws = append(mws, middleware.Sensitivity(gate, class, onDeny))
		h.mux.Handle(pattern, middleware.Chain(fn, mws...))
	}

	route("POST /auth/authenticate", mfauth.RouteLogin, h.authenticate, nil)
	route("POST /auth/verify_otp", mfauth.RoutePartial, h.verifyOTP, nil)
	route("GET /users/show_qr_code", mfauth.RoutePartial, h.showQR, nil)
	route("GET /users/activate_mfa", mfauth.RoutePartial, h.activateMFA, nil)
	route("POST /users/rotate_mfa", mfauth.RouteProtected, h.rotateMFA, nil)
	route("POST /users/deactivate_mfa", mfauth.RouteProtected, h.deactivateMFA, nil)
	route("POST /users/logout", mfauth.RoutePublic, h.logout, nil)
	route("POST /users/change_password", mfauth.RouteProtected, h.changePassword, nil)
	route("POST /users/reset_password", mfauth.RouteProtected, h.resetPassword, nil)
	route("GET /users/forgot_password", mfauth.RoutePublic, h.forgotPassword, nil)
	route("POST /users/register", mfauth.RoutePublic, h.register, nil)
	route("GET /dashboard", mfauth.RouteProtected, h.dashboard, redirectToLogin)

	h.mux.HandleFunc("GET /healthz", h.healthz)
	if opts.Metrics != nil {
		h.mux.Handle("GET /metrics", opts.Metrics)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	in, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	current, _ := middleware.SessionFromContext(r.Context())
	res, err := h.engine.Login(r.Context(), mfauth.LoginRequest{
		Email:    in["email"],
		Password: in["password"],
		Honeypot: in["honeypot"],
	}, current)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Outcome == mfauth.OutcomeIgnored {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.setCookie(w, res.Token, res.Session)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redirect": res.Redirect})
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	in, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, _ := middleware.SessionFromContext(r.Context())

	if _, err := h.engine.VerifyOTP(r.Context(), sess, in["code"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redirect": mfauth.RedirectDashboard})
}

func (h *Handler) showQR(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	qr, err := h.engine.ShowQR(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

func (h *Handler) activateMFA(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	qr, err := h.engine.ActivateMFA(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

func (h *Handler) rotateMFA(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	qr, err := h.engine.RotateMFA(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

func (h *Handler) deactivateMFA(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	if err := h.engine.DeactivateMFA(r.Context(), sess); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redirect": mfauth.RedirectLogin})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	if err := h.engine.Logout(r.Context(), sess); err != nil {
		h.logger.WarnContext(r.Context(), "logout teardown failed", "error", err)
	}
	h.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redirect": mfauth.RedirectLogin})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	in, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess, _ := middleware.SessionFromContext(r.Context())

	if err := h.engine.ChangePassword(r.Context(), sess, in["newpassword"], in["confirmpassword"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redirect": mfauth.RedirectDashboard})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	plaintext, err := h.engine.ResetPassword(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.clearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"password": plaintext})
}

func (h *Handler) forgotPassword(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Sign in and use reset_password; a new password is shown once.",
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	in, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	enableMFA, _ := strconv.ParseBool(in["mfa_enabled"])

	reg, err := h.engine.Register(r.Context(), in["email"], in["password"], enableMFA)
	out := map[string]any{}
	switch {
	case err == nil:
	case reg != nil && errors.Is(err, mfauth.ErrEnrollmentIncomplete):
		out["warning"] = msgEnrollmentIncomplete
	default:
		h.writeError(w, r, err)
		return
	}

	out["id"] = reg.UserID
	if reg.MFA != nil {
		out["mfa"] = reg.MFA
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user_id": sess.UserID, "email": sess.Email})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	latency, err := h.engine.Ping(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redis_latency": latency.String()})
}

func (h *Handler) setCookie(w http.ResponseWriter, token string, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    token,
		Path:     h.cookie.CookiePath,
		Expires:  time.Unix(sess.ExpiresAt, 0),
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: h.cookie.CookieSameSite,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    "",
		Path:     h.cookie.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.CookieSecure,
		SameSite: h.cookie.CookieSameSite,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": messageFor(err)})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, _ error) {
	http.Redirect(w, r, mfauth.RedirectLogin, http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBody returns the string fields of a JSON object or a form body.
func readBody(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		raw := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: malformed json body", mfauth.ErrValidation)
		}
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				out[k] = val
			case bool:
				out[k] = strconv.FormatBool(val)
			case float64:
				out[k] = strconv.FormatFloat(val, 'f', -1, 64)
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: malformed form body", mfauth.ErrValidation)
	}
	out := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		out[k] = strings.TrimSpace(r.PostForm.Get(k))
	}
	return out, nil
}
