package user

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-fusion-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for registration, login and the user list.
type Handler struct {
	svc       *UserService
	authority *auth.Authority
	logger    *zap.SugaredLogger
}

func NewHandler(svc *UserService, authority *auth.Authority, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, authority: authority, logger: logger}
}

// TokenResponse is the body of a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// maxBodyBytes bounds request bodies, and with them the input bcrypt sees.
const maxBodyBytes = 1 << 20

type validationBody struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details"`
}

// Unauthorized writes a 401 carrying the Bearer challenge.
func Unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	utilities.WriteError(w, http.StatusUnauthorized, msg)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var in RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		if tooLarge(w, err) {
			return
		}
		h.logger.Debugw("invalid register payload", "err", err)
		utilities.WriteJSON(w, http.StatusUnprocessableEntity, validationBody{
			Error:   "validation error",
			Details: []FieldError{{Field: "body", Rule: "json"}},
		})
		return
	}
	u, err := h.svc.Register(r.Context(), in)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			utilities.WriteJSON(w, http.StatusUnprocessableEntity, validationBody{Error: "validation error", Details: verr.Fields})
		case errors.Is(err, ErrAlreadyExists):
			utilities.WriteError(w, http.StatusBadRequest, "Email or username already registered")
		default:
			h.logger.Errorw("register failed", "err", err)
			utilities.WriteError(w, http.StatusInternalServerError, "register failed")
		}
		return
	}
	h.logger.Infow("user registered", "id", u.ID, "username", u.Username)
	utilities.WriteJSON(w, http.StatusCreated, u.ToPublic())
}

// Login accepts either an OAuth2-style form (username, password) or the
// same fields as JSON.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	username, password, err := loginCredentials(r)
	if err != nil {
		if tooLarge(w, err) {
			return
		}
		h.logger.Debugw("invalid login payload", "err", err)
		utilities.WriteJSON(w, http.StatusUnprocessableEntity, validationBody{
			Error:   "validation error",
			Details: []FieldError{{Field: "body", Rule: "form"}},
		})
		return
	}
	tok, err := h.authority.Authenticate(r.Context(), username, password)
	if err != nil {
		if auth.IsAuthError(err) {
			h.logger.Debugw("login rejected", "username", username, "reason", err)
			Unauthorized(w, "Incorrect username or password")
			return
		}
		h.logger.Errorw("login failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: tok.String(),
		TokenType:   "bearer",
		ExpiresIn:   int64(h.authority.TTL().Seconds()),
	})
}

func loginCredentials(r *http.Request) (string, string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", "", err
		}
		return body.Username, body.Password, nil
	}
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return "", "", err
		}
	} else if err := r.ParseForm(); err != nil {
		return "", "", err
	}
	return r.PostForm.Get("username"), r.PostForm.Get("password"), nil
}

func tooLarge(w http.ResponseWriter, err error) bool {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return false
	}
	utilities.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
	return true
}

// Me returns the caller resolved by the auth gate.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		Unauthorized(w, "Could not validate credentials")
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u.ToPublic())
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err1 := queryInt(q.Get("skip"), 0)
	limit, err2 := queryInt(q.Get("limit"), DefaultListLimit)
	if err1 != nil || err2 != nil {
		utilities.WriteJSON(w, http.StatusUnprocessableEntity, validationBody{
			Error:   "validation error",
			Details: []FieldError{{Field: "skip/limit", Rule: "int"}},
		})
		return
	}
	users, err := h.svc.List(r.Context(), skip, limit)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			utilities.WriteJSON(w, http.StatusUnprocessableEntity, validationBody{Error: "validation error", Details: verr.Fields})
			return
		}
		h.logger.Errorw("list users failed", "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, "list users failed")
		return
	}
	out := make([]entity.Public, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToPublic())
	}
	utilities.WriteJSON(w, http.StatusOK, out)
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
