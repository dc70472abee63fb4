package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	service "github.com/honeynil/wallet-service/internal/services"
	pkgerrors "github.com/honeynil/wallet-service/pkg/errors"
)

type Handler struct {
	service service.UserService
}

func NewHandler(s service.UserService) *Handler {
	return &Handler{service: s}
}

// The original surface answers 411 for malformed or duplicate input; kept
// as documented behavior.
const statusInvalidInput = http.StatusLengthRequired

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/user/signup", h.Signup).Methods("POST")
	r.HandleFunc("/user/signin", h.Signin).Methods("POST")
	r.HandleFunc("/user/bulk", h.ListUsers).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/user/", h.UpdateProfile).Methods("PUT")
	r.HandleFunc("/user/getUser", h.GetUser).Methods("GET")
	r.HandleFunc("/account/balance", h.GetBalance).Methods("GET")
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, statusInvalidInput, "Incorrect inputs")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeMessage(w, statusInvalidInput, "Incorrect inputs")
		return
	}

	token, err := h.service.Register(r.Context(), req.Username, req.FirstName, req.LastName, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrEmailTaken):
			h.writeMessage(w, statusInvalidInput, "Email already taken")
		case errors.Is(err, pkgerrors.ErrMissingSecret):
			h.writeMessage(w, http.StatusInternalServerError, "JWT secret is missing")
		default:
			h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "User created successfully",
		"token":   token,
	})
}

func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, statusInvalidInput, "Incorrect inputs")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeMessage(w, statusInvalidInput, "Incorrect inputs")
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrUserNotFound):
			h.writeMessage(w, http.StatusNotFound, "User not found")
		case errors.Is(err, pkgerrors.ErrInvalidCredentials):
			h.writeMessage(w, http.StatusUnauthorized, "Wrong credentials")
		case errors.Is(err, pkgerrors.ErrMissingSecret):
			h.writeMessage(w, http.StatusInternalServerError, "JWT secret is missing")
		default:
			h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int32)
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, statusInvalidInput, "Error while updating information")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeMessage(w, statusInvalidInput, "Error while updating information")
		return
	}

	err := h.service.UpdateProfile(r.Context(), userID, service.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeMessage(w, http.StatusOK, "Updated successfully")
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")

	users, err := h.service.ListUsers(r.Context(), filter)
	if err != nil {
		h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string][]UserResponse{"users": resp})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int32)
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrUserNotFound) {
			h.writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int32)
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrAccountNotFound) {
			h.writeMessage(w, http.StatusNotFound, "Account not found")
			return
		}
		h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}
