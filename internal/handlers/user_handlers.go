package handlers

import (
	"net/http"

	"github.com/rentnest/rentnest/internal/service"
	"github.com/sirupsen/logrus"
)

type UserHandlers struct {
	userService *service.UserService
	logger      *logrus.Logger
}

func NewUserHandlers(userService *service.UserService, logger *logrus.Logger) *UserHandlers {
	return &UserHandlers{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandlers) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.userService.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

func (h *UserHandlers) BecomeHost(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.BecomeHost(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}
