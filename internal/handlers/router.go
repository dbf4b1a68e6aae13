package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rentnest/rentnest/internal/middleware"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	Auth       *AuthHandlers
	Users      *UserHandlers
	Properties *PropertyHandlers
	Payments   *PaymentHandlers
}

func NewRouter(h Handlers, authMiddleware *middleware.AuthMiddleware, corsOrigins []string, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoverMiddleware(logger))
	router.Use(middleware.CORSMiddleware(corsOrigins))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api/v1").Subrouter()
	protected := func(fn http.HandlerFunc) http.Handler {
		return authMiddleware.RequireAuth(fn)
	}

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register", h.Auth.Register).Methods("POST", "OPTIONS")
	auth.HandleFunc("/login", h.Auth.Login).Methods("POST", "OPTIONS")
	auth.HandleFunc("/otp/request", h.Auth.RequestOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/otp/verify", h.Auth.VerifyOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/google", h.Auth.GoogleLogin).Methods("POST", "OPTIONS")
	auth.HandleFunc("/refresh", h.Auth.RefreshToken).Methods("POST", "OPTIONS")
	auth.Handle("/logout", protected(h.Auth.Logout)).Methods("POST", "OPTIONS")

	api.Handle("/me", protected(h.Users.Me)).Methods("GET", "OPTIONS")
	api.Handle("/me/host", protected(h.Users.BecomeHost)).Methods("POST", "OPTIONS")
	api.Handle("/me/properties", protected(h.Properties.ListMine)).Methods("GET", "OPTIONS")

	api.HandleFunc("/properties", h.Properties.List).Methods("GET", "OPTIONS")
	api.Handle("/properties", protected(h.Properties.Create)).Methods("POST")
	api.HandleFunc("/properties/{id}", h.Properties.Get).Methods("GET", "OPTIONS")
	api.Handle("/properties/{id}", protected(h.Properties.Update)).Methods("PUT")
	api.Handle("/properties/{id}", protected(h.Properties.Delete)).Methods("DELETE")
	api.Handle("/properties/{id}/images", protected(h.Properties.UploadImages)).Methods("POST", "OPTIONS")
	api.Handle("/properties/{id}/images", protected(h.Properties.DeleteImage)).Methods("DELETE")
	api.Handle("/properties/{id}/contact", protected(h.Properties.RevealContact)).Methods("POST", "OPTIONS")

	api.Handle("/payments/upgrade/order", protected(h.Payments.CreateUpgradeOrder)).Methods("POST", "OPTIONS")
	api.Handle("/payments/upgrade/verify", protected(h.Payments.VerifyUpgrade)).Methods("POST", "OPTIONS")

	return router
}
