package handlers

import (
	"net/http"

	appmw "github.com/campuspoints/loyalty-backend/internal/middleware"
	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every endpoint behind the shared middleware chain. All
// routes except token issuance and the reset flow require a bearer token.
func NewRouter(
	auth *appmw.AuthMiddleware,
	authHandler *AuthHandler,
	userHandler *UserHandler,
	transactionHandler *TransactionHandler,
	eventHandler *EventHandler,
	promotionHandler *PromotionHandler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/tokens", authHandler.IssueToken)
		r.Post("/resets", authHandler.RequestReset)
		r.Post("/resets/{resetToken}", authHandler.CompleteReset)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticator)

		r.Route("/users", func(r chi.Router) {
			r.With(auth.RequireClearance(models.RoleCashier)).Post("/", userHandler.Register)
			r.With(auth.RequireClearance(models.RoleManager)).Get("/", userHandler.List)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", userHandler.GetMe)
				r.Patch("/", userHandler.UpdateMe)
				r.Patch("/password", userHandler.UpdatePassword)
				r.Post("/transactions", transactionHandler.CreateRedemption)
				r.Get("/transactions", transactionHandler.ListMine)
			})

			r.Get("/utorid/{utorid}", userHandler.GetByUtorid)
			r.With(auth.RequireClearance(models.RoleCashier)).Get("/{userId}", userHandler.Get)
			r.With(auth.RequireClearance(models.RoleManager)).Patch("/{userId}", userHandler.Update)
			r.Post("/{userId}/transactions", transactionHandler.CreateTransfer)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.With(auth.RequireClearance(models.RoleCashier)).Post("/", transactionHandler.Create)
			r.With(auth.RequireClearance(models.RoleManager)).Get("/", transactionHandler.List)
			r.With(auth.RequireClearance(models.RoleManager)).Get("/{transactionId}", transactionHandler.Get)
			r.With(auth.RequireClearance(models.RoleManager)).Patch("/{transactionId}/suspicious", transactionHandler.SetSuspicious)
			r.With(auth.RequireClearance(models.RoleCashier)).Patch("/{transactionId}/processed", transactionHandler.Process)
		})

		r.Route("/events", func(r chi.Router) {
			r.With(auth.RequireClearance(models.RoleManager)).Post("/", eventHandler.Create)
			r.Get("/", eventHandler.List)
			r.Get("/{eventId}", eventHandler.Get)
			r.Patch("/{eventId}", eventHandler.Update)
			r.With(auth.RequireClearance(models.RoleManager)).Delete("/{eventId}", eventHandler.Delete)

			r.With(auth.RequireClearance(models.RoleManager)).Post("/{eventId}/organizers", eventHandler.AddOrganizer)
			r.With(auth.RequireClearance(models.RoleManager)).Delete("/{eventId}/organizers/{userId}", eventHandler.RemoveOrganizer)

			r.Post("/{eventId}/guests", eventHandler.AddGuest)
			r.Post("/{eventId}/guests/me", eventHandler.Join)
			r.Delete("/{eventId}/guests/me", eventHandler.Leave)
			r.With(auth.RequireClearance(models.RoleManager)).Delete("/{eventId}/guests/{userId}", eventHandler.RemoveGuest)

			r.Post("/{eventId}/transactions", transactionHandler.AwardEventPoints)
		})

		r.Route("/promotions", func(r chi.Router) {
			r.With(auth.RequireClearance(models.RoleManager)).Post("/", promotionHandler.Create)
			r.Get("/", promotionHandler.List)
			r.Get("/{promotionId}", promotionHandler.Get)
			r.With(auth.RequireClearance(models.RoleManager)).Patch("/{promotionId}", promotionHandler.Update)
			r.With(auth.RequireClearance(models.RoleManager)).Delete("/{promotionId}", promotionHandler.Delete)
		})
	})

	return r
}
