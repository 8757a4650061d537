package routes

import (
	"time"

	"pawbook/handlers"
	"pawbook/middleware"
	"pawbook/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", handlers.Health)
}

// RegisterBookingRoutes sets up the owner-facing wizard and booking endpoints.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	bookingGroup := r.Group("/api/bookings")
	bookingGroup.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole(utils.RoleOwner))
	{
		bookingGroup.POST("/wizard", hb.Wizard.StartWizard)
		bookingGroup.GET("/wizard/:id", hb.Wizard.GetWizard)
		bookingGroup.PATCH("/wizard/:id", hb.Wizard.UpdateWizard)
		bookingGroup.DELETE("/wizard/:id", hb.Wizard.CancelWizard)
		bookingGroup.POST("/wizard/:id/next", hb.Wizard.NextStep)
		bookingGroup.POST("/wizard/:id/prev", hb.Wizard.PrevStep)
		bookingGroup.POST("/wizard/:id/goto", hb.Wizard.GoToStep)
		bookingGroup.POST("/wizard/:id/submit", hb.Wizard.SubmitWizard)

		bookingGroup.GET("/options/services", hb.Wizard.ServiceTypes)
		bookingGroup.GET("/options/pets", hb.Wizard.PetOptions)
		bookingGroup.GET("/options/caregivers", hb.Wizard.CaregiverOptions)

		bookingGroup.GET("", hb.Bookings.ListBookings)
		bookingGroup.GET("/:id", hb.Bookings.GetBooking)
		bookingGroup.POST("/:id/capture", hb.Bookings.CapturePayment)
		bookingGroup.GET("/:id/payments", hb.Bookings.ListPayments)
		bookingGroup.POST("/:id/payment-sheet", hb.Bookings.PaymentSheetResult)
	}
}

// RegisterOwnerRoutes registers owner settings used by notifications and payment.
func RegisterOwnerRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	ownerGroup := r.Group("/api/owners/me")
	ownerGroup.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole(utils.RoleOwner))
	{
		ownerGroup.PUT("/device", hb.Owner.UpdateDevice)
		ownerGroup.PUT("/payment-method", hb.Owner.UpdatePaymentMethod)
	}
}

// RegisterCaregiverRoutes registers the caregiver side of matching.
func RegisterCaregiverRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	caregiverGroup := r.Group("/api/caregivers")
	caregiverGroup.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole(utils.RoleCaregiver))
	{
		caregiverGroup.GET("/bookings", hb.Caregiver.ListOffers)
		caregiverGroup.POST("/bookings/:id/accept", hb.Caregiver.AcceptBooking)
		caregiverGroup.POST("/bookings/:id/reject", hb.Caregiver.RejectBooking)
		caregiverGroup.PUT("/me/device", hb.Caregiver.UpdateDevice)
		caregiverGroup.PUT("/me/availability", hb.Caregiver.UpdateAvailability)
	}
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, requestsPerMin int) {
	r.Use(handlers.RequestLogger(utils.GetLogger()))
	r.Use(utils.ErrorHandler())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware(requestsPerMin))

	RegisterHealthRoute(r)
	RegisterBookingRoutes(r, hb)
	RegisterOwnerRoutes(r, hb)
	RegisterCaregiverRoutes(r, hb)
}
