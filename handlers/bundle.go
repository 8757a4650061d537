package handlers

// HandlerBundle groups all endpoint handlers for route registration.
type HandlerBundle struct {
	Wizard    *WizardHandler
	Bookings  *BookingHandler
	Caregiver *CaregiverHandler
	Owner     *OwnerHandler
}
