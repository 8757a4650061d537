// models/service_type.go
package models

// ServiceType identifies the kind of pet care being booked.
type ServiceType string

const (
	ServiceTraining       ServiceType = "training"
	ServiceBoarding       ServiceType = "boarding"
	ServiceWalking        ServiceType = "walking"
	ServiceSitting        ServiceType = "sitting"
	ServiceGrooming       ServiceType = "grooming"
	ServiceTransportation ServiceType = "transportation"
)

// ServiceTypes lists every declared service type in display order.
var ServiceTypes = []ServiceType{
	ServiceTraining,
	ServiceBoarding,
	ServiceWalking,
	ServiceSitting,
	ServiceGrooming,
	ServiceTransportation,
}

func (s ServiceType) Valid() bool {
	for _, t := range ServiceTypes {
		if t == s {
			return true
		}
	}
	return false
}

// Platform is the client surface that drives a booking; it selects the payment provider.
type Platform string

const (
	PlatformMobile Platform = "mobile"
	PlatformWeb    Platform = "web"
)

func (p Platform) Valid() bool {
	return p == PlatformMobile || p == PlatformWeb
}
