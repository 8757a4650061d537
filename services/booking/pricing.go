package booking

import (
	"fmt"
	"math"
	"strings"

	"pawbook/models"
)

// PriceRange is the per-visit price band for a service type, in major currency units.
type PriceRange struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Suggested float64 `json:"suggested"`
}

// MultiplePetsMultiplier applies when a booking covers two or more pets.
const MultiplePetsMultiplier = 1.3

// price range is in the default currency
var servicePrices = map[models.ServiceType]PriceRange{
	models.ServiceTraining:       {Min: 40, Max: 90, Suggested: 60},
	models.ServiceBoarding:       {Min: 35, Max: 80, Suggested: 55},
	models.ServiceWalking:        {Min: 15, Max: 35, Suggested: 20},
	models.ServiceSitting:        {Min: 25, Max: 60, Suggested: 40},
	models.ServiceGrooming:       {Min: 30, Max: 85, Suggested: 50},
	models.ServiceTransportation: {Min: 20, Max: 60, Suggested: 35},
}

// Quote is the amount charged for a booking once a caregiver accepts.
type Quote struct {
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
}

// QuoteFor prices a booking from the suggested rate of its service type.
func QuoteFor(serviceType models.ServiceType, petCount int, currency string) (Quote, error) {
	pr, ok := servicePrices[serviceType]
	if !ok {
		return Quote{}, &UnsupportedServiceTypeError{ServiceType: serviceType}
	}
	if petCount <= 0 {
		return Quote{}, fmt.Errorf("pet count must be positive, got %d", petCount)
	}
	amount := pr.Suggested
	if petCount > 1 {
		amount *= MultiplePetsMultiplier
	}
	if currency == "" {
		currency = "usd"
	}
	return Quote{
		AmountCents: int64(math.Round(amount * 100)),
		Currency:    strings.ToLower(currency),
	}, nil
}

// PriceRangeFor exposes the price band shown on the confirmation step.
func PriceRangeFor(serviceType models.ServiceType) (PriceRange, bool) {
	pr, ok := servicePrices[serviceType]
	return pr, ok
}
