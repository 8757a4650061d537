package models

// Pet is an owner's animal as listed in the pet directory.
type Pet struct {
	ID      string `json:"id" bson:"id"`
	OwnerID string `json:"ownerId" bson:"owner_id"`
	Name    string `json:"name" bson:"name"`
	TypeID  string `json:"typeId" bson:"type_id"`
}

// CaregiverOption is a caregiver the owner may pick for a service type.
type CaregiverOption struct {
	ID           string        `json:"id" bson:"id"`
	DisplayName  string        `json:"displayName" bson:"display_name"`
	ServiceTypes []ServiceType `json:"serviceTypes" bson:"service_types"`
	Rating       float64       `json:"rating" bson:"rating"`
	Available    bool          `json:"available" bson:"available"`
	FCMToken     string        `json:"-" bson:"fcm_token,omitempty"`
}

// Owner holds the parts of an owner account this workflow needs.
type Owner struct {
	ID                     string `json:"id" bson:"id"`
	DisplayName            string `json:"displayName" bson:"display_name"`
	Email                  string `json:"email" bson:"email"`
	FCMToken               string `json:"-" bson:"fcm_token,omitempty"`
	StripeCustomerID       string `json:"-" bson:"stripe_customer_id,omitempty"`
	DefaultPaymentMethodID string `json:"-" bson:"default_payment_method_id,omitempty"`
}

// Offers reports whether the caregiver provides serviceType.
func (c CaregiverOption) Offers(serviceType ServiceType) bool {
	for _, s := range c.ServiceTypes {
		if s == serviceType {
			return true
		}
	}
	return false
}
