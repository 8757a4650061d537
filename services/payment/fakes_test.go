package payment

import (
	"context"
	"fmt"
	"sync"

	"pawbook/models"

	"github.com/stripe/stripe-go/v76"
)

type fakeStripe struct {
	mu sync.Mutex

	customers     []*stripe.CustomerParams
	intents       []*stripe.PaymentIntentParams
	ephemeralKeys []string
	confirmed     []string

	confirmStatus stripe.PaymentIntentStatus
	confirmErr    error
	lastError     *stripe.Error
	getStatus     stripe.PaymentIntentStatus
	createErr     error
}

func (f *fakeStripe) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers = append(f.customers, params)
	return &stripe.Customer{ID: "cus_new"}, nil
}

func (f *fakeStripe) CreateEphemeralKey(ctx context.Context, customerID, apiVersion string) (*stripe.EphemeralKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemeralKeys = append(f.ephemeralKeys, customerID+"@"+apiVersion)
	return &stripe.EphemeralKey{Secret: "ek_test_" + customerID}, nil
}

func (f *fakeStripe) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.intents = append(f.intents, params)
	id := fmt.Sprintf("pi_%d", len(f.intents))
	return &stripe.PaymentIntent{ID: id, ClientSecret: id + "_secret_xyz"}, nil
}

func (f *fakeStripe) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &stripe.PaymentIntent{ID: id, Status: f.getStatus, LastPaymentError: f.lastError}, nil
}

func (f *fakeStripe) ConfirmPaymentIntent(ctx context.Context, id, paymentMethodID string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, id+":"+paymentMethodID)
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &stripe.PaymentIntent{ID: id, Status: f.confirmStatus, LastPaymentError: f.lastError}, nil
}

func (f *fakeStripe) PaymentMethodFromToken(ctx context.Context, token string) (*stripe.PaymentMethod, error) {
	return &stripe.PaymentMethod{ID: "pm_from_" + token}, nil
}

type memOwners struct {
	mu     sync.Mutex
	owners map[string]*models.Owner
}

func newMemOwners(owners ...models.Owner) *memOwners {
	m := &memOwners{owners: make(map[string]*models.Owner)}
	for i := range owners {
		o := owners[i]
		m.owners[o.ID] = &o
	}
	return m
}

func (m *memOwners) GetOwner(ctx context.Context, id string) (*models.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.owners[id]
	if !ok {
		return nil, fmt.Errorf("owner %s not found", id)
	}
	cp := *o
	return &cp, nil
}

func (m *memOwners) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[id].StripeCustomerID = customerID
	return nil
}

// scriptedProvider returns its results in order, then nil.
type scriptedProvider struct {
	mu      sync.Mutex
	results []error
	calls   int
	gate    chan struct{}
}

func (p *scriptedProvider) Confirm(ctx context.Context, clientSecret string, billing models.BillingContext) error {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	p.results = p.results[1:]
	return err
}

func (p *scriptedProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingUpdater struct {
	mu          sync.Mutex
	transitions []models.BookingStatus
	failures    []error
}

func (u *recordingUpdater) Transition(ctx context.Context, id string, to models.BookingStatus) (*models.BookingRequest, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.transitions = append(u.transitions, to)
	if len(u.failures) > 0 {
		err := u.failures[0]
		u.failures = u.failures[1:]
		return nil, err
	}
	return &models.BookingRequest{ID: id, Status: to}, nil
}

func (u *recordingUpdater) seen() []models.BookingStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]models.BookingStatus, len(u.transitions))
	copy(out, u.transitions)
	return out
}
