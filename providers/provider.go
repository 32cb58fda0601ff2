package providers

import "context"

// PaymentProvider defines the calls the checkout flow makes to a payment gateway.
type PaymentProvider interface {
	// CreatePayment registers a payment and returns the hosted checkout link.
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentLink, error)

	// VerifyByReference asks the gateway for the state of the transaction with our reference.
	// A non-nil Verification means the gateway answered; an error means it could not be reached
	// or its answer could not be read.
	VerifyByReference(ctx context.Context, reference string) (*Verification, error)
}

type Customer struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phonenumber"`
	Name        string `json:"name"`
}

type Customizations struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo,omitempty"`
}

type PaymentRequest struct {
	Reference      string
	Amount         float64
	Currency       string
	RedirectURL    string
	PaymentOptions string
	Customer       Customer
	Customizations Customizations
}

type PaymentLink struct {
	URL string
}

type Verification struct {
	Status        string // envelope status, "success" when the lookup worked
	Message       string
	TransactionID int64
	Reference     string
	GatewayRef    string
	Amount        float64
	Currency      string
	TxStatus      string // transaction status, "successful" when paid
}

// Successful reports whether the gateway confirmed the payment.
func (v *Verification) Successful() bool {
	return v != nil && v.Status == "success" && v.TxStatus == "successful"
}

// GatewayError is an answer from the gateway that rejected the request.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return e.Message
}
