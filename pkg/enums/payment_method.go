package enums

import "fmt"

// PaymentMethod identifies how an order is settled.
type PaymentMethod string

const (
	// PaymentMethodPix completes in-band with a QR code.
	PaymentMethodPix PaymentMethod = "pix"
	// PaymentMethodCheckout redirects to the gateway's hosted checkout.
	PaymentMethodCheckout PaymentMethod = "checkout"
	// PaymentMethodCash is collected on delivery and never touches the gateway.
	PaymentMethodCash PaymentMethod = "cash"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodPix,
	PaymentMethodCheckout,
	PaymentMethodCash,
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// UsesGateway reports whether the method requires gateway credentials.
func (p PaymentMethod) UsesGateway() bool {
	return p == PaymentMethodPix || p == PaymentMethodCheckout
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
