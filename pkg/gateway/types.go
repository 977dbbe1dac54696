package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value serialized as a bare JSON number with two decimals.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("amount %q: %w", raw, err)
	}
	a.Decimal = d
	return nil
}

// ID accepts both numeric and string identifiers; the gateway mixes them.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type PreferenceItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   Amount `json:"unit_price"`
	CurrencyID  string `json:"currency_id"`
}

type Phone struct {
	Number string `json:"number"`
}

type PreferencePayer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone Phone  `json:"phone"`
}

type PaymentMethods struct {
	Installments        int `json:"installments"`
	DefaultInstallments int `json:"default_installments"`
}

type Shipments struct {
	Cost Amount `json:"cost"`
	Mode string `json:"mode"`
}

type BackURLs struct {
	Success string `json:"success"`
	Pending string `json:"pending"`
	Failure string `json:"failure"`
}

// PreferenceRequest is the hosted checkout payload.
type PreferenceRequest struct {
	Items              []PreferenceItem  `json:"items"`
	Payer              PreferencePayer   `json:"payer"`
	PaymentMethods     PaymentMethods    `json:"payment_methods"`
	Shipments          Shipments         `json:"shipments"`
	NotificationURL    string            `json:"notification_url"`
	BackURLs           BackURLs          `json:"back_urls"`
	AutoReturn         string            `json:"auto_return"`
	ExternalReference  string            `json:"external_reference"`
	Expires            bool              `json:"expires"`
	ExpirationDateFrom string            `json:"expiration_date_from"`
	ExpirationDateTo   string            `json:"expiration_date_to"`
	Metadata           map[string]string `json:"metadata"`
}

// Preference is the opaque handle used to redirect the customer.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type PaymentPayer struct {
	Email          string         `json:"email,omitempty"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Identification Identification `json:"identification"`
}

// PaymentRequest creates a charge that completes in-band (PIX).
type PaymentRequest struct {
	TransactionAmount Amount            `json:"transaction_amount"`
	Description       string            `json:"description"`
	PaymentMethodID   string            `json:"payment_method_id"`
	Payer             PaymentPayer      `json:"payer"`
	NotificationURL   string            `json:"notification_url"`
	ExternalReference string            `json:"external_reference"`
	Metadata          map[string]string `json:"metadata"`
}

type TransactionData struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	TicketURL    string `json:"ticket_url"`
}

type PointOfInteraction struct {
	TransactionData TransactionData `json:"transaction_data"`
}

// Payment is the gateway's view of a charge.
type Payment struct {
	ID                 ID                 `json:"id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	ExternalReference  string             `json:"external_reference"`
	TransactionAmount  Amount             `json:"transaction_amount"`
	PaymentMethodID    string             `json:"payment_method_id"`
	Metadata           map[string]any     `json:"metadata"`
	PointOfInteraction PointOfInteraction `json:"point_of_interaction"`
}

// PaymentSearch is one page of v1/payments/search.
type PaymentSearch struct {
	Results []Payment `json:"results"`
}

// Notification is the asynchronous webhook body: {type, data: {id}}.
type Notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID ID `json:"id"`
	} `json:"data"`
}

// PaymentID returns the referenced payment id when the notification is about a payment.
func (n Notification) PaymentID() (string, bool) {
	if !strings.EqualFold(strings.TrimSpace(n.Type), "payment") {
		return "", false
	}
	id := strings.TrimSpace(n.Data.ID.String())
	return id, id != ""
}
