package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL("http://gateway.test"), WithHTTPClient(&http.Client{Transport: rt})}, opts...)
	client, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreatePreferenceRequest(t *testing.T) {
	var captured *http.Request
	var payload map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		captured = req
		body, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(http.StatusCreated, `{"id":"pref-1","init_point":"https://pay.test/pref-1"}`), nil
	})

	pref, err := client.CreatePreference(context.Background(), "tok", "order-1", PreferenceRequest{
		Items: []PreferenceItem{{ID: "a", Title: "Burger", Quantity: 2, UnitPrice: NewAmount(decimal.RequireFromString("15")), CurrencyID: "BRL"}},
	})
	if err != nil {
		t.Fatalf("create preference: %v", err)
	}
	if pref.ID != "pref-1" || pref.InitPoint == "" {
		t.Fatalf("unexpected preference %+v", pref)
	}
	if captured.URL.String() != "http://gateway.test/checkout/preferences" {
		t.Fatalf("unexpected url %s", captured.URL)
	}
	if captured.Header.Get("Authorization") != "Bearer tok" {
		t.Fatalf("missing bearer token")
	}
	if captured.Header.Get("X-Idempotency-Key") != "order-1" {
		t.Fatalf("missing idempotency key")
	}
	items := payload["items"].([]any)
	if price := items[0].(map[string]any)["unit_price"]; price != 15.0 {
		t.Fatalf("unit price must be a bare number, got %#v", price)
	}
}

func TestCreatePreferenceRequiresItems(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	_, err := client.CreatePreference(context.Background(), "tok", "", PreferenceRequest{})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetPaymentDecodesNumericID(t *testing.T) {
	var observed []string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/payments/123" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		if req.Header.Get("X-Idempotency-Key") != "" {
			t.Fatalf("lookups must not carry an idempotency key")
		}
		return jsonResponse(http.StatusOK, `{"id":123,"status":"approved","status_detail":"accredited","external_reference":"ord","transaction_amount":30.5,"point_of_interaction":{"transaction_data":{"qr_code":"000201"}}}`), nil
	}, WithObserver(func(op string, status int, _ time.Duration) {
		observed = append(observed, op)
	}))

	payment, err := client.GetPayment(context.Background(), "tok", "123")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.ID != "123" || payment.Status != "approved" || payment.ExternalReference != "ord" {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if !payment.TransactionAmount.Equal(decimal.RequireFromString("30.5")) {
		t.Fatalf("unexpected amount %s", payment.TransactionAmount)
	}
	if payment.PointOfInteraction.TransactionData.QRCode != "000201" {
		t.Fatalf("missing qr payload")
	}
	if len(observed) != 1 || observed[0] != OpGetPayment {
		t.Fatalf("expected observer call, got %v", observed)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"message":"not found"}`), nil
	})
	_, err := client.GetPayment(context.Background(), "tok", "999")
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSearchPaymentsByExternalReference(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/payments/search" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		if got := req.URL.Query().Get("external_reference"); got != "ord-1" {
			t.Fatalf("unexpected external reference %q", got)
		}
		if req.URL.Query().Get("criteria") != "desc" {
			t.Fatalf("results must be newest first")
		}
		return jsonResponse(http.StatusOK, `{"paging":{"total":2},"results":[{"id":778,"status":"approved","external_reference":"ord-1"},{"id":"777","status":"rejected","external_reference":"ord-1"}]}`), nil
	})

	results, err := client.SearchPayments(context.Background(), "tok", " ord-1 ")
	if err != nil {
		t.Fatalf("search payments: %v", err)
	}
	if len(results) != 2 || results[0].ID != "778" || results[1].ID != "777" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestSearchPaymentsRequiresReference(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	if _, err := client.SearchPayments(context.Background(), "tok", ""); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransportFailureIsGatewayError(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("context deadline exceeded")
	})
	_, err := client.CreatePayment(context.Background(), "tok", "k", PaymentRequest{})
	if !pkgerrors.Is(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestServerErrorIsGatewayError(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `boom`), nil
	})
	_, err := client.GetPayment(context.Background(), "tok", "1")
	if !pkgerrors.Is(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestMissingAccessToken(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	if _, err := client.GetPayment(context.Background(), " ", "1"); !pkgerrors.Is(err, pkgerrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestNotificationPaymentID(t *testing.T) {
	cases := []struct {
		body string
		id   string
		ok   bool
	}{
		{`{"type":"payment","data":{"id":"42"}}`, "42", true},
		{`{"type":"payment","data":{"id":42}}`, "42", true},
		{`{"type":"merchant_order","data":{"id":"42"}}`, "", false},
		{`{"type":"payment","data":{}}`, "", false},
	}
	for _, tc := range cases {
		var n Notification
		if err := json.Unmarshal([]byte(tc.body), &n); err != nil {
			t.Fatalf("decode %s: %v", tc.body, err)
		}
		id, ok := n.PaymentID()
		if id != tc.id || ok != tc.ok {
			t.Fatalf("%s: got (%q,%v), want (%q,%v)", tc.body, id, ok, tc.id, tc.ok)
		}
	}
}
