package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/learnhub/lms/core/course"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

type orderTest struct {
	*TestEnv
}

type purchaseResponse struct {
	OrderID      string `json:"orderId"`
	Amount       int    `json:"amount"`
	ClientSecret string `json:"clientSecret"`
}

func (ot *orderTest) purchaseOK(t *testing.T, courseID string) purchaseResponse {
	t.Helper()

	var resp purchaseResponse
	code, err := ot.do(http.MethodPost, "/api/courses/"+courseID+"/purchase", nil, &resp)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't create purchase order: status code %d", code)
	}
	if resp.OrderID == "" || resp.ClientSecret == "" {
		t.Fatalf("purchase response incomplete: %+v", resp)
	}

	return resp
}

// sendWebhook posts a signed payment_intent.succeeded event referencing the
// given order.
func (ot *orderTest) sendWebhook(t *testing.T, orderID string, paymentID string) int {
	t.Helper()

	obj := map[string]any{
		"id":       paymentID,
		"metadata": map[string]string{"order_id": orderID},
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: "2022-11-15",
		Type:       "payment_intent.succeeded",
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    ot.WebhookSecret,
		Timestamp: time.Now(),
	})

	r, err := http.NewRequest(http.MethodPost, ot.URL+"/api/payments/webhook", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", signed.Header)

	w, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	return w.StatusCode
}

func (ot *orderTest) ownedCourseIDs(t *testing.T) []string {
	t.Helper()

	var owned []course.Course
	code, err := ot.do(http.MethodGet, "/api/courses/owned", nil, &owned)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't list owned courses: status code %d", code)
	}

	ids := make([]string, 0, len(owned))
	for _, c := range owned {
		ids = append(ids, c.ID)
	}
	return ids
}

func (ot *orderTest) courseSales(t *testing.T, courseID string) int {
	t.Helper()

	var c course.Course
	if _, err := ot.do(http.MethodGet, "/api/courses/"+courseID, nil, &c); err != nil {
		t.Fatal(err)
	}
	return c.Sales
}

func TestWebhookSettlement(t *testing.T) {
	env, err := NewTestEnv(t, "webhook_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}
	ct := &courseTest{env}

	c := ct.createCourseOK(t, fourLessons())

	if err := ot.Login(ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	if owned := ot.ownedCourseIDs(t); len(owned) != 0 {
		t.Fatalf("fresh user owns courses: %v", owned)
	}

	ot.Stripe.expectedPrice = c.Price
	p := ot.purchaseOK(t, c.ID)
	if p.Amount != c.Price {
		t.Fatalf("order amount %d does not match course price %d", p.Amount, c.Price)
	}

	if code := ot.sendWebhook(t, p.OrderID, "pi_100"); code != http.StatusNoContent {
		t.Fatalf("webhook settle: status code %d", code)
	}

	if owned := ot.ownedCourseIDs(t); len(owned) != 1 || owned[0] != c.ID {
		t.Fatalf("expected to own course %s, got %v", c.ID, owned)
	}
	if sales := ot.courseSales(t, c.ID); sales != 1 {
		t.Fatalf("expected 1 sale, got %d", sales)
	}

	// A replayed settlement notification is a whole-unit no-op: the
	// entitlement set does not grow and the sale is not double-counted.
	if code := ot.sendWebhook(t, p.OrderID, "pi_100"); code != http.StatusNoContent {
		t.Fatalf("webhook replay: status code %d", code)
	}

	if owned := ot.ownedCourseIDs(t); len(owned) != 1 {
		t.Fatalf("replay grew the entitlement set: %v", owned)
	}
	if sales := ot.courseSales(t, c.ID); sales != 1 {
		t.Fatalf("replay double-counted the sale: %d", sales)
	}

	// A webhook for an unknown order is acknowledged without state change.
	if code := ot.sendWebhook(t, "f2c4ef0e-70a0-4a5c-b0de-86b83b07b122", "pi_999"); code != http.StatusNoContent {
		t.Fatalf("unknown-order webhook: status code %d", code)
	}
	if sales := ot.courseSales(t, c.ID); sales != 1 {
		t.Fatalf("unknown-order webhook changed sales: %d", sales)
	}
}

func TestConfirmSettlement(t *testing.T) {
	env, err := NewTestEnv(t, "confirm_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}
	ct := &courseTest{env}

	c := ct.createCourseOK(t, fourLessons())

	if err := ot.Login(ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	ot.Stripe.expectedPrice = c.Price
	p := ot.purchaseOK(t, c.ID)

	body := map[string]string{"paymentId": "pi_confirm"}
	code, err := ot.do(http.MethodPost, "/api/orders/"+p.OrderID+"/confirm", body, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusNoContent {
		t.Fatalf("confirm: status code %d", code)
	}

	// Confirming twice is a no-op, not an error.
	if code, err = ot.do(http.MethodPost, "/api/orders/"+p.OrderID+"/confirm", body, nil); err != nil {
		t.Fatal(err)
	}
	if code != http.StatusNoContent {
		t.Fatalf("confirm replay: status code %d", code)
	}
	if sales := ot.courseSales(t, c.ID); sales != 1 {
		t.Fatalf("confirm replay double-counted the sale: %d", sales)
	}

	code, err = ot.do(http.MethodPost, "/api/orders/ef8e9c72-0f8f-4a16-b4f4-94e343b224f9/confirm", body, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusNotFound {
		t.Fatalf("confirming unknown order: expected 404, got %d", code)
	}
}

func TestBuyNow(t *testing.T) {
	env, err := NewTestEnv(t, "buynow_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}
	ct := &courseTest{env}

	c := ct.createCourseOK(t, fourLessons())

	if err := ot.Login(ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	code, err := ot.do(http.MethodPost, "/api/payments/buy/"+c.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusCreated {
		t.Fatalf("buy now: status code %d", code)
	}

	if owned := ot.ownedCourseIDs(t); len(owned) != 1 || owned[0] != c.ID {
		t.Fatalf("expected to own course %s, got %v", c.ID, owned)
	}

	// The synchronous path guards against double purchases.
	if code, err = ot.do(http.MethodPost, "/api/payments/buy/"+c.ID, nil, nil); err != nil {
		t.Fatal(err)
	}
	if code != http.StatusConflict {
		t.Fatalf("double purchase: expected 409, got %d", code)
	}
	if sales := ot.courseSales(t, c.ID); sales != 1 {
		t.Fatalf("double purchase counted a sale: %d", sales)
	}
}
