package test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/learnhub/lms/api/web"
	"github.com/plutov/paypal/v4"
	mock "github.com/stripe/stripe-mock/param"
)

type mockPaypal struct {
	expectedPrice int
}

func (m *mockPaypal) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units) != 1 || len(pu.Units[0].Items) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		want := fmt.Sprintf("%d.%02d", m.expectedPrice/100, m.expectedPrice%100)
		if pu.Units[0].Amount.Value != want {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		randID := fmt.Sprintf("paypal-%d", rand.Intn(300))
		ord := paypal.Order{ID: randID}
		web.Respond(context.Background(), w, ord, 200)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ord := paypal.Order{Status: "COMPLETED"}
		web.Respond(context.Background(), w, ord, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}

type mockStripe struct {
	expectedPrice int
}

func (m *mockStripe) handle() http.Handler {
	intents := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)

		amount, ok := params["amount"].(string)
		if !ok || amount != strconv.Itoa(m.expectedPrice) {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if params["currency"] != "usd" {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		md, ok := params["metadata"].(map[string]any)
		if !ok {
			web.Respond(context.Background(), w, nil, 400)
			return
		}
		if id, _ := md["order_id"].(string); id == "" {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		randID := fmt.Sprintf("pi_mock_%d", rand.Intn(300))
		pi := map[string]any{
			"id":            randID,
			"client_secret": randID + "_secret",
		}
		web.Respond(context.Background(), w, pi, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/payment_intents", intents).Methods("POST")
	return r
}

func TestPaypalCheckout(t *testing.T) {
	env, err := NewTestEnv(t, "paypal_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}
	ct := &courseTest{env}

	c := ct.createCourseOK(t, fourLessons())
	ot.Paypal.expectedPrice = c.Price

	if err := ot.Login(ot.UserEmail, ot.UserPass); err != nil {
		t.Fatal(err)
	}
	defer ot.Logout()

	var ord paypal.Order
	code, err := ot.do(http.MethodPost, "/api/orders/paypal/"+c.ID, nil, &ord)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusOK {
		t.Fatalf("can't create paypal order: status code %d", code)
	}
	if ord.ID == "" {
		t.Fatal("paypal order carries no id")
	}

	code, err = ot.do(http.MethodPost, "/api/orders/paypal/"+ord.ID+"/capture", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusNoContent {
		t.Fatalf("can't capture paypal order: status code %d", code)
	}

	if owned := ot.ownedCourseIDs(t); len(owned) != 1 || owned[0] != c.ID {
		t.Fatalf("expected to own course %s, got %v", c.ID, owned)
	}
	if sales := ot.courseSales(t, c.ID); sales != 1 {
		t.Fatalf("expected 1 sale, got %d", sales)
	}
}
