package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/learnhub/lms/api/web"
	"github.com/learnhub/lms/api/weberr"
	"github.com/learnhub/lms/config"
	"github.com/learnhub/lms/core/claims"
	"github.com/learnhub/lms/core/course"
	"github.com/learnhub/lms/core/entitlement"
	"github.com/learnhub/lms/database"
	"github.com/learnhub/lms/random"
	"github.com/learnhub/lms/validate"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

func dollars(cents int) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func fetchCourse(ctx context.Context, db sqlx.ExtContext, id string) (course.Course, error) {
	if err := validate.CheckID(id); err != nil {
		return course.Course{}, weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
	}

	c, err := course.Fetch(ctx, db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Course{}, weberr.NotFound(err)
		}
		return course.Course{}, err
	}

	return c, nil
}

// HandlePurchase opens an order in the created state and requests a payment
// intent from the gateway, amount frozen at the course's current price.
// Without a configured gateway the order is still created and a stub client
// secret is returned, which keeps local development working end to end.
func HandlePurchase(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		c, err := fetchCourse(ctx, db, web.Param(r, "id"))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		ord := Order{
			ID:        validate.GenerateID(),
			UserID:    clm.UserID,
			CourseID:  c.ID,
			Amount:    c.Price,
			Provider:  "stripe",
			Status:    Created,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, ord); err != nil {
			return err
		}

		resp := struct {
			OrderID      string `json:"orderId"`
			Amount       int    `json:"amount"`
			ClientSecret string `json:"clientSecret"`
		}{OrderID: ord.ID, Amount: ord.Amount}

		if cfg.APISecret == "" {
			resp.ClientSecret = "stub_secret_" + random.String(16)
			return web.Respond(ctx, w, resp, http.StatusOK)
		}

		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(int64(c.Price)),
			Currency: stripe.String(string(stripe.CurrencyUSD)),
		}
		params.AddMetadata("order_id", ord.ID)

		pi, err := strp.PaymentIntents.New(params)
		if err != nil {
			return fmt.Errorf("creating payment intent for order[%s]: %w", ord.ID, err)
		}

		resp.ClientSecret = pi.ClientSecret
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandleConfirm is the explicit settlement path. Confirming an order that
// was already settled is a no-op.
func HandleConfirm(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var oc OrderConfirm
		if err := web.Decode(w, r, &oc); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(oc); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if err := Settle(ctx, db, id, oc.PaymentRef); err != nil {
			if errors.Is(err, ErrNotSettleable) {
				if _, err := Fetch(ctx, db, id); errors.Is(err, sql.ErrNoRows) {
					return weberr.NotFound(err)
				}
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleStripeWebhook is the asynchronous settlement path. Unknown or
// replayed order references are logged and acknowledged rather than
// surfaced so the gateway does not keep retrying malformed notifications.
func HandleStripeWebhook(db *sqlx.DB, cfg config.Stripe, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "payment_intent.succeeded" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		orderID := pi.Metadata["order_id"]
		if orderID == "" {
			log.Warnf("stripe payment[%s] succeeded but carries no order reference", pi.ID)
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if err := Settle(ctx, db, orderID, pi.ID); err != nil {
			if errors.Is(err, ErrNotSettleable) {
				log.Infof("stripe payment[%s]: order[%s] unknown or already settled, skipping", pi.ID, orderID)
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}
			return fmt.Errorf("the payment succeeded but its settlement failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleBuyNow is the synchronous test-mode purchase: the order is born
// settled. Unlike the asynchronous path it rejects double purchases.
func HandleBuyNow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		c, err := fetchCourse(ctx, db, web.Param(r, "course_id"))
		if err != nil {
			return err
		}

		owned, err := entitlement.Check(ctx, db, clm.UserID, c.ID)
		if err != nil {
			return err
		}
		if owned {
			return weberr.Conflict(errors.New("course already purchased"), "course already purchased")
		}

		now := time.Now().UTC()
		ord := Order{
			ID:         validate.GenerateID(),
			UserID:     clm.UserID,
			CourseID:   c.ID,
			Amount:     c.Price,
			Provider:   "test",
			PaymentRef: "test_" + random.String(16),
			Status:     Paid,
			SettledAt:  &now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := Create(ctx, tx, ord); err != nil {
				return err
			}

			if err := entitlement.Grant(ctx, tx, ord.UserID, ord.CourseID); err != nil {
				return err
			}

			return incrementSales(ctx, tx, ord.CourseID)
		})
		if err != nil {
			return err
		}

		resp := struct {
			OrderID string `json:"orderId"`
		}{OrderID: ord.ID}

		return web.Respond(ctx, w, resp, http.StatusCreated)
	}
}

// HandlePaypalCheckout opens a paypal order for one course and mirrors it
// into the ledger, bound by the paypal order id.
func HandlePaypalCheckout(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		c, err := fetchCourse(ctx, db, web.Param(r, "course_id"))
		if err != nil {
			return err
		}

		units := []paypal.PurchaseUnitRequest{{
			Items: []paypal.Item{{
				Quantity:    "1",
				Name:        c.Title,
				Description: c.Description,

				UnitAmount: &paypal.Money{
					Currency: "USD",
					Value:    dollars(c.Price),
				},
			}},

			Amount: &paypal.PurchaseUnitAmount{
				Currency: "USD",
				Value:    dollars(c.Price),

				Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
					Currency: "USD",
					Value:    dollars(c.Price),
				}},
			},
		}}

		ppOrd, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, &paypal.ApplicationContext{})
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		now := time.Now().UTC()
		ord := Order{
			ID:         validate.GenerateID(),
			UserID:     clm.UserID,
			CourseID:   c.ID,
			Amount:     c.Price,
			Provider:   "paypal",
			PaymentRef: ppOrd.ID,
			Status:     Created,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := Create(ctx, db, ord); err != nil {
			return err
		}

		return web.Respond(ctx, w, ppOrd, http.StatusOK)
	}
}

func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		paymentRef := web.Param(r, "id")

		resp, err := pp.CaptureOrder(ctx, paymentRef, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", paymentRef, err)
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", paymentRef, resp.Status)
		}

		ord, err := FetchByPaymentRef(ctx, db, paymentRef)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if err := Settle(ctx, db, ord.ID, paymentRef); err != nil && !errors.Is(err, ErrNotSettleable) {
			return fmt.Errorf("the order was payed but its settlement failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleListAll serves the full ledger to the admin console.
func HandleListAll(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		orders, err := FetchAll(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}
