package order

import "time"

type Status string

const (
	Created Status = "created"
	Paid    Status = "paid"
	Failed  Status = "failed"
)

// Order is one purchase attempt. Amount is captured at creation time and
// stays decoupled from the course's current price. SettledAt is the
// settlement-applied marker: it is stamped exactly once, inside the same
// transaction that grants the entitlement and counts the sale, so replayed
// settlement notifications are detected and skipped as a unit.
type Order struct {
	ID         string     `json:"id" db:"order_id"`
	UserID     string     `json:"userId" db:"user_id"`
	CourseID   string     `json:"courseId" db:"course_id"`
	Amount     int        `json:"amount" db:"amount"`
	Provider   string     `json:"provider" db:"provider"`
	PaymentRef string     `json:"paymentRef" db:"payment_ref"`
	Status     Status     `json:"status" db:"status"`
	SettledAt  *time.Time `json:"settledAt" db:"settled_at"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

type OrderConfirm struct {
	PaymentRef string `json:"paymentId" validate:"required"`
}

// AdminOrder decorates the ledger entry for the admin console.
type AdminOrder struct {
	Order
	UserEmail   string `json:"userEmail" db:"user_email"`
	CourseTitle string `json:"courseTitle" db:"course_title"`
}
