package models

import "time"

// Client is a contact record consumed from the admin surface. The dispatch
// core only reads phone and name; the CRUD lifecycle lives elsewhere.
type Client struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Phone         string    `db:"phone" json:"phone"`
	MonthlyAmount float64   `db:"monthly_amount" json:"monthlyAmount"`
	SignupDate    time.Time `db:"signup_date" json:"signupDate"`
	Active        bool      `db:"active" json:"active"`
}

// Debtor is one row of the pending-debt query used to build bulk reminder
// runs for a billing period.
type Debtor struct {
	ClientID     int64   `db:"client_id" json:"clientId"`
	Name         string  `db:"name" json:"name"`
	Phone        string  `db:"phone" json:"phone"`
	AmountDue    float64 `db:"amount_due" json:"amountDue"`
	PendingCount int     `db:"pending_count" json:"pendingCount"`
	Month        int     `db:"month" json:"month"`
	Year         int     `db:"year" json:"year"`
}
