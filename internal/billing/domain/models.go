package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/dairy/internal/account/domain"
	"github.com/smallbiznis/dairy/internal/batch"
	billdomain "github.com/smallbiznis/dairy/internal/bill/domain"
)

var (
	ErrBillExists    = errors.New("bill_already_exists")
	ErrNothingToBill = errors.New("nothing_to_bill")
)

// Party identifies who a bill is for or who supplied the goods.
type Party struct {
	ID    snowflake.ID `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
}

// BillData is everything a document renderer needs for one bill.
type BillData struct {
	BillID      snowflake.ID               `json:"bill_id,omitempty"`
	Type        billdomain.BillType        `json:"type"`
	Account     Party                      `json:"account"`
	Period      billdomain.Period          `json:"period"`
	MonthName   string                     `json:"month_name"`
	TotalItems  int64                      `json:"total_items"`
	TotalAmount int64                      `json:"total_amount"`
	Breakdown   []billdomain.BreakdownLine `json:"product_breakdown"`
	GeneratedAt time.Time                  `json:"generated_at"`

	// Supplier is the customer's distributor, nil for distributor bills.
	Supplier *Party `json:"supplier,omitempty"`
	// Bank is where the bill should be paid, when known.
	Bank *accountdomain.BankDetails `json:"bank_account,omitempty"`
}

// DocumentGenerator renders a bill into a printable document.
type DocumentGenerator interface {
	Render(ctx context.Context, data BillData) ([]byte, error)
}

type GenerateRequest struct {
	Role   accountdomain.Role
	Period billdomain.Period
}

type Service interface {
	// GenerateBills writes one bill per eligible account of req.Role for
	// req.Period and attaches a rendered document to each.
	GenerateBills(ctx context.Context, req GenerateRequest) (batch.Summary, error)
	// RunMonthly bills customers then distributors for the previous month.
	RunMonthly(ctx context.Context) ([]batch.Summary, error)
	// Preview assembles bill data for one account without persisting it.
	Preview(ctx context.Context, accountID snowflake.ID, period billdomain.Period) (BillData, error)
	// Balance recomputes an account's balance from payments and deliveries.
	Balance(ctx context.Context, accountID snowflake.ID) (int64, error)
}

// BillTypeFor maps an account role to the bill it receives.
func BillTypeFor(role accountdomain.Role) (billdomain.BillType, error) {
	switch role {
	case accountdomain.RoleCustomer:
		return billdomain.BillTypeCustomer, nil
	case accountdomain.RoleDistributor:
		return billdomain.BillTypeDistributor, nil
	}
	return "", accountdomain.ErrInvalidRole
}

// PreviousPeriod is the month before the one containing now in loc.
func PreviousPeriod(now time.Time, loc *time.Location) billdomain.Period {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return billdomain.Period{Year: local.Year(), Month: local.Month()}.Previous()
}
