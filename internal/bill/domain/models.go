package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type BillType string

const (
	BillTypeCustomer    BillType = "customer_bill"
	BillTypeDistributor BillType = "distributor_bill"
)

var (
	ErrInvalidPeriod   = errors.New("invalid_billing_period")
	ErrInvalidBillType = errors.New("invalid_bill_type")
	ErrBillNotFound    = errors.New("bill_not_found")
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

func NewPeriod(year int, month time.Month) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// PeriodOf returns the month containing d.
func PeriodOf(d time.Time) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December || p.Year < 1 {
		return ErrInvalidPeriod
	}
	return nil
}

// Start is the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant after the period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Previous is the month before p, wrapping January to December.
func (p Period) Previous() Period {
	return PeriodOf(p.Start().AddDate(0, -1, 0))
}

func (p Period) MonthName() string {
	return p.Month.String()
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// BreakdownLine is one product row of a bill.
type BreakdownLine struct {
	ProductID   snowflake.ID `json:"product_id"`
	ProductName string       `json:"product_name"`
	Quantity    int64        `json:"quantity"`
	UnitPrice   int64        `json:"unit_price"`
	Amount      int64        `json:"amount"`
}

// Bill is the monthly statement for one account. At most one exists per
// (account, type, period).
type Bill struct {
	ID               snowflake.ID                       `gorm:"primaryKey" json:"id"`
	AccountID        snowflake.ID                       `gorm:"not null;uniqueIndex:ux_bills_account_period,priority:1" json:"account_id"`
	Type             BillType                           `gorm:"type:varchar(32);not null;uniqueIndex:ux_bills_account_period,priority:2" json:"type"`
	PeriodYear       int                                `gorm:"not null;uniqueIndex:ux_bills_account_period,priority:3" json:"period_year"`
	PeriodMonth      int                                `gorm:"not null;uniqueIndex:ux_bills_account_period,priority:4" json:"period_month"`
	TotalItems       int64                              `gorm:"not null" json:"total_items"`
	TotalAmount      int64                              `gorm:"not null" json:"total_amount"`
	ProductBreakdown datatypes.JSONSlice[BreakdownLine] `gorm:"not null" json:"product_breakdown"`
	DocumentName     *string                            `json:"document_name,omitempty"`
	Document         []byte                             `json:"-"`
	CreatedAt        time.Time                          `gorm:"not null" json:"created_at"`
}

func (Bill) TableName() string { return "bills" }

func (b Bill) Period() Period {
	return Period{Year: b.PeriodYear, Month: time.Month(b.PeriodMonth)}
}
