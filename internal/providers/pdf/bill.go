package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	billdomain "github.com/smallbiznis/dairy/internal/bill/domain"
	billingdomain "github.com/smallbiznis/dairy/internal/billing/domain"
)

const defaultIssuer = "Dairy"

// BillRenderer lays bills out as A4 PDFs.
type BillRenderer struct {
	issuer string
}

func New() billingdomain.DocumentGenerator {
	return &BillRenderer{issuer: defaultIssuer}
}

func (r *BillRenderer) Render(ctx context.Context, data billingdomain.BillData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	seller := r.issuer
	var sellerLines []string
	if data.Supplier != nil {
		seller = data.Supplier.Name
		if data.Supplier.Email != "" {
			sellerLines = append(sellerLines, "Email: "+data.Supplier.Email)
		}
	}
	header := col.New(8).Add(text.New(strings.ToUpper(seller), props.Text{Size: 12, Style: fontstyle.Bold}))
	for i, line := range sellerLines {
		header.Add(text.New(line, props.Text{Top: float64(6 + 4*i), Size: 9}))
	}
	m.AddRow(20, header, col.New(4))

	m.AddRow(12,
		text.NewCol(12, title(data.Type), props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(data.Account.Name, props.Text{Top: 5, Size: 9}),
			text.New(data.Account.Email, props.Text{Top: 9, Size: 9}),
		),
		col.New(6).Add(
			text.New("Bill no: "+billNumber(data), props.Text{Size: 9, Align: align.Right}),
			text.New(fmt.Sprintf("Period: %s %d", data.MonthName, data.Period.Year), props.Text{Top: 4, Size: 9, Align: align.Right}),
			text.New("Generated: "+data.GeneratedAt.Format("02 Jan 2006"), props.Text{Top: 8, Size: 9, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(1, "#", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(5, "Product", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Rate", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for i, line := range data.Breakdown {
		m.AddRow(8,
			text.NewCol(1, fmt.Sprintf("%d", i+1), props.Text{Size: 9}),
			text.NewCol(5, line.ProductName, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", line.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, money(line.UnitPrice), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, money(line.Amount), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(6),
		text.NewCol(2, "Total items", props.Text{Size: 9}),
		text.NewCol(4, fmt.Sprintf("%d", data.TotalItems), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(6),
		text.NewCol(2, "Amount due", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(4, money(data.TotalAmount), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	if bank := data.Bank; bank != nil {
		pay := col.New(12).Add(text.New("Pay to", props.Text{Style: fontstyle.Bold, Size: 9}))
		top := 5.0
		for _, line := range []string{
			labeled("Bank name", bank.BankName),
			labeled("Account no", bank.AccountNo),
			labeled("IFSC code", bank.IFSCCode),
			labeled("Account holder", bank.HolderName),
		} {
			if line == "" {
				continue
			}
			pay.Add(text.New(line, props.Text{Top: top, Size: 9}))
			top += 4
		}
		m.AddRow(top+4, pay)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func title(t billdomain.BillType) string {
	if t == billdomain.BillTypeDistributor {
		return "Distributor Bill"
	}
	return "Tax Invoice"
}

func billNumber(data billingdomain.BillData) string {
	if data.BillID == 0 {
		return "DRAFT"
	}
	return data.BillID.String()
}

func labeled(label, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return label + ": " + value
}

// money prints whole rupees with thousands separators.
func money(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "Rs. " + sign + b.String()
}
