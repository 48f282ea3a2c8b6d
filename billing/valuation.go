package billing

import (
	"fmt"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Vatable   bool
	// CC is a carrying cost added to the line after discount.
	CC decimal.Decimal
}

type Input struct {
	Lines              []Line
	VatMode            VatMode
	DiscountPercentage decimal.Decimal
	VatPercentage      decimal.Decimal
	// ManualRoundOff is used only when AutoRound is off.
	ManualRoundOff *decimal.Decimal
	AutoRound      bool
}

// LineValuation is the share of the bill totals carried by one line.
// Net excludes VAT.
type LineValuation struct {
	Gross    decimal.Decimal `json:"gross"`
	Discount decimal.Decimal `json:"discount"`
	CC       decimal.Decimal `json:"cc"`
	Net      decimal.Decimal `json:"net"`
	Vat      decimal.Decimal `json:"vat"`
}

// Amount is what the party owes for the line, VAT included.
func (l LineValuation) Amount() decimal.Decimal {
	return l.Net.Add(l.Vat)
}

type Valuation struct {
	SubTotal             decimal.Decimal `json:"sub_total"`
	TaxableSubTotal      decimal.Decimal `json:"taxable_sub_total"`
	NonTaxableSubTotal   decimal.Decimal `json:"non_taxable_sub_total"`
	DiscountOnTaxable    decimal.Decimal `json:"discount_on_taxable"`
	DiscountOnNonTaxable decimal.Decimal `json:"discount_on_non_taxable"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	TaxableCC            decimal.Decimal `json:"taxable_cc"`
	NonTaxableCC         decimal.Decimal `json:"non_taxable_cc"`
	TaxableAmount        decimal.Decimal `json:"taxable_amount"`
	NonVatAmount         decimal.Decimal `json:"non_vat_amount"`
	VatAmount            decimal.Decimal `json:"vat_amount"`
	RoundOffAmount       decimal.Decimal `json:"round_off_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Lines                []LineValuation `json:"lines"`
}

// NetAmount is the taxable plus non-taxable amount, before VAT and round off.
func (v Valuation) NetAmount() decimal.Decimal {
	return v.TaxableAmount.Add(v.NonVatAmount)
}

// Valuate turns bill lines into totals:
//
//	finalTaxable    = taxable    - taxable*disc/100    + taxableCC
//	finalNonTaxable = nonTaxable - nonTaxable*disc/100 + nonTaxableCC
//	vat             = finalTaxable*vat/100 (0 when exempt)
//	total           = finalTaxable + finalNonTaxable + vat + roundOff
func Valuate(in Input) (Valuation, error) {
	if err := validateInput(in); err != nil {
		return Valuation{}, err
	}

	v := Valuation{
		SubTotal:           decimal.Zero,
		TaxableSubTotal:    decimal.Zero,
		NonTaxableSubTotal: decimal.Zero,
		TaxableCC:          decimal.Zero,
		NonTaxableCC:       decimal.Zero,
		Lines:              make([]LineValuation, len(in.Lines)),
	}
	lastTaxable, lastNonTaxable := -1, -1
	for i, l := range in.Lines {
		gross := l.Quantity.Mul(l.UnitPrice)
		cc := l.CC
		v.Lines[i] = LineValuation{Gross: gross, CC: cc}
		v.SubTotal = v.SubTotal.Add(gross)
		if l.Vatable {
			v.TaxableSubTotal = v.TaxableSubTotal.Add(gross)
			v.TaxableCC = v.TaxableCC.Add(cc)
			lastTaxable = i
		} else {
			v.NonTaxableSubTotal = v.NonTaxableSubTotal.Add(gross)
			v.NonTaxableCC = v.NonTaxableCC.Add(cc)
			lastNonTaxable = i
		}
	}

	v.DiscountOnTaxable = discountOf(v.TaxableSubTotal, in.DiscountPercentage)
	v.DiscountOnNonTaxable = discountOf(v.NonTaxableSubTotal, in.DiscountPercentage)
	v.DiscountAmount = v.DiscountOnTaxable.Add(v.DiscountOnNonTaxable)

	v.TaxableAmount = v.TaxableSubTotal.Sub(v.DiscountOnTaxable).Add(v.TaxableCC).Round(2)
	v.NonVatAmount = v.NonTaxableSubTotal.Sub(v.DiscountOnNonTaxable).Add(v.NonTaxableCC).Round(2)

	switch in.VatMode {
	case VatModeExempt:
		v.VatAmount = decimal.Zero
	case VatModeStandard, VatModeOverride:
		v.VatAmount = v.TaxableAmount.Mul(in.VatPercentage).DivRound(hundred, 2)
	}

	total := v.TaxableAmount.Add(v.NonVatAmount).Add(v.VatAmount)
	switch {
	case in.AutoRound:
		v.RoundOffAmount = total.Round(0).Sub(total)
	case in.ManualRoundOff != nil:
		v.RoundOffAmount = *in.ManualRoundOff
	default:
		v.RoundOffAmount = decimal.Zero
	}
	v.TotalAmount = total.Add(v.RoundOffAmount)

	allocate(&v, in, true, lastTaxable)
	allocate(&v, in, false, lastNonTaxable)
	return v, nil
}

// allocate spreads the partition's discount and VAT over its lines. The last
// line of the partition takes the rounding residue so line sums match the
// header amounts.
func allocate(v *Valuation, in Input, vatable bool, last int) {
	if last < 0 {
		return
	}
	partDiscount, partAmount := v.DiscountOnNonTaxable, v.NonVatAmount
	partVat := decimal.Zero
	if vatable {
		partDiscount, partAmount, partVat = v.DiscountOnTaxable, v.TaxableAmount, v.VatAmount
	}
	discountSum, netSum, vatSum := decimal.Zero, decimal.Zero, decimal.Zero
	for i, l := range in.Lines {
		if l.Vatable != vatable {
			continue
		}
		lv := &v.Lines[i]
		if i == last {
			lv.Discount = partDiscount.Sub(discountSum)
			lv.Net = partAmount.Sub(netSum)
			lv.Vat = partVat.Sub(vatSum)
			return
		}
		lv.Discount = discountOf(lv.Gross, in.DiscountPercentage)
		lv.Net = lv.Gross.Sub(lv.Discount).Add(lv.CC).Round(2)
		lv.Vat = decimal.Zero
		if vatable && in.VatMode != VatModeExempt {
			lv.Vat = lv.Net.Mul(in.VatPercentage).DivRound(hundred, 2)
		}
		discountSum = discountSum.Add(lv.Discount)
		netSum = netSum.Add(lv.Net)
		vatSum = vatSum.Add(lv.Vat)
	}
}

func discountOf(amount, percentage decimal.Decimal) decimal.Decimal {
	if !percentage.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(percentage).DivRound(hundred, 4)
}

func validateInput(in Input) error {
	if len(in.Lines) == 0 {
		return apperrors.ErrValidation("bill has no line items")
	}
	if in.DiscountPercentage.IsNegative() || in.DiscountPercentage.GreaterThan(hundred) {
		return apperrors.ErrValidationf("discount percentage %s must be between 0 and 100", in.DiscountPercentage)
	}
	if in.VatPercentage.IsNegative() {
		return apperrors.ErrValidationf("vat percentage %s must not be negative", in.VatPercentage)
	}
	for i, l := range in.Lines {
		line := fmt.Sprintf("line %d", i+1)
		if !l.Quantity.IsPositive() {
			return apperrors.ErrValidationf("%s: quantity must be greater than zero", line).WithDetail("line", fmt.Sprint(i+1))
		}
		if l.UnitPrice.IsNegative() {
			return apperrors.ErrValidationf("%s: unit price must not be negative", line).WithDetail("line", fmt.Sprint(i+1))
		}
		if l.CC.IsNegative() {
			return apperrors.ErrValidationf("%s: cc must not be negative", line).WithDetail("line", fmt.Sprint(i+1))
		}
	}
	return checkVatMix(in)
}

// checkVatMix rejects bills whose items contradict the bill's VAT mode.
func checkVatMix(in Input) error {
	for i, l := range in.Lines {
		switch in.VatMode {
		case VatModeExempt:
			if l.Vatable {
				return apperrors.ErrVatMismatch(fmt.Sprintf("line %d: vatable item on a VAT exempt bill", i+1))
			}
		case VatModeStandard:
			if !l.Vatable {
				return apperrors.ErrVatMismatch(fmt.Sprintf("line %d: non-vatable item on a VAT bill", i+1))
			}
		case VatModeOverride:
		default:
			return apperrors.ErrValidationf("unknown vat mode %d", int(in.VatMode))
		}
	}
	return nil
}
