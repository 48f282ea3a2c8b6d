package workflow

import (
	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
)

type PreviewLine struct {
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Vatable   bool            `json:"vatable"`
	CC        decimal.Decimal `json:"cc"`
}

type PreviewRequest struct {
	Lines              []PreviewLine    `json:"lines" validate:"required,min=1"`
	VatMode            *billing.VatMode `json:"vat_mode" validate:"required"`
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	VatPercentage      decimal.Decimal  `json:"vat_percentage"`
	RoundOff           *decimal.Decimal `json:"round_off"`
	AutoRoundOff       bool             `json:"auto_round_off"`
}

// PreviewValuation values a bill without touching stock or the ledger.
func PreviewValuation(req *PreviewRequest) (billing.Valuation, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return billing.Valuation{}, err
	}
	in := billing.Input{
		Lines:              make([]billing.Line, len(req.Lines)),
		VatMode:            *req.VatMode,
		DiscountPercentage: req.DiscountPercentage,
		VatPercentage:      req.VatPercentage,
		AutoRound:          req.AutoRoundOff,
	}
	if !req.AutoRoundOff {
		in.ManualRoundOff = req.RoundOff
	}
	for i, l := range req.Lines {
		in.Lines[i] = billing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice, Vatable: l.Vatable, CC: l.CC}
	}
	return billing.Valuate(in)
}
