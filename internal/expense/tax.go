package expense

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// TaxBreakdown carries the derived tax components of a cost line.
// Total follows the net convention used by the ledger:
// amount + VAT - WHT.
type TaxBreakdown struct {
	VAT   decimal.Decimal
	WHT   decimal.Decimal
	Total decimal.Decimal
}

// CalculateTax derives VAT, withholding tax and net total from an amount
// and its stored percentage rates. A zero rate is a valid rate and yields
// a zero component; it never means "unset".
func CalculateTax(amount, vatRate, whtRate decimal.Decimal) (TaxBreakdown, error) {
	if amount.Sign() <= 0 {
		return TaxBreakdown{}, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if vatRate.Sign() < 0 {
		return TaxBreakdown{}, fmt.Errorf("%w: vat rate must not be negative", ErrValidation)
	}
	if whtRate.Sign() < 0 {
		return TaxBreakdown{}, fmt.Errorf("%w: wht rate must not be negative", ErrValidation)
	}

	vat := amount.Mul(vatRate).Div(oneHundred)
	wht := amount.Mul(whtRate).Div(oneHundred)
	total := amount.Add(vat).Sub(wht)

	return TaxBreakdown{VAT: vat, WHT: wht, Total: total}, nil
}
