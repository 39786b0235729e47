package engine

import (
	"errors"
	"fmt"

	"github.com/civitax/engine/internal/models"
	"github.com/shopspring/decimal"
)

var ErrInvalidFactorPercentage = errors.New("factor percentage must be between 0 and 100")

// ApportionmentFactors are the three Schedule Y factor percentages, each
// expressed in [0, 100] per the API boundary convention.
type ApportionmentFactors struct {
	Property decimal.Decimal
	Payroll  decimal.Decimal
	Sales    decimal.Decimal
}

// formulaWeights returns the statutory weights for a formula in
// property/payroll/sales order.
func formulaWeights(formula models.ApportionmentFormula) [3]decimal.Decimal {
	one := decimal.NewFromInt(1)
	switch formula {
	case models.FourFactorDoubleSales:
		return [3]decimal.Decimal{one, one, decimal.NewFromInt(2)}
	case models.SingleSalesFactor:
		return [3]decimal.Decimal{decimal.Zero, decimal.Zero, one}
	default:
		return [3]decimal.Decimal{one, one, one}
	}
}

// CalculateApportionment computes the weighted apportionment percentage for
// one formula. For factor inputs in [0, 100] the result is bounded to
// [0, 100] because it is a weighted average of the inputs.
func CalculateApportionment(factors ApportionmentFactors, formula models.ApportionmentFormula) (*models.ApportionmentBreakdown, error) {
	names := [3]string{"property", "payroll", "sales"}
	values := [3]decimal.Decimal{factors.Property, factors.Payroll, factors.Sales}

	for i, v := range values {
		if v.IsNegative() || v.GreaterThan(oneHundred) {
			return nil, fmt.Errorf("%w: %s factor %s", ErrInvalidFactorPercentage, names[i], v)
		}
	}
	if !formula.Valid() {
		return nil, fmt.Errorf("unknown apportionment formula %q", formula)
	}

	weights := formulaWeights(formula)
	breakdown := &models.ApportionmentBreakdown{
		Formula:     formula,
		TotalWeight: decimal.Zero,
	}

	contributions := decimal.Zero
	for i := range values {
		contribution := values[i].Mul(weights[i])
		breakdown.Factors = append(breakdown.Factors, models.FactorContribution{
			Factor:       names[i],
			Percentage:   values[i],
			Weight:       weights[i],
			Contribution: contribution,
		})
		breakdown.TotalWeight = breakdown.TotalWeight.Add(weights[i])
		contributions = contributions.Add(contribution)
	}

	breakdown.FinalPercentage = contributions.Div(breakdown.TotalWeight).Round(4)
	return breakdown, nil
}

// CompareFormulas computes a business's apportionment under both the given
// traditional formula and single sales factor, recommending whichever yields
// the lower percentage (lower apportionment means lower tax). Savings is the
// absolute difference between the two results.
func CompareFormulas(factors ApportionmentFactors, traditional models.ApportionmentFormula) (*models.FormulaComparison, error) {
	traditionalResult, err := CalculateApportionment(factors, traditional)
	if err != nil {
		return nil, err
	}
	singleSales, err := CalculateApportionment(factors, models.SingleSalesFactor)
	if err != nil {
		return nil, err
	}

	recommended := traditional
	if singleSales.FinalPercentage.LessThan(traditionalResult.FinalPercentage) {
		recommended = models.SingleSalesFactor
	}

	return &models.FormulaComparison{
		TraditionalResult: *traditionalResult,
		SingleSalesResult: *singleSales,
		Recommended:       recommended,
		SavingsPercentage: traditionalResult.FinalPercentage.Sub(singleSales.FinalPercentage).Abs(),
	}, nil
}
