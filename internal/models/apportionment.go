package models

import "github.com/shopspring/decimal"

// ApportionmentFormula selects the statutory factor weighting for Schedule Y.
type ApportionmentFormula string

const (
	// TraditionalThreeFactor weights property, payroll and sales equally.
	TraditionalThreeFactor ApportionmentFormula = "TRADITIONAL_THREE_FACTOR"
	// FourFactorDoubleSales counts sales twice (weights 1/1/2). The name
	// follows Schedule Y terminology: four weight slots over three factors.
	FourFactorDoubleSales ApportionmentFormula = "FOUR_FACTOR_DOUBLE_SALES"
	// SingleSalesFactor zeroes the property and payroll weights.
	SingleSalesFactor ApportionmentFormula = "SINGLE_SALES_FACTOR"
)

// Valid reports whether the value is a member of the closed formula set.
func (f ApportionmentFormula) Valid() bool {
	switch f {
	case TraditionalThreeFactor, FourFactorDoubleSales, SingleSalesFactor:
		return true
	}
	return false
}

// FactorContribution is one factor's weighted share of the apportionment
// percentage. Percentages here are expressed in [0, 100], matching the API
// boundary convention.
type FactorContribution struct {
	Factor       string          `json:"factor"`
	Percentage   decimal.Decimal `json:"percentage"`
	Weight       decimal.Decimal `json:"weight"`
	Contribution decimal.Decimal `json:"contribution"`
}

// ApportionmentBreakdown is one Schedule Y apportionment result.
// FinalPercentage = sum(contributions) / TotalWeight, bounded to [0, 100]
// for valid factor inputs.
type ApportionmentBreakdown struct {
	Formula         ApportionmentFormula `json:"formula"`
	Factors         []FactorContribution `json:"factors"`
	TotalWeight     decimal.Decimal      `json:"totalWeight"`
	FinalPercentage decimal.Decimal      `json:"finalApportionmentPercentage"`
}

// FormulaComparison contrasts the traditional formula against single sales
// factor and recommends whichever yields lower apportionment (lower tax).
type FormulaComparison struct {
	TraditionalResult ApportionmentBreakdown `json:"traditionalResult"`
	SingleSalesResult ApportionmentBreakdown `json:"singleSalesResult"`
	Recommended       ApportionmentFormula   `json:"recommended"`
	SavingsPercentage decimal.Decimal        `json:"savingsPercentage"`
}
