package engine

import (
	"testing"

	"github.com/civitax/engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factors(property, payroll, sales string) ApportionmentFactors {
	return ApportionmentFactors{
		Property: dec(property),
		Payroll:  dec(payroll),
		Sales:    dec(sales),
	}
}

func TestCalculateApportionment_Formulas(t *testing.T) {
	f := factors("30", "20", "50")

	cases := []struct {
		name        string
		formula     models.ApportionmentFormula
		wantPercent string
		wantWeight  string
	}{
		// (30 + 20 + 50) / 3
		{"traditional three factor", models.TraditionalThreeFactor, "33.3333", "3"},
		// (30 + 20 + 2*50) / 4
		{"double-weighted sales", models.FourFactorDoubleSales, "37.5", "4"},
		// 50 / 1
		{"single sales factor", models.SingleSalesFactor, "50", "1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			breakdown, err := CalculateApportionment(f, tc.formula)
			require.NoError(t, err)

			assert.Equal(t, tc.wantPercent, breakdown.FinalPercentage.String())
			assert.Equal(t, tc.wantWeight, breakdown.TotalWeight.String())
			require.Len(t, breakdown.Factors, 3)
		})
	}
}

// Under single sales factor the property and payroll weights are forced to
// zero; their percentages contribute nothing.
func TestCalculateApportionment_SingleSalesIgnoresOtherFactors(t *testing.T) {
	breakdown, err := CalculateApportionment(factors("100", "100", "10"), models.SingleSalesFactor)
	require.NoError(t, err)

	assert.Equal(t, "10", breakdown.FinalPercentage.String())
	assert.True(t, breakdown.Factors[0].Weight.IsZero())
	assert.True(t, breakdown.Factors[1].Weight.IsZero())
	assert.True(t, breakdown.Factors[0].Contribution.IsZero())
}

// For any valid inputs the result stays inside [0, 100].
func TestCalculateApportionment_Bounds(t *testing.T) {
	inputs := []ApportionmentFactors{
		factors("0", "0", "0"),
		factors("100", "100", "100"),
		factors("0", "100", "0"),
		factors("12.34", "56.78", "90.12"),
		factors("0.01", "99.99", "50"),
	}
	formulas := []models.ApportionmentFormula{
		models.TraditionalThreeFactor,
		models.FourFactorDoubleSales,
		models.SingleSalesFactor,
	}

	for _, f := range inputs {
		for _, formula := range formulas {
			breakdown, err := CalculateApportionment(f, formula)
			require.NoError(t, err)
			assert.False(t, breakdown.FinalPercentage.IsNegative(),
				"formula %s produced negative percentage", formula)
			assert.True(t, breakdown.FinalPercentage.LessThanOrEqual(dec("100")),
				"formula %s produced percentage above 100", formula)
		}
	}
}

func TestCalculateApportionment_InvalidFactor(t *testing.T) {
	_, err := CalculateApportionment(factors("101", "20", "50"), models.TraditionalThreeFactor)
	assert.ErrorIs(t, err, ErrInvalidFactorPercentage)

	_, err = CalculateApportionment(factors("30", "-1", "50"), models.TraditionalThreeFactor)
	assert.ErrorIs(t, err, ErrInvalidFactorPercentage)
}

func TestCalculateApportionment_UnknownFormula(t *testing.T) {
	_, err := CalculateApportionment(factors("30", "20", "50"), models.ApportionmentFormula("FIVE_FACTOR"))
	assert.Error(t, err)
}

func TestCompareFormulas_RecommendsLower(t *testing.T) {
	// High property/payroll presence, low sales: single sales factor wins.
	comparison, err := CompareFormulas(factors("80", "70", "10"), models.TraditionalThreeFactor)
	require.NoError(t, err)

	assert.Equal(t, models.SingleSalesFactor, comparison.Recommended)
	// (80+70+10)/3 = 53.3333 vs 10 -> savings 43.3333
	assert.Equal(t, "43.3333", comparison.SavingsPercentage.String())
}

func TestCompareFormulas_TraditionalWinsOnHighSales(t *testing.T) {
	// Low property/payroll, dominant sales: traditional yields less.
	comparison, err := CompareFormulas(factors("5", "5", "95"), models.FourFactorDoubleSales)
	require.NoError(t, err)

	assert.Equal(t, models.FourFactorDoubleSales, comparison.Recommended)
	assert.True(t, comparison.TraditionalResult.FinalPercentage.
		LessThan(comparison.SingleSalesResult.FinalPercentage))
}

func TestCompareFormulas_PropagatesValidation(t *testing.T) {
	_, err := CompareFormulas(factors("200", "20", "50"), models.TraditionalThreeFactor)
	assert.ErrorIs(t, err, ErrInvalidFactorPercentage)
}
