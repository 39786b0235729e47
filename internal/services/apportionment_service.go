package services

import (
	"context"

	"github.com/civitax/engine/internal/engine"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
)

// ApportionmentService defines the interface for Schedule Y apportionment
// calculations.
type ApportionmentService interface {
	// Calculate computes the weighted apportionment percentage for one
	// formula. Returns engine.ErrInvalidFactorPercentage for out-of-range
	// factors.
	Calculate(ctx context.Context, factors engine.ApportionmentFactors, formula models.ApportionmentFormula) (*models.ApportionmentBreakdown, error)

	// Compare computes apportionment under both the traditional formula and
	// single sales factor and recommends the lower result.
	Compare(ctx context.Context, factors engine.ApportionmentFactors, traditional models.ApportionmentFormula) (*models.FormulaComparison, error)
}

// apportionmentService is the concrete implementation of ApportionmentService.
type apportionmentService struct {
	log *logger.Logger
}

// NewApportionmentService creates a new instance of ApportionmentService.
func NewApportionmentService(log *logger.Logger) ApportionmentService {
	return &apportionmentService{log: log}
}

func (s *apportionmentService) Calculate(ctx context.Context, factors engine.ApportionmentFactors, formula models.ApportionmentFormula) (*models.ApportionmentBreakdown, error) {
	breakdown, err := engine.CalculateApportionment(factors, formula)
	if err != nil {
		s.log.Warn("Apportionment calculation rejected", map[string]interface{}{
			"formula": formula,
			"error":   err.Error(),
		})
		return nil, err
	}

	s.log.Info("Apportionment calculated", map[string]interface{}{
		"formula":          formula,
		"final_percentage": breakdown.FinalPercentage.String(),
	})

	return breakdown, nil
}

func (s *apportionmentService) Compare(ctx context.Context, factors engine.ApportionmentFactors, traditional models.ApportionmentFormula) (*models.FormulaComparison, error) {
	comparison, err := engine.CompareFormulas(factors, traditional)
	if err != nil {
		s.log.Warn("Formula comparison rejected", map[string]interface{}{
			"traditional": traditional,
			"error":       err.Error(),
		})
		return nil, err
	}

	s.log.Info("Formulas compared", map[string]interface{}{
		"traditional": comparison.TraditionalResult.FinalPercentage.String(),
		"single_sales": comparison.SingleSalesResult.FinalPercentage.String(),
		"recommended": comparison.Recommended,
	})

	return comparison, nil
}
