package port

import (
	"context"

	"kstrade/internal/domain/model"
)

// SignalEngine scores a symbol from its daily bars. The core treats it as
// pure and side-effect-free; it only looks at action and strength.
type SignalEngine interface {
	Analyze(ctx context.Context, symbol string, daily []model.Bar) (*model.Signal, error)
}
