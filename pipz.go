package sluice

import (
	"context"

	"github.com/zoobzio/pipz"
)

// ApplyChainable runs each element through a pipz processor or connector.
// The chainable's failure becomes an ordinary element-production failure,
// so pipz retry/fallback semantics compose with HandleError downstream:
//
//	validate := pipz.Apply("validate", validateOrder)
//	checked := sluice.ApplyChainable(orders, validate)
func ApplyChainable[A any](p Pipeline[A], c pipz.Chainable[A]) Pipeline[A] {
	return MapEffect(p, func(ctx context.Context, a A) (A, error) {
		out, perr := c.Process(ctx, a)
		if perr != nil {
			return out, perr
		}
		return out, nil
	})
}
