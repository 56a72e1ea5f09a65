package client

import (
	"context"

	"github.com/menta2k/roi-bridge/pkg/types"
)

// VisionClient proposes ROIs for an image.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	SuggestRegions(ctx context.Context, model, prompt, imgB64 string) (*types.Suggestion, error)
}
