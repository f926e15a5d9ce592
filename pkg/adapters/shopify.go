package adapters

import (
	"context"

	"github.com/de-tools/commerce-atlas/pkg/pipeline"
	"github.com/de-tools/commerce-atlas/pkg/services/shopify"
)

// ShopifySessions lets the pipeline runner open sessions on a shop client.
type ShopifySessions struct {
	Client *shopify.Client
}

func (s ShopifySessions) Open(ctx context.Context) (pipeline.Session, error) {
	session, err := s.Client.Open(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}
