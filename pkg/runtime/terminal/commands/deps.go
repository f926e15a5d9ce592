package commands

import (
	"context"
	"io"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/adapters"
	"github.com/de-tools/commerce-atlas/pkg/pipeline"
	"github.com/de-tools/commerce-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/commerce-atlas/pkg/services/config"
	"github.com/de-tools/commerce-atlas/pkg/services/shopify"
	"github.com/de-tools/commerce-atlas/pkg/store/files"
	"github.com/de-tools/commerce-atlas/pkg/store/warehouse"
	"github.com/rs/zerolog"
)

// SessionFactory builds the commerce session opener for a run.
type SessionFactory func(cfg shopify.Config, logger zerolog.Logger) (pipeline.SessionOpener, error)

type FileFactory func(ctx context.Context, dest string) (*files.Writer, error)

// Deps are the collaborators a pipeline command wires together.
type Deps struct {
	Reporter      *export.Reporter
	Console       io.Writer
	LoadConfig    func(path string) (*config.Config, error)
	Registry      warehouse.Registry
	Sessions      SessionFactory
	Files         FileFactory
	RunnerOptions []pipeline.Option
	Now           func() time.Time
}

func ShopifySessions(cfg shopify.Config, logger zerolog.Logger) (pipeline.SessionOpener, error) {
	client, err := shopify.NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return adapters.ShopifySessions{Client: client}, nil
}
