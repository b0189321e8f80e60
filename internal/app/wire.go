//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"github.com/casimir/freon/internal/config"
	"github.com/casimir/freon/internal/observability"
)

func InitializeApp(ctx context.Context) (*App, func(), error) {
	wire.Build(
		config.Load,
		observability.InitRuntime,
		wire.FieldsOf(new(*observability.Runtime), "Logger"),
		ProvideDatabase,
		ProvideJWTManager,
		ProvideRedisClient,
		ProvideRouter,
		ProvideServer,
		New,
	)
	return nil, nil, nil
}
