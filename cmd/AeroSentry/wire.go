//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"AeroSentry/internal/biz"
	"AeroSentry/internal/conf"
	"AeroSentry/internal/data"
	"AeroSentry/internal/server"
	"AeroSentry/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		confProviders,
		NewCronServer,
		newApp,
	))
}

// confProviders exposes the bootstrap subsections the layers depend on.
var confProviders = wire.NewSet(
	wire.FieldsOf(new(*conf.Bootstrap), "Data", "Auth"),
)
