package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/voyara/voyara/internal/clock"
	"github.com/voyara/voyara/internal/config"
	"github.com/voyara/voyara/internal/migration"
	"github.com/voyara/voyara/internal/observability"
	"github.com/voyara/voyara/internal/server"
	"github.com/voyara/voyara/pkg/db"
	"github.com/voyara/voyara/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		config.BillingModule,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		observability.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
