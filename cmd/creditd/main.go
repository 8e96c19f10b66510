package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/creatorhq/creditd/internal/clock"
	"github.com/creatorhq/creditd/internal/config"
	"github.com/creatorhq/creditd/internal/migration"
	"github.com/creatorhq/creditd/internal/observability"
	"github.com/creatorhq/creditd/internal/plan"
	"github.com/creatorhq/creditd/internal/server"
	"github.com/creatorhq/creditd/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		plan.Module,
		migration.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
