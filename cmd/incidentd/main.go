package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/retailops/incidentd/internal/clock"
	"github.com/retailops/incidentd/internal/config"
	"github.com/retailops/incidentd/internal/migration"
	"github.com/retailops/incidentd/internal/observability"
	"github.com/retailops/incidentd/internal/scheduler"
	"github.com/retailops/incidentd/internal/server"
	"github.com/retailops/incidentd/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			nodeID = parsed
		}
	}
	return snowflake.NewNode(nodeID)
}
