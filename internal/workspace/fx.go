package workspace

import (
	"github.com/creatorhq/creditd/internal/workspace/repository"
	"github.com/creatorhq/creditd/internal/workspace/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workspace.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
