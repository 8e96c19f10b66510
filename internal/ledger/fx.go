package ledger

import (
	"github.com/creatorhq/creditd/internal/ledger/repository"
	"github.com/creatorhq/creditd/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
