package cli

import (
	"fmt"

	"github.com/felixgeelhaar/hitl-go/domain/ticket"
	"github.com/felixgeelhaar/hitl-go/infrastructure/config"
	badgerstore "github.com/felixgeelhaar/hitl-go/infrastructure/storage/badger"
	memorystore "github.com/felixgeelhaar/hitl-go/infrastructure/storage/memory"
	sqlitestore "github.com/felixgeelhaar/hitl-go/infrastructure/storage/sqlite"
)

// openStore builds the ticket store selected by the configuration.
// Callers own the returned store and must Close it.
func openStore(cfg config.StoreConfig) (ticket.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return memorystore.NewTicketStore(), nil

	case "badger":
		return badgerstore.NewTicketStore(badgerstore.DefaultConfig(),
			badgerstore.WithDir(cfg.Dir),
			badgerstore.WithSyncWrites(cfg.SyncWrites),
		)

	case "sqlite":
		return sqlitestore.NewTicketStore(sqlitestore.DefaultConfig(),
			sqlitestore.WithDSN(cfg.Path),
			sqlitestore.WithAutoMigrate(),
		)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
