package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/coova/internal/booking"
	"github.com/PaulBabatuyi/coova/internal/chat"
	"github.com/PaulBabatuyi/coova/internal/config"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/data/memory"
	"github.com/PaulBabatuyi/coova/internal/data/postgres"
	"github.com/PaulBabatuyi/coova/internal/db"
	"github.com/PaulBabatuyi/coova/internal/listing"
)

// backend bundles the stores every service needs plus a close func.
type backend struct {
	resources listing.Store
	bookings  booking.Bookings
	chat      chat.Stores
	close     func(context.Context) error
}

// memoryBackend serves everything from one in-process store.
func memoryBackend() *backend {
	st := memory.New()
	return &backend{
		resources: st,
		bookings:  st,
		chat:      chat.Stores{Conversations: st, Messages: st, Cursors: st, Resources: st},
		close:     func(context.Context) error { return nil },
	}
}

// openBackend connects the store selected by cfg.Store and prepares its schema.
func openBackend(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*backend, error) {
	switch cfg.Store {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		return memoryBackend(), nil

	case "postgres":
		st, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := st.InitializeTables(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("initialize tables: %w", err)
		}
		return &backend{
			resources: st,
			bookings:  st,
			chat:      chat.Stores{Conversations: st, Messages: st, Cursors: st, Resources: st},
			close:     func(context.Context) error { return st.Close() },
		}, nil

	default:
		client, err := db.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		// Ensure indexes exist
		if err := client.CreateIndexes(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("create indexes: %w", err)
		}
		resources := data.NewResourcesStore(client.ResourcesCollection())
		return &backend{
			resources: resources,
			bookings: data.NewBookingsStore(client.BookingsCollection(), client.BookingLocksCollection(),
				cfg.Booking.LockTTL, cfg.Booking.LockWait),
			chat: chat.Stores{
				Conversations: data.NewConversationsStore(client.ConversationsCollection()),
				Messages:      data.NewMessagesStore(client.MessagesCollection()),
				Cursors:       data.NewCursorsStore(client.ReadCursorsCollection()),
				Resources:     resources,
			},
			close: client.Close,
		}, nil
	}
}
