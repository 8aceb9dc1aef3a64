package service

import (
	"log/slog"

	"situationcord.app/relay/internal/queue"
	"situationcord.app/relay/internal/store"
)

type Services struct {
	stores   *store.Stores
	txRunner TxRunner
	producer queue.Producer
	logger   *slog.Logger
}

func NewServices(stores *store.Stores, txRunner TxRunner, producer queue.Producer, logger *slog.Logger) *Services {
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		producer: producer,
		logger:   logger,
	}
}

func (s *Services) EventIngest() EventIngestService {
	return NewEventIngestService(s.txRunner, s.producer, s.logger)
}

func (s *Services) IgnoredUsers() IgnoreService {
	return NewIgnoreService(s.stores.IgnoredUsers())
}
