package remote

import (
	"context"
	"time"

	"courtclub/internal/domain"
	"courtclub/internal/metrics"
	"courtclub/internal/models"

	"github.com/rs/zerolog"
)

// Instrumented decorates a RemoteStore with latency metrics and failure logs.
type Instrumented struct {
	next   domain.RemoteStore
	logger *zerolog.Logger
}

var _ domain.RemoteStore = (*Instrumented)(nil)

func Instrument(next domain.RemoteStore, logger *zerolog.Logger) *Instrumented {
	return &Instrumented{next: next, logger: logger}
}

func (s *Instrumented) observe(collection models.Collection, op, id string, started time.Time, err error) {
	took := time.Since(started)
	metrics.ObserveRemote(string(collection), op, err, took)
	if err != nil {
		s.logger.Error().Err(err).
			Str("collection", string(collection)).
			Str("op", op).
			Str("id", id).
			Dur("took", took).
			Msg("Remote store call failed")
	}
}

func (s *Instrumented) Insert(ctx context.Context, collection models.Collection, record models.Record) error {
	started := time.Now()
	err := s.next.Insert(ctx, collection, record)
	s.observe(collection, "insert", record.ID(), started, err)
	return err
}

func (s *Instrumented) FetchAll(ctx context.Context, collection models.Collection, orderBy string) ([]models.Record, error) {
	started := time.Now()
	records, err := s.next.FetchAll(ctx, collection, orderBy)
	s.observe(collection, "fetch_all", "", started, err)
	return records, err
}

func (s *Instrumented) Update(ctx context.Context, collection models.Collection, id string, record models.Record) error {
	started := time.Now()
	err := s.next.Update(ctx, collection, id, record)
	s.observe(collection, "update", id, started, err)
	return err
}

func (s *Instrumented) Delete(ctx context.Context, collection models.Collection, id string) error {
	started := time.Now()
	err := s.next.Delete(ctx, collection, id)
	s.observe(collection, "delete", id, started, err)
	return err
}
