package poll

import (
	"context"

	"github.com/pollwatch/pollwatch/internal/domain"
)

// Store abstracts durable poll persistence.
// The file implementation is used for single-instance mode; Redis and
// Postgres back the same interface for deployments that already run them.
//
// Save has full-overwrite semantics: last writer wins on the whole record.
// A crash during Save must never corrupt a previously committed record.
type Store interface {
	Save(ctx context.Context, p *domain.Poll) error
	Load(ctx context.Context, id string) (*domain.Poll, error)
	LoadAll(ctx context.Context) (map[string]*domain.Poll, error)
}
