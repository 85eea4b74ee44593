package access

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories plus transaction scoping. The
// callback receives a bun.IDB so stub managers can satisfy it without a live
// database.
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.IDB) error) error
	AccessCodes() AccessCodes
	Admins() Admins
}

type mngr struct {
	db          *bun.DB
	accessCodes AccessCodes
	admins      Admins
}

// NewRepositoryManager wires the bun backed repositories.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:          db,
		accessCodes: NewAccessCodesRepository(db),
		admins:      NewAdminsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accessCodes == nil {
		return errors.New("repository accessCodes should be initialized")
	}
	if m.admins == nil {
		return errors.New("repository admins should be initialized")
	}
	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.IDB) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
			return f(ctx, tx)
		})
	}
}

func (m mngr) AccessCodes() AccessCodes {
	return m.accessCodes
}

func (m mngr) Admins() Admins {
	return m.admins
}
