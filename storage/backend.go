// Package storage defines the backend contract the gateway speaks and its two
// implementations: relational (gorm/MySQL) and contingency (JSON snapshots).
// Both must expose identical filter/order/pagination semantics; the gateway
// validates and normalizes, backends only move rows.
package storage

import (
	"context"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/connectivity"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
)

// Backend is one storage mode. Implementations may assume every referenced
// column has already been checked against the table registry.
type Backend interface {
	Name() string
	List(ctx context.Context, spec *models.TableSpec, q models.Query) ([]models.Row, error)
	Count(ctx context.Context, spec *models.TableSpec, filters models.Filters) (int64, error)
	Insert(ctx context.Context, spec *models.TableSpec, rows []models.Row) ([]models.Row, error)
	Update(ctx context.Context, spec *models.TableSpec, filters models.Filters, patch models.Row) ([]models.Change, error)
	Delete(ctx context.Context, spec *models.TableSpec, filters models.Filters) ([]models.Row, error)
}

// Selector picks the backend for the current connectivity mode. It is the one
// call site both the gateway and the audit logger branch through, so the two
// code paths cannot silently diverge.
type Selector struct {
	Relational  Backend
	Contingency Backend
	State       *connectivity.State
}

func (s *Selector) Active() Backend {
	if s.State.Connected() && s.Relational != nil {
		return s.Relational
	}
	return s.Contingency
}

func (s *Selector) ModeName() string {
	if s.State.Connected() {
		return "relational"
	}
	return "contingency"
}
