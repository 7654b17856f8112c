package models

import (
	"fmt"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
)

// GlobalWarehouseId is the shared scope inventory falls back to when a
// warehouse-scoped row does not exist.
const GlobalWarehouseId = "GERAL"

// Purchase order statuses. The receipt transaction only ever moves
// enviado -> recebido.
const (
	OrderStatusDraft     = "rascunho"
	OrderStatusSent      = "enviado"
	OrderStatusReceived  = "recebido"
	OrderStatusCancelled = "cancelado"
)

// TableSpec is one table-registry entry: the fixed set of columns the gateway
// may touch, which of them carry JSON or timestamps, and which one is the
// business identity (not always a synthetic key: a stock code, a plate).
type TableSpec struct {
	Name             string
	Module           string
	Columns          []string
	JSONColumns      []string
	TimestampColumns []string
	IdentityColumn   string

	// WriteRestricted tables were superseded by a canonical replacement and
	// reject every non-read operation.
	WriteRestricted bool
	CanonicalTable  string

	// AuditByDBTrigger marks tables whose relational mutations are already
	// audited by a database trigger; the app only audits them in contingency mode.
	AuditByDBTrigger bool

	// Broadcast marks the small allow-list of tables whose committed changes
	// are pushed to realtime subscribers.
	Broadcast bool

	jsonSet    map[string]struct{}
	tsSet      map[string]struct{}
	columnsSet map[string]struct{}
}

func (s *TableSpec) AllowsColumn(col string) bool {
	_, ok := s.columnsSet[col]
	return ok
}

func (s *TableSpec) IsJSONColumn(col string) bool {
	_, ok := s.jsonSet[col]
	return ok
}

func (s *TableSpec) IsTimestampColumn(col string) bool {
	_, ok := s.tsSet[col]
	return ok
}

// Registry is the whitelist every operation is checked against. Built once at
// startup; Lookup failures surface as utils.ErrTableNotAllowed before any
// storage access happens.
type Registry struct {
	tables map[string]*TableSpec
	order  []string
}

func NewRegistry(specs ...*TableSpec) (*Registry, error) {
	r := &Registry{tables: map[string]*TableSpec{}}
	for _, spec := range specs {
		if _, dup := r.tables[spec.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate table %q", spec.Name)
		}
		spec.columnsSet = toSet(spec.Columns)
		spec.jsonSet = toSet(spec.JSONColumns)
		spec.tsSet = toSet(spec.TimestampColumns)

		if !spec.AllowsColumn(spec.IdentityColumn) {
			return nil, fmt.Errorf("registry: table %q identity column %q not in allowed set", spec.Name, spec.IdentityColumn)
		}
		for _, c := range spec.JSONColumns {
			if !spec.AllowsColumn(c) {
				return nil, fmt.Errorf("registry: table %q json column %q not in allowed set", spec.Name, c)
			}
		}
		for _, c := range spec.TimestampColumns {
			if !spec.AllowsColumn(c) {
				return nil, fmt.Errorf("registry: table %q timestamp column %q not in allowed set", spec.Name, c)
			}
		}
		r.tables[spec.Name] = spec
		r.order = append(r.order, spec.Name)
	}

	for _, spec := range r.tables {
		if spec.WriteRestricted {
			if _, ok := r.tables[spec.CanonicalTable]; !ok {
				return nil, fmt.Errorf("registry: table %q canonical replacement %q not registered", spec.Name, spec.CanonicalTable)
			}
		}
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (*TableSpec, error) {
	spec, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", utils.ErrTableNotAllowed, name)
	}
	return spec, nil
}

func (r *Registry) Tables() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func toSet(cols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	return set
}

// DefaultRegistry describes every table this deployment serves. Validated at
// startup so an unregistered column can never reach storage.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		&TableSpec{
			Name:             TableFornecedores,
			Module:           "compras",
			Columns:          []string{"id", "razao_social", "cnpj", "email", "telefone", "endereco", "condicao_pagamento", "contatos", "ativo", "created_at", "updated_at"},
			JSONColumns:      []string{"contatos"},
			TimestampColumns: []string{"created_at", "updated_at"},
			IdentityColumn:   "cnpj",
		},
		&TableSpec{
			Name:             TableEstoque,
			Module:           "estoque",
			Columns:          []string{"id", "codigo", "descricao", "almoxarifado_id", "quantidade", "unidade", "minimo", "created_at", "updated_at"},
			TimestampColumns: []string{"created_at", "updated_at"},
			IdentityColumn:   "codigo",
			Broadcast:        true,
		},
		&TableSpec{
			Name:             TableAlmoxarifados,
			Module:           "estoque",
			Columns:          []string{"id", "nome", "codigo", "created_at"},
			TimestampColumns: []string{"created_at"},
			IdentityColumn:   "id",
		},
		&TableSpec{
			Name:             TablePedidosCompra,
			Module:           "compras",
			Columns:          []string{"id", "numero", "fornecedor_id", "almoxarifado_id", "status", "itens", "observacao", "created_at", "sent_at", "received_at"},
			JSONColumns:      []string{"itens"},
			TimestampColumns: []string{"created_at", "sent_at", "received_at"},
			IdentityColumn:   "numero",
			Broadcast:        true,
		},
		&TableSpec{
			Name:             TableMovimentacoes,
			Module:           "estoque",
			Columns:          []string{"id", "tipo", "pedido_id", "codigo", "almoxarifado_id", "quantidade", "quantidade_anterior", "quantidade_posterior", "meta", "created_at"},
			JSONColumns:      []string{"meta"},
			TimestampColumns: []string{"created_at"},
			IdentityColumn:   "id",
			AuditByDBTrigger: true,
			Broadcast:        true,
		},
		&TableSpec{
			Name:             TableVeiculos,
			Module:           "frota",
			Columns:          []string{"id", "placa", "modelo", "marca", "ano", "ativo", "created_at", "updated_at"},
			TimestampColumns: []string{"created_at", "updated_at"},
			IdentityColumn:   "placa",
		},
		&TableSpec{
			Name:             TableUsuarios,
			Module:           "acesso",
			Columns:          []string{"id", "nome", "email", "senha_hash", "role", "ativo", "created_at"},
			TimestampColumns: []string{"created_at"},
			IdentityColumn:   "email",
		},
		&TableSpec{
			Name:             TableAuditLogs,
			Module:           "auditoria",
			Columns:          []string{"id", "module", "entity", "entity_id", "action", "actor", "actor_id", "warehouse_id", "before_data", "after_data", "meta", "created_at"},
			JSONColumns:      []string{"before_data", "after_data", "meta"},
			TimestampColumns: []string{"created_at"},
			IdentityColumn:   "id",
		},
		&TableSpec{
			Name:            TableEstoqueItens,
			Module:          "estoque",
			Columns:         []string{"id", "codigo", "descricao", "quantidade"},
			IdentityColumn:  "codigo",
			WriteRestricted: true,
			CanonicalTable:  TableEstoque,
		},
	)
	if err != nil {
		// A broken default registry is a programming error, not a runtime condition.
		panic(err)
	}
	return r
}

// Registered table names.
const (
	TableFornecedores  = "fornecedores"
	TableEstoque       = "estoque"
	TableAlmoxarifados = "almoxarifados"
	TablePedidosCompra = "pedidos_compra"
	TableMovimentacoes = "movimentacoes"
	TableVeiculos      = "veiculos"
	TableUsuarios      = "usuarios"
	TableAuditLogs     = "audit_logs"
	TableEstoqueItens  = "estoque_itens"
)
