package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
)

// Audit actions.
const (
	AuditActionCreate             = "create"
	AuditActionUpdate             = "update"
	AuditActionDelete             = "delete"
	AuditActionLookup             = "lookup"
	AuditActionReceiptFinalize    = "receipt_finalize"
	AuditActionInventoryIncrement = "inventory_increment"
)

// AuditLogEntry is one immutable before/after change record. Created
// synchronously with the operation it describes, never mutated, only deleted
// en masse by the retention sweeper.
type AuditLogEntry struct {
	ID          string         `json:"id"`
	Module      string         `json:"module"`
	Entity      string         `json:"entity"`
	EntityId    string         `json:"entity_id"`
	Action      string         `json:"action"`
	Actor       string         `json:"actor"`
	ActorId     string         `json:"actor_id"`
	WarehouseId string         `json:"warehouse_id,omitempty"`
	BeforeData  map[string]any `json:"before_data,omitempty"`
	AfterData   map[string]any `json:"after_data,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ToRow flattens the entry into the generic column shape the storage backends
// persist. JSON-valued columns are serialized to their canonical string form.
func (e AuditLogEntry) ToRow() Row {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	row := Row{
		"id":         e.ID,
		"module":     e.Module,
		"entity":     e.Entity,
		"entity_id":  e.EntityId,
		"action":     e.Action,
		"actor":      e.Actor,
		"actor_id":   e.ActorId,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.WarehouseId != "" {
		row["warehouse_id"] = e.WarehouseId
	} else {
		row["warehouse_id"] = nil
	}
	row["before_data"] = marshalOrNil(e.BeforeData)
	row["after_data"] = marshalOrNil(e.AfterData)
	row["meta"] = marshalOrNil(e.Meta)
	return row
}

func marshalOrNil(m map[string]any) any {
	if m == nil {
		return nil
	}
	s, err := utils.MarshalToJSON(m)
	if err != nil {
		return nil
	}
	return s
}
