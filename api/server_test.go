package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/audit"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/broadcast"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/connectivity"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/contingency"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/gateway"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/storage"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// The handler tests run the full stack over the contingency store, the same
// wiring an outage would serve with.
func newTestRouter(t *testing.T) (*gin.Engine, *gateway.Gateway, *contingency.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store, err := contingency.NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	state := connectivity.NewState(log)
	sel := &storage.Selector{
		Contingency: storage.NewContingency(store),
		State:       state,
	}
	registry := models.DefaultRegistry()
	hub := broadcast.NewHub()
	nilDB := func() *gorm.DB { return nil }
	auditLogger := audit.NewLogger(sel, registry, log)
	gw := gateway.New(registry, sel, gateway.NewValidator(sel, nilDB), auditLogger, hub, log)
	receipt := workflow.NewReceiptFinalizer(sel, nil, store, registry, auditLogger, hub, nil)

	r := gin.New()
	NewServer(gw, receipt, state, hub).RegisterRoutes(r)
	return r, gw, store
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token, err := utils.JwtGenerate("u1", "Maria", "operador")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	return "Bearer " + token
}

func doRequest(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doRequest(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["mode"] != "contingency" {
		t.Fatalf("mode = %v, want contingency", body["mode"])
	}
	if connected, _ := body["connected"].(bool); connected {
		t.Fatal("connected should be false without a database")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doRequest(t, r, http.MethodGet, "/api/tables/estoque", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestTableCrudOverHTTP(t *testing.T) {
	r, _, _ := newTestRouter(t)
	token := bearerToken(t)

	w := doRequest(t, r, http.MethodPost, "/api/tables/veiculos", token,
		models.Row{"placa": "ABC1D23", "modelo": "Sprinter", "ativo": true})
	if w.Code != http.StatusCreated {
		t.Fatalf("insert status = %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, r, http.MethodGet, "/api/tables/veiculos?placa=ABC1D23", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var listBody struct {
		Data    []models.Row `json:"data"`
		Total   int64        `json:"total"`
		HasMore bool         `json:"has_more"`
		Mode    string       `json:"mode"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listBody.Data) != 1 || listBody.Total != 1 || listBody.HasMore || listBody.Mode != "contingency" {
		t.Fatalf("unexpected list response: %s", w.Body.String())
	}

	w = doRequest(t, r, http.MethodPatch, "/api/tables/veiculos?placa=ABC1D23", token,
		models.Row{"ativo": false})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, r, http.MethodDelete, "/api/tables/veiculos?placa=ABC1D23", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, r, http.MethodDelete, "/api/tables/veiculos?placa=ABC1D23", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestErrorTaxonomyMapping(t *testing.T) {
	r, gw, _ := newTestRouter(t)
	token := bearerToken(t)

	// Unregistered table.
	w := doRequest(t, r, http.MethodGet, "/api/tables/mysql", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown table status = %d, want 400", w.Code)
	}

	// Write-restricted table points at its replacement.
	w = doRequest(t, r, http.MethodPost, "/api/tables/estoque_itens", token,
		models.Row{"codigo": "SKU-1"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("restricted insert status = %d, want 403", w.Code)
	}
	var restricted map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &restricted)
	if restricted["canonical_table"] != models.TableEstoque {
		t.Fatalf("canonical_table = %v", restricted["canonical_table"])
	}

	// Uniqueness conflict.
	if _, err := gw.Insert(context.Background(), models.TableVeiculos,
		[]models.Row{{"placa": "ABC1D23"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	w = doRequest(t, r, http.MethodPost, "/api/tables/veiculos", token,
		models.Row{"placa": "abc-1d23"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate plate status = %d, want 409", w.Code)
	}

	// Malformed tax id.
	w = doRequest(t, r, http.MethodPost, "/api/tables/fornecedores", token,
		models.Row{"razao_social": "ACME", "cnpj": "11111111111111"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid cnpj status = %d, want 422", w.Code)
	}
}

func TestReceiptOverHTTP(t *testing.T) {
	r, _, store := newTestRouter(t)
	token := bearerToken(t)

	if err := store.WriteTable(models.TablePedidosCompra, []models.Row{{
		"id": "p1", "numero": "PO-001", "status": models.OrderStatusSent,
		"almoxarifado_id": "W1",
		"itens":           `[{"codigo":"SKU-100","quantidade":5}]`,
	}}); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := store.WriteTable(models.TableEstoque, []models.Row{{
		"id": "e1", "codigo": "SKU-100", "almoxarifado_id": "W1", "quantidade": "10",
	}}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	w := doRequest(t, r, http.MethodPost, "/api/pedidos-compra/PO-001/receber", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("receipt status = %d: %s", w.Code, w.Body.String())
	}

	// Finalizing again is a conflict, not a second application.
	w = doRequest(t, r, http.MethodPost, "/api/pedidos-compra/PO-001/receber", token, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("retry status = %d, want 409", w.Code)
	}

	w = doRequest(t, r, http.MethodPost, "/api/pedidos-compra/PO-404/receber", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown order status = %d, want 404", w.Code)
	}
}

func TestAuditSearchOverHTTP(t *testing.T) {
	r, gw, _ := newTestRouter(t)
	token := bearerToken(t)

	ctx := utils.SetActorNameInContext(context.Background(), "maria")
	if _, err := gw.Insert(ctx, models.TableVeiculos, []models.Row{{"placa": "ABC1D23"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doRequest(t, r, http.MethodGet, "/api/audit-logs/search?entity=veiculos&action=create", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Data    []models.Row `json:"data"`
		Total   int          `json:"total"`
		HasMore bool         `json:"has_more"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Total != 1 || len(body.Data) != 1 || body.HasMore {
		t.Fatalf("unexpected search response: %s", w.Body.String())
	}
	if body.Data[0].GetString("actor") != "maria" {
		t.Fatalf("actor = %q", body.Data[0].GetString("actor"))
	}

	// A dimension that matches nothing.
	w = doRequest(t, r, http.MethodGet, "/api/audit-logs/search?entity=fornecedores", token, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Total != 0 {
		t.Fatalf("expected empty result, got %d", body.Total)
	}

	// The seed was written without a warehouse scope, so it only survives an
	// almoxarifado_id filter while global entries are included.
	w = doRequest(t, r, http.MethodGet, "/api/audit-logs/search?almoxarifado_id=W1", token, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Total != 1 {
		t.Fatalf("scoped search with globals = %d, want 1", body.Total)
	}
	w = doRequest(t, r, http.MethodGet, "/api/audit-logs/search?almoxarifado_id=W1&include_global=false", token, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Total != 0 {
		t.Fatalf("scoped search without globals = %d, want 0", body.Total)
	}
}

func TestLoginOverHTTP(t *testing.T) {
	r, gw, _ := newTestRouter(t)

	hashed, err := utils.HashPassword("s3nh4-forte")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if _, err := gw.Insert(context.Background(), models.TableUsuarios, []models.Row{{
		"nome": "Maria", "email": "maria@empresa.com.br",
		"senha_hash": string(hashed), "role": "operador", "ativo": true,
	}}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	w := doRequest(t, r, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "maria@empresa.com.br", "senha": "errada"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", w.Code)
	}

	w = doRequest(t, r, http.MethodPost, "/auth/login", "",
		map[string]string{"email": "maria@empresa.com.br", "senha": "s3nh4-forte"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Data struct {
			Token   string     `json:"token"`
			Usuario models.Row `json:"usuario"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Data.Token == "" {
		t.Fatal("login must return a token")
	}
	if _, leaked := body.Data.Usuario["senha_hash"]; leaked {
		t.Fatal("login response must not include the password hash")
	}
}
