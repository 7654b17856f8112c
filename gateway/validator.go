package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/models"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/storage"
	"github.com/gregorysylvestrent-droid/gestao-estoque-sub000/utils"
	"gorm.io/gorm"
)

// Uniqueness applies to tables whose real-world identity goes beyond the
// synthetic key: a supplier is its legal name and tax id, an inventory row is
// its stock code within a warehouse, a vehicle is its plate.
type uniqueRuleKind int

const (
	ruleKindName uniqueRuleKind = iota
	ruleKindTaxId
	ruleKindCode
	ruleKindPlate
)

type uniqueRule struct {
	Column string
	Kind   uniqueRuleKind
	// Scope columns must also match for two rows to collide
	// (estoque: codigo within almoxarifado_id).
	Scope []string
}

// fieldChecks validate individual column values before the uniqueness rules
// run. Rejected before any storage access, like the whitelist checks.
var fieldChecks = map[string]func(models.Row) error{
	models.TableFornecedores: func(row models.Row) error {
		if tel := row.GetString("telefone"); tel != "" {
			if err := utils.ValidatePhoneNumber(tel, utils.CountryCode); err != nil {
				return fmt.Errorf("%w: %q", utils.ErrInvalidPhone, tel)
			}
		}
		return checkEmail(row)
	},
	models.TableUsuarios: checkEmail,
}

func checkEmail(row models.Row) error {
	if email := row.GetString("email"); email != "" && !utils.IsValidEmail(email) {
		return fmt.Errorf("%w: %q", utils.ErrInvalidEmail, email)
	}
	return nil
}

var uniqueRules = map[string][]uniqueRule{
	models.TableFornecedores: {
		{Column: "razao_social", Kind: ruleKindName},
		{Column: "cnpj", Kind: ruleKindTaxId},
	},
	models.TableEstoque: {
		{Column: "codigo", Kind: ruleKindCode, Scope: []string{"almoxarifado_id"}},
	},
	models.TableVeiculos: {
		{Column: "placa", Kind: ruleKindPlate},
	},
}

// compareKey is the normalized, condensed form both storage modes compare on.
func (r uniqueRule) compareKey(value string) string {
	switch r.Kind {
	case ruleKindName:
		return strings.ReplaceAll(utils.NormalizeName(value), " ", "")
	case ruleKindTaxId:
		return utils.CnpjDigits(value)
	case ruleKindPlate:
		return utils.NormalizePlate(value)
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

// sqlExpr renders the same normalization in SQL for the targeted relational
// lookup. Must stay in lockstep with compareKey.
func (r uniqueRule) sqlExpr(col string) string {
	quoted := "`" + col + "`"
	switch r.Kind {
	case ruleKindName:
		// CHAR(9)/(10)/(13) cover the whitespace compareKey folds away.
		return fmt.Sprintf("REPLACE(REPLACE(REPLACE(REPLACE(LOWER(%s), ' ', ''), CHAR(9), ''), CHAR(10), ''), CHAR(13), '')", quoted)
	case ruleKindTaxId:
		return fmt.Sprintf("REPLACE(REPLACE(REPLACE(REPLACE(%s, '.', ''), '/', ''), '-', ''), ' ', '')", quoted)
	case ruleKindPlate:
		return fmt.Sprintf("UPPER(REPLACE(REPLACE(%s, '-', ''), ' ', ''))", quoted)
	default:
		return fmt.Sprintf("LOWER(TRIM(%s))", quoted)
	}
}

func (r uniqueRule) validateValue(value string) error {
	if r.Kind == ruleKindTaxId {
		return utils.ValidateCnpj(value)
	}
	return nil
}

// Validator is the per-table duplicate detector the gateway runs before every
// write. Detection is mode-aware and also catches collisions within the same
// incoming batch, which neither a DB constraint nor a naive scan would.
type Validator struct {
	sel *storage.Selector
	db  func() *gorm.DB
}

func NewValidator(sel *storage.Selector, db func() *gorm.DB) *Validator {
	return &Validator{sel: sel, db: db}
}

// Check validates the candidate rows (new inserts, or matched rows with the
// update patch applied) against each other and against existing records,
// excluding excludeIds (the rows being updated).
func (v *Validator) Check(ctx context.Context, spec *models.TableSpec, candidates []models.Row, excludeIds []string) error {
	if check, ok := fieldChecks[spec.Name]; ok {
		for _, row := range candidates {
			if err := check(row); err != nil {
				return err
			}
		}
	}

	rules, ok := uniqueRules[spec.Name]
	if !ok {
		return nil
	}

	type batchKey struct {
		column string
		key    string
		scope  string
	}
	seen := map[batchKey]models.Row{}

	for _, row := range candidates {
		for _, rule := range rules {
			value := row.GetString(rule.Column)
			if value == "" {
				continue
			}
			if err := rule.validateValue(value); err != nil {
				return err
			}

			key := rule.compareKey(value)
			scope := scopeKey(row, rule.Scope)

			bk := batchKey{column: rule.Column, key: key, scope: scope}
			if other, dup := seen[bk]; dup {
				return &utils.ConflictError{
					Table:    spec.Name,
					Column:   rule.Column,
					Value:    value,
					Existing: map[string]any(other),
				}
			}
			seen[bk] = row

			existing, err := v.findExisting(ctx, spec, rule, key, row, excludeIds)
			if err != nil {
				return err
			}
			if existing != nil {
				return &utils.ConflictError{
					Table:    spec.Name,
					Column:   rule.Column,
					Value:    value,
					Existing: map[string]any(existing),
				}
			}
		}
	}
	return nil
}

func (v *Validator) findExisting(ctx context.Context, spec *models.TableSpec, rule uniqueRule, key string, candidate models.Row, excludeIds []string) (models.Row, error) {
	if v.sel.State.Connected() {
		return v.findExistingRelational(ctx, spec, rule, key, candidate, excludeIds)
	}
	return v.findExistingContingency(ctx, spec, rule, key, candidate, excludeIds)
}

// findExistingRelational issues one targeted normalized-comparison lookup.
func (v *Validator) findExistingRelational(ctx context.Context, spec *models.TableSpec, rule uniqueRule, key string, candidate models.Row, excludeIds []string) (models.Row, error) {
	db := v.db()
	if db == nil {
		return v.findExistingContingency(ctx, spec, rule, key, candidate, excludeIds)
	}

	tx := db.WithContext(ctx).Table(spec.Name).
		Where(fmt.Sprintf("%s = ?", rule.sqlExpr(rule.Column)), key)
	for _, scopeCol := range rule.Scope {
		scopeVal := candidate[scopeCol]
		if scopeVal == nil {
			tx = tx.Where(fmt.Sprintf("`%s` IS NULL", scopeCol))
		} else {
			tx = tx.Where(fmt.Sprintf("`%s` = ?", scopeCol), scopeVal)
		}
	}
	if len(excludeIds) > 0 {
		tx = tx.Where("`id` NOT IN ?", excludeIds)
	}

	var raw []map[string]interface{}
	if err := tx.Limit(1).Find(&raw).Error; err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return models.Row(raw[0]), nil
}

// findExistingContingency performs the equivalent linear scan over the
// current snapshot.
func (v *Validator) findExistingContingency(ctx context.Context, spec *models.TableSpec, rule uniqueRule, key string, candidate models.Row, excludeIds []string) (models.Row, error) {
	rows, err := v.sel.Contingency.List(ctx, spec, models.Query{})
	if err != nil {
		return nil, err
	}

	excluded := map[string]struct{}{}
	for _, id := range excludeIds {
		excluded[id] = struct{}{}
	}

	for _, row := range rows {
		if _, skip := excluded[row.GetString("id")]; skip {
			continue
		}
		value := row.GetString(rule.Column)
		if value == "" || rule.compareKey(value) != key {
			continue
		}
		if scopeKey(row, rule.Scope) != scopeKey(candidate, rule.Scope) {
			continue
		}
		return row, nil
	}
	return nil, nil
}

func scopeKey(row models.Row, scope []string) string {
	if len(scope) == 0 {
		return ""
	}
	parts := make([]string, len(scope))
	for i, col := range scope {
		parts[i] = row.GetString(col)
	}
	return strings.Join(parts, "\x00")
}
