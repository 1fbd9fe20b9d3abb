package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ledger/internal/core/id"
	"ledger/internal/domain/catalogs/account"
	"ledger/internal/domain/ledger"
)

func TestExtractDBColumns_EmbeddedCatalog(t *testing.T) {
	cols := ExtractDBColumns[account.Account]()

	for _, expected := range []string{
		"id", "deletion_mark", "version", "code", "name",
		"company_id", "account_type", "reconcile", "currency_id",
	} {
		assert.Contains(t, cols, expected)
	}
}

func TestExtractDBColumns_SkipsIgnoredFields(t *testing.T) {
	cols := ExtractDBColumns[ledger.Move]()

	assert.Contains(t, cols, "number")
	assert.Contains(t, cols, "cash_basis_percentage")
	assert.NotContains(t, cols, "-")
	assert.NotContains(t, cols, "lines")
}

func TestStructToMap_Account(t *testing.T) {
	companyID := id.New()
	acc := account.NewAccount(companyID, "1100", "Receivable", account.TypeReceivable)
	acc.Version = 5

	m := StructToMap(acc)

	assert.Equal(t, acc.ID, m["id"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "1100", m["code"])
	assert.Equal(t, companyID, m["company_id"])
	assert.Equal(t, account.TypeReceivable, m["account_type"])
	assert.Equal(t, true, m["reconcile"])
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap("receivable"))
}
