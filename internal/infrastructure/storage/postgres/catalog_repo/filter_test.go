package catalog_repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/apperror"
	"ledger/internal/domain/filter"
)

func testRepo() *BaseCatalogRepo[any] {
	return NewBaseCatalogRepo[any]("cat_accounts", []string{"id", "code", "name", "company_id"}, func() any { return nil })
}

func TestApplyAdvancedFilters_Operators(t *testing.T) {
	repo := testRepo()
	ctx := context.Background()

	tests := []struct {
		name     string
		item     filter.Item
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "Greater",
			item:     filter.Item{Field: "code", Operator: filter.Greater, Value: "4000"},
			wantSQL:  "SELECT id, code, name, company_id FROM cat_accounts WHERE code > $1",
			wantArgs: []any{"4000"},
		},
		{
			name:     "Less",
			item:     filter.Item{Field: "code", Operator: filter.Less, Value: "2000"},
			wantSQL:  "SELECT id, code, name, company_id FROM cat_accounts WHERE code < $1",
			wantArgs: []any{"2000"},
		},
		{
			name:     "Contains",
			item:     filter.Item{Field: "name", Operator: filter.Contains, Value: "receiv"},
			wantSQL:  "SELECT id, code, name, company_id FROM cat_accounts WHERE name ILIKE $1",
			wantArgs: []any{"%receiv%"},
		},
		{
			name:     "IsNull",
			item:     filter.Item{Field: "company_id", Operator: filter.IsNull},
			wantSQL:  "SELECT id, code, name, company_id FROM cat_accounts WHERE company_id IS NULL",
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := repo.applyAdvancedFilters(ctx, repo.baseSelect(ctx), []filter.Item{tt.item})
			require.NoError(t, err)

			sql, args, err := q.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
				return
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestApplyAdvancedFilters_RejectsUnknownColumn(t *testing.T) {
	repo := testRepo()
	ctx := context.Background()

	_, err := repo.applyAdvancedFilters(ctx, repo.baseSelect(ctx), []filter.Item{
		{Field: "name; DROP TABLE cat_accounts", Operator: filter.Equal, Value: 1},
	})
	assert.Error(t, err)
}

func TestParseOrderBy(t *testing.T) {
	repo := testRepo()

	got, err := repo.parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "name ASC", got)

	got, err = repo.parseOrderBy("-code")
	require.NoError(t, err)
	assert.Equal(t, "code DESC", got)

	_, err = repo.parseOrderBy("password")
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestHasColumn(t *testing.T) {
	repo := testRepo()
	assert.True(t, repo.hasColumn("company_id"))
	assert.False(t, repo.hasColumn("parent_id"))
}
