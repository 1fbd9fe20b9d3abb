package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core/apperror"
	"ledger/internal/core/id"
	"ledger/internal/core/types"
	"ledger/internal/domain/catalogs/tax"
)

type stubTaxRepo struct {
	tax.Repository
	taxes map[id.ID]*tax.Tax
	calls int
}

func (r *stubTaxRepo) GetByIDs(_ context.Context, ids []id.ID) ([]*tax.Tax, error) {
	r.calls++
	out := make([]*tax.Tax, 0, len(ids))
	for _, taxID := range ids {
		if t, ok := r.taxes[taxID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func TestCatalogProvider_TaxesResolvesGroupChildren(t *testing.T) {
	company := id.New()
	child1 := tax.NewPercentTax(company, "C1", "Child 1", types.MustMoney("10"))
	child2 := tax.NewPercentTax(company, "C2", "Child 2", types.MustMoney("5"))
	group := tax.NewPercentTax(company, "G", "Group", types.MustMoney("0"))
	group.AmountType = tax.AmountGroup
	group.ChildrenIDs = []id.ID{child1.ID, child2.ID}

	repo := &stubTaxRepo{taxes: map[id.ID]*tax.Tax{
		child1.ID: child1, child2.ID: child2, group.ID: group,
	}}
	p := NewCatalogProvider(CatalogProviderConfig{Taxes: repo})

	taxes, err := p.Taxes(context.Background(), []id.ID{group.ID, group.ID})
	require.NoError(t, err)
	assert.Len(t, taxes, 3)
	assert.Equal(t, 2, repo.calls)
	require.Len(t, taxes[group.ID].Children, 2)
	assert.Same(t, child1, taxes[group.ID].Children[0])
	assert.Same(t, child2, taxes[group.ID].Children[1])
}

func TestCatalogProvider_TaxesUnknown(t *testing.T) {
	p := NewCatalogProvider(CatalogProviderConfig{Taxes: &stubTaxRepo{taxes: map[id.ID]*tax.Tax{}}})

	_, err := p.Taxes(context.Background(), []id.ID{id.New()})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
