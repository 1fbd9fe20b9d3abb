package catalog_repo

import (
	"ledger/internal/domain/catalogs/tax"
	"ledger/internal/infrastructure/storage/postgres"
)

const taxTable = "cat_taxes"

// TaxRepo implements tax.Repository. GetByIDs comes from the base repository.
type TaxRepo struct {
	*BaseCatalogRepo[*tax.Tax]
}

// NewTaxRepo creates a new tax repository.
func NewTaxRepo() *TaxRepo {
	return &TaxRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*tax.Tax](
			taxTable,
			postgres.ExtractDBColumns[tax.Tax](),
			func() *tax.Tax { return &tax.Tax{} },
		),
	}
}
