package catalog_repo

import (
	"ledger/internal/domain/catalogs/cash_rounding"
	"ledger/internal/infrastructure/storage/postgres"
)

const cashRoundingTable = "cat_cash_roundings"

// CashRoundingRepo implements cash_rounding.Repository.
type CashRoundingRepo struct {
	*BaseCatalogRepo[*cash_rounding.CashRounding]
}

// NewCashRoundingRepo creates a new cash rounding repository.
func NewCashRoundingRepo() *CashRoundingRepo {
	return &CashRoundingRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*cash_rounding.CashRounding](
			cashRoundingTable,
			postgres.ExtractDBColumns[cash_rounding.CashRounding](),
			func() *cash_rounding.CashRounding { return &cash_rounding.CashRounding{} },
		),
	}
}
