package catalog_repo

import (
	"ledger/internal/domain/catalogs/company"
	"ledger/internal/infrastructure/storage/postgres"
)

const companyTable = "cat_companies"

// CompanyRepo implements company.Repository.
type CompanyRepo struct {
	*BaseCatalogRepo[*company.Company]
}

// NewCompanyRepo creates a new company repository.
func NewCompanyRepo() *CompanyRepo {
	return &CompanyRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*company.Company](
			companyTable,
			postgres.ExtractDBColumns[company.Company](),
			func() *company.Company { return &company.Company{} },
		),
	}
}
