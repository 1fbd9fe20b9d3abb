package catalog_repo

import (
	"ledger/internal/domain/catalogs/journal"
	"ledger/internal/infrastructure/storage/postgres"
)

const journalTable = "cat_journals"

// JournalRepo implements journal.Repository.
type JournalRepo struct {
	*BaseCatalogRepo[*journal.Journal]
}

// NewJournalRepo creates a new journal repository.
func NewJournalRepo() *JournalRepo {
	return &JournalRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*journal.Journal](
			journalTable,
			postgres.ExtractDBColumns[journal.Journal](),
			func() *journal.Journal { return &journal.Journal{} },
		),
	}
}
