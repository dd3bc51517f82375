// Pacote migrations centraliza as versões gormigrate aplicadas na inicialização do store Postgres.
package migrations

import (
	"fmt"

	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/marcelojr/votos-addon/internal/platform/storage/postgres"
)

func Run(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: db nulo")
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202502010001_votos",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&postgres.VotoModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("votos")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrations: falha ao aplicar: %w", err)
	}

	return nil
}
