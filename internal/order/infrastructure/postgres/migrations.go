package postgres

import (
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"

	platformpg "github.com/dmehra2102/cart-order-service/internal/platform/postgres"
)

//go:embed migrations/*.sql
var migrations embed.FS

func Migrate(pool *pgxpool.Pool) error {
	return platformpg.Migrate(pool, migrations, "migrations", "order_schema_migrations")
}
