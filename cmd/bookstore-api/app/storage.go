package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aq2208/gorder-bookstore/configs"
	"github.com/aq2208/gorder-bookstore/internal/adapter/cache"
	"github.com/aq2208/gorder-bookstore/internal/adapter/memory"
	"github.com/aq2208/gorder-bookstore/internal/adapter/repo"
	domain "github.com/aq2208/gorder-bookstore/internal/entity"
	"github.com/aq2208/gorder-bookstore/internal/usecase"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// storage is the set of ports one driver provides.
type storage struct {
	items    usecase.InventoryRepo
	carts    usecase.CartRepo
	orders   usecase.OrderRepo
	stock    usecase.StockLedger
	payments usecase.PaymentRepo
	intents  usecase.KeyedStore
	idem     usecase.IdempotencyStore
	close    func()
}

func openStorage(ctx context.Context, cfg configs.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return openMemory(cfg), nil
	case "mysql", "":
		return openMySQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openMemory(cfg configs.Config) *storage {
	s := memory.NewStore()
	s.Seed(devCatalog()...)
	return &storage{
		items:    s.Inventory(),
		carts:    s.Carts(),
		orders:   s.Orders(),
		stock:    s.Stock(),
		payments: s.Payments(),
		intents:  memory.NewKeyedStore(cfg.Intent.TTL),
		idem:     memory.NewIdempotencyStore(cfg.Idempotency.TTL),
		close:    func() {},
	}
}

func openMySQL(ctx context.Context, cfg configs.Config) (*storage, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	db, err := repo.Open(pingCtx, cfg.MySQL.DSN, repo.Options{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.MySQL.Migrate {
		if err := repo.RunMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &storage{
		items:    repo.NewMySQLInventoryRepo(db),
		carts:    repo.NewMySQLCartRepo(db),
		orders:   repo.NewMySQLOrderRepo(db),
		stock:    repo.NewMySQLStockLedger(db),
		payments: repo.NewMySQLPaymentRepo(db),
		intents:  cache.NewRedisKeyedStore(rdb, "intent:", cfg.Intent.TTL),
		idem:     cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL),
		close:    closeAll(db, rdb),
	}, nil
}

func closeAll(db *sql.DB, rdb *redis.Client) func() {
	return func() {
		_ = db.Close()
		_ = rdb.Close()
	}
}

// devCatalog stocks the memory driver so a local run has something to sell.
func devCatalog() []domain.InventoryItem {
	return []domain.InventoryItem{
		{ID: "bk-os-101", Kind: domain.KindBook, Title: "Operating System Concepts", Author: "Silberschatz", UnitPrice: decimal.RequireFromString("649.00"), Stock: 40},
		{ID: "bk-alg-201", Kind: domain.KindBook, Title: "Introduction to Algorithms", Author: "Cormen", UnitPrice: decimal.RequireFromString("899.00"), Stock: 25},
		{ID: "bk-net-301", Kind: domain.KindBook, Title: "Computer Networks", Author: "Tanenbaum", UnitPrice: decimal.RequireFromString("559.00"), Stock: 8},
		{ID: "wb-calc-1", Kind: domain.KindWorkbook, Title: "Calculus I Workbook", UnitPrice: decimal.RequireFromString("180.00"), Stock: 60},
		{ID: "wb-phy-1", Kind: domain.KindWorkbook, Title: "Physics Lab Workbook", UnitPrice: decimal.RequireFromString("150.00"), Stock: 5},
	}
}
