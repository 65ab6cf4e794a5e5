// Package main seeds a foodcoop database with article prices, subgroup
// accounts and stock levels. Without SEED_FILE a small demo set is used.
//
// SEED_FILE is JSON:
//
//	{
//	  "articles":  [{"id": "...", "net": "2.10", "tax": "7", "deposit": "0", "unitQuantity": 6}],
//	  "subgroups": [{"id": "...", "balance": "100"}],
//	  "stock":     [{"id": "...", "quantity": 24}]
//	}
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"foodcoop/internal/core/id"
	"foodcoop/internal/core/types"
	"foodcoop/internal/domain/orders"
	"foodcoop/internal/infrastructure/storage/postgres"
	"foodcoop/internal/infrastructure/storage/postgres/order_repo"
	"foodcoop/internal/infrastructure/storage/postgres/register_repo"
	"foodcoop/pkg/logger"
)

type articleSeed struct {
	ID           id.ID           `json:"id"`
	Net          types.Money     `json:"net"`
	Tax          decimal.Decimal `json:"tax"`
	Deposit      types.Money     `json:"deposit"`
	UnitQuantity int             `json:"unitQuantity"`
}

type subgroupSeed struct {
	ID      id.ID       `json:"id"`
	Balance types.Money `json:"balance"`
}

type stockSeed struct {
	ID       id.ID `json:"id"`
	Quantity int   `json:"quantity"`
}

type seedData struct {
	Articles  []articleSeed  `json:"articles"`
	Subgroups []subgroupSeed `json:"subgroups"`
	Stock     []stockSeed    `json:"stock"`
}

// demoData uses fixed ids so repeated runs update instead of duplicating.
func demoData() seedData {
	return seedData{
		Articles: []articleSeed{
			{ID: id.MustParse("0190f5a0-0000-7000-8000-000000000001"), Net: types.MustMoney("2.10"), Tax: decimal.NewFromInt(7), Deposit: types.Zero(), UnitQuantity: 6},
			{ID: id.MustParse("0190f5a0-0000-7000-8000-000000000002"), Net: types.MustMoney("1.45"), Tax: decimal.NewFromInt(7), Deposit: types.MustMoney("0.15"), UnitQuantity: 12},
			{ID: id.MustParse("0190f5a0-0000-7000-8000-000000000003"), Net: types.MustMoney("4.80"), Tax: decimal.NewFromInt(19), Deposit: types.Zero(), UnitQuantity: 1},
		},
		Subgroups: []subgroupSeed{
			{ID: id.MustParse("0190f5a0-0000-7000-8000-0000000000a1"), Balance: types.MustMoney("100")},
			{ID: id.MustParse("0190f5a0-0000-7000-8000-0000000000a2"), Balance: types.MustMoney("50")},
		},
		Stock: []stockSeed{
			{ID: id.MustParse("0190f5a0-0000-7000-8000-000000000003"), Quantity: 10},
		},
	}
}

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	data := demoData()
	if path := os.Getenv("SEED_FILE"); path != "" {
		if data, err = readSeedFile(path); err != nil {
			log.Fatalw("failed to read seed file", "path", path, "error", err)
		}
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	err = txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return seed(ctx, txManager, data)
	})
	if err != nil {
		log.Fatalw("failed to seed", "error", err)
	}

	log.Infow("seeding completed successfully",
		"articles", len(data.Articles),
		"subgroups", len(data.Subgroups),
		"stock", len(data.Stock),
	)
}

func readSeedFile(path string) (seedData, error) {
	var data seedData
	raw, err := os.ReadFile(path)
	if err != nil {
		return data, err
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decode: %w", err)
	}
	return data, nil
}

func seed(ctx context.Context, txManager *postgres.TxManager, data seedData) error {
	prices := order_repo.NewPriceRepo(txManager)
	accounts := register_repo.NewLedgerRepo(txManager)
	stock := register_repo.NewStockRepo(txManager)

	validFrom := time.Now().UTC()
	for _, a := range data.Articles {
		unitQuantity := a.UnitQuantity
		if unitQuantity <= 0 {
			unitQuantity = 1
		}
		err := prices.SetPrice(ctx, orders.ArticlePrice{
			ArticleID:    a.ID,
			NetPrice:     a.Net,
			Tax:          a.Tax,
			Deposit:      a.Deposit,
			UnitQuantity: unitQuantity,
		}, validFrom)
		if err != nil {
			return fmt.Errorf("price %s: %w", a.ID, err)
		}
	}
	for _, sg := range data.Subgroups {
		if err := accounts.OpenAccount(ctx, sg.ID, sg.Balance); err != nil {
			return fmt.Errorf("account %s: %w", sg.ID, err)
		}
	}
	for _, s := range data.Stock {
		if err := stock.SetQuantity(ctx, s.ID, s.Quantity); err != nil {
			return fmt.Errorf("stock %s: %w", s.ID, err)
		}
	}
	return nil
}
