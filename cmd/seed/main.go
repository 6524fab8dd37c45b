package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"prepvio-subscription/internal/config"
	"prepvio-subscription/internal/domain"
	pg "prepvio-subscription/internal/infra/db/postgres"
	"prepvio-subscription/internal/infra/logging"
	"prepvio-subscription/internal/usecase"
)

func main() {
	cfgPath, dev := config.ParseFlags()
	cfg, err := config.LoadConfig(cfgPath, dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	catalog, err := usecase.NewPlanCatalog(cfg.Plans)
	if err != nil {
		logger.Fatal().Err(err).Msg("plan catalog")
	}
	promoUC := usecase.NewPromoUseCase(pg.NewPromoRepo(pool), catalog, logger)

	maxSave := 100.0
	seed := []usecase.CreatePromoInput{
		{
			Code:          usecase.PromoOverrideCode,
			Description:   "Two interviews on any plan",
			DiscountType:  "flat",
			DiscountValue: 0,
			PerUserLimit:  1,
		},
		{
			Code:          "SAVE10",
			Description:   "10% off any paid plan",
			DiscountType:  "percentage",
			DiscountValue: 10,
			MaxDiscount:   &maxSave,
			PerUserLimit:  1,
		},
	}

	for _, in := range seed {
		p, err := promoUC.Create(ctx, in)
		if de, ok := domain.AsError(err); ok && de.Kind == domain.KindConflict {
			fmt.Printf("  - %s already present\n", in.Code)
			continue
		}
		if err != nil {
			logger.Fatal().Err(err).Str("code", in.Code).Msg("create promo")
		}
		fmt.Printf("seeded: %s (%s %s)\n", p.Code, p.DiscountType, p.DiscountValue)
	}

	fmt.Println("✅ Seeding complete.")
}
