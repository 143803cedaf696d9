package application

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/cart-order-service/internal/order/domain"
)

type stockNeed struct {
	productID  string
	merchantID int64
	quantity   int
}

// aggregateNeeds sums quantities per (product, merchant), keeping the order
// in which each pair first appears.
func aggregateNeeds(items []domain.OrderItem) []stockNeed {
	type key struct {
		product  string
		merchant int64
	}
	index := map[key]int{}
	var needs []stockNeed
	for _, item := range items {
		k := key{item.ProductID, item.MerchantID}
		if i, ok := index[k]; ok {
			needs[i].quantity += item.Quantity
			continue
		}
		index[k] = len(needs)
		needs = append(needs, stockNeed{productID: item.ProductID, merchantID: item.MerchantID, quantity: item.Quantity})
	}
	return needs
}

// merchantStock looks up one merchant's entry. Unknown products, malformed
// listings and absent merchants all read as zero stock.
func merchantStock(ctx context.Context, log *slog.Logger, inv InventoryService, productID string, merchantID int64) (MerchantStock, error) {
	listing, err := inv.GetStock(ctx, productID)
	if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrMalformedListing) {
		log.WarnContext(ctx, "stock listing unusable, treating as zero", "product_id", productID, "err", err)
		return MerchantStock{MerchantID: merchantID}, nil
	}
	if err != nil {
		return MerchantStock{}, err
	}
	for _, m := range listing {
		if m.MerchantID == merchantID {
			return m, nil
		}
	}
	return MerchantStock{MerchantID: merchantID}, nil
}

func verifyStock(ctx context.Context, log *slog.Logger, inv InventoryService, items []domain.OrderItem, parallelism int) error {
	needs := aggregateNeeds(items)
	available := make([]int, len(needs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, need := range needs {
		g.Go(func() error {
			m, err := merchantStock(gctx, log, inv, need.productID, need.merchantID)
			if err != nil {
				return err
			}
			available[i] = m.Stock
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return newError(KindUnavailable, err, "Inventory service unavailable")
	}

	for i, need := range needs {
		if need.quantity > available[i] {
			return newError(KindValidation, nil, "Insufficient stock for product %s", need.productID)
		}
	}
	return nil
}
