package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(product string, merchant int64, qty int, price string) OrderItem {
	return OrderItem{ProductID: product, MerchantID: merchant, Quantity: qty, Price: decimal.RequireFromString(price)}
}

func TestNewOrderComputesTotalAndLines(t *testing.T) {
	o, err := NewOrder(7, "a@b.c", []OrderItem{item("P1", 1, 2, "50.00"), item("P2", 3, 1, "0.10")})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("100.10").Equal(o.TotalAmount))
	assert.Equal(t, StockSyncPending, o.StockSync)
	assert.Equal(t, 1, o.Items[0].Line)
	assert.Equal(t, 2, o.Items[1].Line)
	assert.Equal(t, int64(7), o.UserID)
}

func TestNewOrderRejectsInvalid(t *testing.T) {
	cases := map[string]struct {
		items []OrderItem
		want  error
	}{
		"empty":         {nil, ErrEmptyOrder},
		"no product":    {[]OrderItem{item("", 1, 1, "1")}, ErrInvalidProduct},
		"zero merchant": {[]OrderItem{item("P", 0, 1, "1")}, ErrInvalidMerchant},
		"zero quantity": {[]OrderItem{item("P", 1, 0, "1")}, ErrInvalidQuantity},
		"neg quantity":  {[]OrderItem{item("P", 1, -2, "1")}, ErrInvalidQuantity},
		"zero price":    {[]OrderItem{item("P", 1, 1, "0")}, ErrInvalidPrice},
		"half cent":     {[]OrderItem{item("P1", 1, 1, "0.005"), item("P2", 1, 1, "0.005")}, ErrPricePrecision},
		"rounds to 0":   {[]OrderItem{item("P", 1, 1, "0.004")}, ErrPricePrecision},
		"sub cent":      {[]OrderItem{item("P", 1, 1, "19.999")}, ErrPricePrecision},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewOrder(1, "", tc.items)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewOrderTotalMatchesCentRoundedItems(t *testing.T) {
	o, err := NewOrder(7, "a@b.c", []OrderItem{item("P1", 1, 3, "19.99"), item("P2", 1, 1, "0.010"), item("P3", 2, 7, "0.33")})
	require.NoError(t, err)

	stored := decimal.Zero
	for _, i := range o.Items {
		stored = stored.Add(i.Price.Round(2).Mul(decimal.NewFromInt(int64(i.Quantity))))
	}
	assert.True(t, stored.Equal(o.TotalAmount), "stored items %s, total %s", stored, o.TotalAmount)
	assert.True(t, o.TotalAmount.Equal(o.TotalAmount.Round(2)))
}

func TestCartItemRejectsSubCentPrice(t *testing.T) {
	c := CartItem{UserID: 7, ProductID: "P1", MerchantID: 1, Quantity: 1, Price: decimal.RequireFromString("0.005")}
	assert.ErrorIs(t, c.Validate(), ErrPricePrecision)

	c.Price = decimal.RequireFromString("0.50")
	assert.NoError(t, c.Validate())
}

func TestResolveStockSync(t *testing.T) {
	items := []OrderItem{{StockSynced: true}, {StockSynced: true}}
	assert.Equal(t, StockSyncComplete, ResolveStockSync(items))

	items[1].StockSynced = false
	assert.Equal(t, StockSyncPartial, ResolveStockSync(items))
	assert.Len(t, Order{Items: items}.Unsynced(), 1)
}

func TestDecrementKeyIsPerLine(t *testing.T) {
	assert.Equal(t, "order-101-line-1", DecrementKey(101, 1))
	assert.NotEqual(t, DecrementKey(101, 1), DecrementKey(101, 2))
}

func TestSagaTransitions(t *testing.T) {
	s := NewSaga()
	assert.Equal(t, StateValidating, s.State())

	assert.Error(t, s.Advance(StateStockSyncComplete))
	require.NoError(t, s.Advance(StatePersisted))
	require.NoError(t, s.Advance(StateStockSyncPending))
	require.NoError(t, s.Advance(StateStockSyncPartial))
	assert.True(t, s.State().Terminal())
	assert.Error(t, s.Advance(StateValidating))

	assert.Equal(t, StateStockSyncComplete, StateFor(StockSyncComplete))
	assert.Equal(t, StateStockSyncPending, StateFor(StockSyncPending))
}

func TestOrderPlacedEvent(t *testing.T) {
	o, err := NewOrder(9, "x@y.z", []OrderItem{item("P1", 1, 2, "50")})
	require.NoError(t, err)
	o.ID = 101

	ev := NewOrderPlaced(o)
	assert.Equal(t, int64(101), ev.OrderID)
	assert.Equal(t, "101", o.AggregateID())
	require.Len(t, ev.Items, 1)
	assert.Equal(t, 2, ev.Items[0].Quantity)

	partial := NewOrderStockSyncPartial(o)
	assert.Len(t, partial.Failed, 1)
}
