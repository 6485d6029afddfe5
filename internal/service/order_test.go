package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"billing-service/internal/models"
	"billing-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderAmounts(t *testing.T) {
	f := newFixtures()
	svc := f.orderService()

	resp, err := svc.CreateOrder(context.Background(), f.checkoutRequest())
	require.NoError(t, err)

	order := resp.Order
	// Gross cart 349.98 at 20% VAT splits into 291.65 net + 58.33 VAT;
	// with 4.99 shipping the customer pays 354.97.
	assert.True(t, order.Subtotal.Equal(dec("291.65")), order.Subtotal.String())
	assert.True(t, order.VATTotal.Equal(dec("58.33")), order.VATTotal.String())
	assert.True(t, order.ShippingCost.Equal(dec("4.99")), order.ShippingCost.String())
	assert.True(t, order.DiscountAmount.IsZero())
	assert.True(t, order.Total.Equal(dec("354.97")), order.Total.String())
	assert.Equal(t, "EUR", order.Currency)

	// Net plus VAT reproduces the gross cart the customer saw.
	assert.True(t, order.Subtotal.Add(order.VATTotal).Equal(dec("349.98")))

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "ORD000001", order.OrderNumber)

	require.Len(t, resp.Items, 2)
	assert.True(t, resp.Items[0].PriceWithoutVAT.Equal(dec("208.33")), resp.Items[0].PriceWithoutVAT.String())
	assert.True(t, resp.Items[1].LineTotal.Equal(dec("99.98")), resp.Items[1].LineTotal.String())
}

func TestCreateOrderWithPercentageDiscount(t *testing.T) {
	f := newFixtures()
	f.repo.AddDiscount(activeDiscount("TEN"))
	svc := f.orderService()

	req := f.checkoutRequest()
	req.DiscountCode = strPtr("TEN")

	resp, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	order := resp.Order
	assert.True(t, order.DiscountAmount.Equal(dec("35.00")), order.DiscountAmount.String())
	assert.True(t, order.Total.Equal(dec("319.97")), order.Total.String())
	require.NotNil(t, order.DiscountCode)
	assert.Equal(t, "TEN", *order.DiscountCode)
}

func TestCreateOrderTotalNeverNegative(t *testing.T) {
	f := newFixtures()
	free := f.repo.AddShippingMethod(models.ShippingMethod{
		Code: "pickup", Name: "Pickup", Price: dec("0"), VATRate: dec("20"), IsActive: true,
	})
	d := activeDiscount("FULL")
	d.Type = models.DiscountTypeFixed
	d.Value = dec("9999.00")
	f.repo.AddDiscount(d)
	svc := f.orderService()

	req := f.checkoutRequest()
	req.ShippingMethodID = free.ID
	req.DiscountCode = strPtr("FULL")

	resp, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Order.Total.IsZero(), resp.Order.Total.String())
}

func TestCreateOrderFreeShippingThreshold(t *testing.T) {
	f := newFixtures()
	threshold := f.repo.AddShippingMethod(models.ShippingMethod{
		Code: "courier-free", Name: "Courier", Price: dec("4.99"), VATRate: dec("20"),
		FreeShippingOver: decPtr("100.00"), IsActive: true,
	})
	svc := f.orderService()

	req := f.checkoutRequest()
	req.ShippingMethodID = threshold.ID
	resp, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Order.ShippingCost.IsZero())
	assert.True(t, resp.Order.Total.Equal(dec("349.98")), resp.Order.Total.String())

	// A cart below the threshold still pays for shipping.
	small := f.checkoutRequest()
	small.Items = []CartLine{{ProductID: f.mouse.ID, Quantity: 1}}
	small.ShippingMethodID = threshold.ID
	resp, err = svc.CreateOrder(context.Background(), small)
	require.NoError(t, err)
	assert.True(t, resp.Order.ShippingCost.Equal(dec("4.99")))
}

func TestCreateOrderDiscountWithFreeShipping(t *testing.T) {
	f := newFixtures()
	desk := f.repo.AddProduct(models.Product{
		SKU: "DESK-01", Name: "Standing Desk", CategoryID: 3,
		PriceWithVAT: dec("1000.00"), VATRate: dec("20"), VATMode: "standard", IsActive: true,
	})
	threshold := f.repo.AddShippingMethod(models.ShippingMethod{
		Code: "courier-free", Name: "Courier", Price: dec("4.99"), VATRate: dec("20"),
		FreeShippingOver: decPtr("100.00"), IsActive: true,
	})
	f.repo.AddDiscount(activeDiscount("SAVE10"))
	svc := f.orderService()

	req := f.checkoutRequest()
	req.Items = []CartLine{{ProductID: desk.ID, Quantity: 1}}
	req.ShippingMethodID = threshold.ID
	req.DiscountCode = strPtr("SAVE10")

	resp, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	order := resp.Order
	assert.True(t, order.DiscountAmount.Equal(dec("100.00")), order.DiscountAmount.String())
	assert.True(t, order.ShippingCost.IsZero())
	assert.True(t, order.Total.Equal(dec("900.00")), order.Total.String())
}

func TestCreateOrderUsesSalePrice(t *testing.T) {
	f := newFixtures()
	sale := f.repo.AddProduct(models.Product{
		SKU: "SALE-01", Name: "Discounted Keyboard", CategoryID: 2,
		PriceWithVAT: dec("60.00"), SalePrice: decPtr("48.00"),
		VATRate: dec("20"), VATMode: "standard", IsActive: true,
	})
	svc := f.orderService()

	req := f.checkoutRequest()
	req.Items = []CartLine{{ProductID: sale.ID, Quantity: 1}}
	resp, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Items[0].PriceWithVAT.Equal(dec("48.00")))
	assert.True(t, resp.Order.Total.Equal(dec("52.99")), resp.Order.Total.String())
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixtures()
	inactive := f.repo.AddProduct(models.Product{
		SKU: "OLD-01", Name: "Retired", CategoryID: 1,
		PriceWithVAT: dec("10.00"), VATRate: dec("20"), IsActive: false,
	})
	svc := f.orderService()

	empty := f.checkoutRequest()
	empty.Items = nil
	_, err := svc.CreateOrder(context.Background(), empty)
	assert.ErrorIs(t, err, ErrEmptyCart)

	bad := f.checkoutRequest()
	bad.Items = []CartLine{{ProductID: f.monitor.ID, Quantity: 0}}
	_, err = svc.CreateOrder(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	retired := f.checkoutRequest()
	retired.Items = []CartLine{{ProductID: inactive.ID, Quantity: 1}}
	_, err = svc.CreateOrder(context.Background(), retired)
	assert.ErrorIs(t, err, ErrProductUnavailable)

	noShip := f.checkoutRequest()
	noShip.ShippingMethodID = 9999
	_, err = svc.CreateOrder(context.Background(), noShip)
	assert.ErrorIs(t, err, ErrShippingMethod)

	noPay := f.checkoutRequest()
	noPay.PaymentMethodID = 9999
	_, err = svc.CreateOrder(context.Background(), noPay)
	assert.ErrorIs(t, err, ErrPaymentMethod)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixtures()
	tracked := f.repo.AddProduct(models.Product{
		SKU: "LIM-01", Name: "Limited Run", CategoryID: 1,
		PriceWithVAT: dec("99.00"), VATRate: dec("20"),
		TrackStock: true, StockQuantity: 1, IsActive: true,
	})
	svc := f.orderService()

	req := f.checkoutRequest()
	req.Items = []CartLine{{ProductID: tracked.ID, Quantity: 2}}
	_, err := svc.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestCreateOrderRejectsRejectedDiscount(t *testing.T) {
	f := newFixtures()
	svc := f.orderService()

	req := f.checkoutRequest()
	req.DiscountCode = strPtr("NOPE")
	_, err := svc.CreateOrder(context.Background(), req)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestConcurrentDiscountRedemption(t *testing.T) {
	f := newFixtures()
	d := activeDiscount("RACE")
	d.MaxUsesTotal = intPtr(3)
	f.repo.AddDiscount(d)
	svc := f.orderService()

	const attempts = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := f.checkoutRequest()
			req.DiscountCode = strPtr("RACE")
			_, err := svc.CreateOrder(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrExhaustedGlobally):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, won)
	assert.Equal(t, attempts-3, rejected)
}

func TestOrderNumbersNeverReused(t *testing.T) {
	f := newFixtures()
	tracked := f.repo.AddProduct(models.Product{
		SKU: "LIM-02", Name: "Limited", CategoryID: 1,
		PriceWithVAT: dec("50.00"), VATRate: dec("20"),
		TrackStock: true, StockQuantity: 0, IsActive: true,
	})
	svc := f.orderService()

	// A failed checkout consumes its number; the gap is permanent.
	failing := f.checkoutRequest()
	failing.Items = []CartLine{{ProductID: tracked.ID, Quantity: 1}}
	_, err := svc.CreateOrder(context.Background(), failing)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	resp, err := svc.CreateOrder(context.Background(), f.checkoutRequest())
	require.NoError(t, err)
	assert.Equal(t, "ORD000002", resp.Order.OrderNumber)
}

func TestUpdateStatusTransitions(t *testing.T) {
	f := newFixtures()
	svc := f.orderService()

	resp, err := svc.CreateOrder(context.Background(), f.checkoutRequest())
	require.NoError(t, err)
	id := resp.Order.ID

	_, err = svc.UpdateStatus(context.Background(), id, "teleported", nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	// Back to pending is never allowed.
	updated, err := svc.UpdateStatus(context.Background(), id, models.OrderStatusConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)
	_, err = svc.UpdateStatus(context.Background(), id, models.OrderStatusPending, nil)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	// Shipping stamps the timestamp and tracking number.
	updated, err = svc.UpdateStatus(context.Background(), id, models.OrderStatusShipped, strPtr("SP123456789"))
	require.NoError(t, err)
	require.NotNil(t, updated.ShippedAt)
	require.NotNil(t, updated.TrackingNumber)
	assert.Equal(t, "SP123456789", *updated.TrackingNumber)

	updated, err = svc.UpdateStatus(context.Background(), id, models.OrderStatusDelivered, nil)
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveredAt)

	// Delivered is terminal.
	_, err = svc.UpdateStatus(context.Background(), id, models.OrderStatusCancelled, nil)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestUpdateStatusSkipsIntermediateSteps(t *testing.T) {
	f := newFixtures()
	svc := f.orderService()

	resp, err := svc.CreateOrder(context.Background(), f.checkoutRequest())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), resp.Order.ID, models.OrderStatusShipped, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
}

func TestUpdatePaymentStatusToggles(t *testing.T) {
	f := newFixtures()
	svc := f.orderService()

	resp, err := svc.CreateOrder(context.Background(), f.checkoutRequest())
	require.NoError(t, err)
	id := resp.Order.ID

	updated, err := svc.UpdatePaymentStatus(context.Background(), id, models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	_, err = svc.UpdatePaymentStatus(context.Background(), id, models.PaymentStatusPaid)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	updated, err = svc.UpdatePaymentStatus(context.Background(), id, models.PaymentStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, updated.PaymentStatus)
}

func TestGetOrderNotFound(t *testing.T) {
	f := newFixtures()
	svc := f.orderService()

	_, err := svc.GetOrder(context.Background(), 12345)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
