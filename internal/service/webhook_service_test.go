package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plgshop/internal/model"
	"plgshop/pkg/logger"
	"plgshop/pkg/shopify"
)

func TestWebhookUpdatesAndDeletes(t *testing.T) {
	orders := newMemOrders()
	require.NoError(t, orders.Upsert(context.Background(), &model.ShopifyOrder{
		ShopifyOrderID:  1001,
		FinancialStatus: sql.NullString{String: "pending", Valid: true},
	}))
	svc := NewWebhookService("whsec", orders, logger.NewNop())
	ctx := context.Background()

	body := []byte(`{"id":1001,"financial_status":"paid","fulfillment_status":"fulfilled","total_price":"500.00","line_items":[{"id":1,"title":"PLG","quantity":1,"price":"500.00","sku":"7"}]}`)
	require.NoError(t, svc.Handle(ctx, "orders/updated", body, shopify.SignWebhook("whsec", body)))
	row := orders.rows[1001]
	assert.Equal(t, "paid", row.FinancialStatus.String)
	assert.Equal(t, "fulfilled", row.FulfillmentStatus.String)
	require.Len(t, row.LineItems, 1)
	assert.Equal(t, "PLG", row.LineItems[0].Title)

	del := []byte(`{"id":1001}`)
	require.NoError(t, svc.Handle(ctx, TopicOrderDelete, del, shopify.SignWebhook("whsec", del)))
	assert.Empty(t, orders.rows)
}

func TestWebhookRejects(t *testing.T) {
	svc := NewWebhookService("whsec", newMemOrders(), logger.NewNop())
	ctx := context.Background()
	body := []byte(`{"id":1}`)

	assert.ErrorIs(t, svc.Handle(ctx, "orders/updated", body, "bogus"), ErrWebhookSignature)
	assert.ErrorIs(t, svc.Handle(ctx, "orders/updated", body, ""), ErrWebhookSignature)

	noID := []byte(`{"name":"#1"}`)
	err := svc.Handle(ctx, "orders/updated", noID, shopify.SignWebhook("whsec", noID))
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Missing order id", err.Error())
}
