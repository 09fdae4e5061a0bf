package event

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEncodeDecode_OrderCreated(t *testing.T) {
	ev := OrderCreated{
		OrderID:    42,
		CustomerID: 9,
		Items: []OrderItem{
			{ProductID: 7, Quantity: 2, Price: decimal.NewFromInt(25)},
		},
		Total:     decimal.NewFromInt(50),
		Timestamp: time.Date(2023, 10, 27, 14, 47, 0, 0, time.UTC),
	}

	data, err := Encode(ev)
	assert.NoError(t, err)

	decoded, err := Decode(data)
	assert.NoError(t, err)

	oc, ok := decoded.(OrderCreated)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), oc.OrderID)
	assert.Equal(t, uint64(9), oc.CustomerID)
	assert.Len(t, oc.Items, 1)
	assert.True(t, oc.Total.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "order:42", oc.DedupKey())
	assert.Equal(t, RoutingKeyOrders, oc.RoutingKey())
}

func TestEncodeDecode_ProductCreated(t *testing.T) {
	ev := ProductCreated{
		ProductID: 7,
		Name:      "Go in Practice",
		Category:  "books",
		Price:     decimal.NewFromFloat(39.99),
		Stock:     12,
	}

	data, err := Encode(ev)
	assert.NoError(t, err)

	decoded, err := Decode(data)
	assert.NoError(t, err)

	pc, ok := decoded.(ProductCreated)
	assert.True(t, ok)
	assert.Equal(t, "books", pc.Category)
	assert.Equal(t, "product:7", pc.DedupKey())
	assert.Equal(t, RoutingKeyProducts, pc.RoutingKey())
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"eventType":"ProductUpdated","productId":7}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte(`not json at all`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownType)
}

func TestDecode_MissingTag(t *testing.T) {
	_, err := Decode([]byte(`{"orderId":42}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}
