package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys under the ecommerce_events exchange.
const (
	RoutingKeyOrders   = "order_events"
	RoutingKeyProducts = "product_events"
)

const (
	TypeOrderCreated   = "OrderCreated"
	TypeProductCreated = "ProductCreated"
)

// ErrUnknownType marks a payload whose eventType tag is not part of the
// closed union. Callers treat it as a poison message, not a transient fault.
var ErrUnknownType = errors.New("unknown event type")

// Event is the closed union of payloads carried through the outbox and the
// broker. DedupKey is stable across redeliveries of the same business fact.
type Event interface {
	Type() string
	RoutingKey() string
	DedupKey() string
}

type OrderItem struct {
	ProductID uint64          `json:"productId"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreated struct {
	EventType  string          `json:"eventType"`
	OrderID    uint64          `json:"orderId"`
	CustomerID uint64          `json:"customerId"`
	Items      []OrderItem     `json:"items"`
	Total      decimal.Decimal `json:"total"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (OrderCreated) Type() string { return TypeOrderCreated }
func (OrderCreated) RoutingKey() string { return RoutingKeyOrders }
func (e OrderCreated) DedupKey() string { return fmt.Sprintf("order:%d", e.OrderID) }

type ProductCreated struct {
	EventType string          `json:"eventType"`
	ProductID uint64          `json:"productId"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Stock     int64           `json:"stock"`
}

func (ProductCreated) Type() string { return TypeProductCreated }
func (ProductCreated) RoutingKey() string { return RoutingKeyProducts }
func (e ProductCreated) DedupKey() string { return fmt.Sprintf("product:%d", e.ProductID) }

// Encode marshals an event for the outbox payload column. The eventType tag
// is filled from the variant so callers cannot produce an untagged payload.
func Encode(ev Event) ([]byte, error) {
	switch v := ev.(type) {
	case OrderCreated:
		v.EventType = TypeOrderCreated
		return json.Marshal(v)
	case ProductCreated:
		v.EventType = TypeProductCreated
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, ev)
	}
}

// Decode probes the eventType tag and unmarshals the matching variant.
// Unknown tags and malformed JSON are both decode failures; only the former
// wraps ErrUnknownType.
func Decode(data []byte) (Event, error) {
	var tag struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	switch tag.EventType {
	case TypeOrderCreated:
		var ev OrderCreated
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", tag.EventType, err)
		}
		return ev, nil
	case TypeProductCreated:
		var ev ProductCreated
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", tag.EventType, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag.EventType)
	}
}
