// Package pb defines the orderplacement.v1 wire messages and gRPC service.
// Messages are encoded with the JSON codec registered in codec.go.
package pb

type LineItem struct {
	ProductId string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func (x *LineItem) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

func (x *LineItem) GetQuantity() int32 {
	if x != nil {
		return x.Quantity
	}
	return 0
}

type PlaceOrderRequest struct {
	RequestId  string      `json:"request_id,omitempty"`
	CustomerId string      `json:"customer_id"`
	Items      []*LineItem `json:"items"`
}

func (x *PlaceOrderRequest) GetRequestId() string {
	if x != nil {
		return x.RequestId
	}
	return ""
}

func (x *PlaceOrderRequest) GetCustomerId() string {
	if x != nil {
		return x.CustomerId
	}
	return ""
}

func (x *PlaceOrderRequest) GetItems() []*LineItem {
	if x != nil {
		return x.Items
	}
	return nil
}

type OrderLineItem struct {
	ProductId string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Price     string `json:"price"`
}

type Order struct {
	Id         string           `json:"id"`
	CustomerId string           `json:"customer_id"`
	Status     string           `json:"status"`
	Items      []*OrderLineItem `json:"items"`
	Total      string           `json:"total"`
	CreatedAt  string           `json:"created_at"`
}

func (x *Order) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

func (x *Order) GetItems() []*OrderLineItem {
	if x != nil {
		return x.Items
	}
	return nil
}

type PlaceOrderResponse struct {
	Order *Order `json:"order"`
}

func (x *PlaceOrderResponse) GetOrder() *Order {
	if x != nil {
		return x.Order
	}
	return nil
}

type GetOrderRequest struct {
	Id string `json:"id"`
}

func (x *GetOrderRequest) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

type GetOrderResponse struct {
	Order *Order `json:"order"`
}

func (x *GetOrderResponse) GetOrder() *Order {
	if x != nil {
		return x.Order
	}
	return nil
}
