package handler

import (
	"errors"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/order-placement/internal/adapter/handler/pb"
	"github.com/rl1809/order-placement/internal/core/domain"
)

type outcome struct {
	httpStatus int
	grpcCode   codes.Code
	message    string
}

// classify maps placement errors to transport outcomes. Messages of typed
// domain errors are safe to show; anything else is reported as internal.
func classify(err error) outcome {
	var (
		stockErr *domain.InsufficientStockError
		invalid  *domain.InvalidOrderError
	)

	switch {
	case errors.As(err, &invalid):
		return outcome{http.StatusBadRequest, codes.InvalidArgument, invalid.Error()}
	case errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		return outcome{http.StatusNotFound, codes.NotFound, notFoundMessage(err)}
	case errors.As(err, &stockErr):
		return outcome{http.StatusConflict, codes.FailedPrecondition, stockErr.Error()}
	case errors.Is(err, domain.ErrDuplicateRequest):
		return outcome{http.StatusConflict, codes.AlreadyExists, "duplicate request"}
	case errors.Is(err, domain.ErrTransactionConflict):
		return outcome{http.StatusConflict, codes.Aborted, "concurrent update, retry the order"}
	case errors.Is(err, domain.ErrTransactionTimeout):
		return outcome{http.StatusServiceUnavailable, codes.DeadlineExceeded, "order timed out, retry later"}
	default:
		return outcome{http.StatusInternalServerError, codes.Internal, "internal error"}
	}
}

func notFoundMessage(err error) string {
	var (
		customerErr *domain.CustomerNotFoundError
		productErr  *domain.ProductNotFoundError
	)
	switch {
	case errors.As(err, &customerErr):
		return customerErr.Error()
	case errors.As(err, &productErr):
		return productErr.Error()
	default:
		return domain.ErrOrderNotFound.Error()
	}
}

func toPBOrder(order *domain.Order) *pb.Order {
	items := make([]*pb.OrderLineItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = &pb.OrderLineItem{
			ProductId: item.ProductID,
			Quantity:  int32(item.Quantity), // bounded by domain.MaxLineQuantity
			Price:     item.Price.StringFixed(2),
		}
	}

	return &pb.Order{
		Id:         order.ID,
		CustomerId: order.CustomerID,
		Status:     string(order.Status),
		Items:      items,
		Total:      order.Total().StringFixed(2),
		CreatedAt:  order.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
