package handler

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/order-placement/internal/adapter/handler/pb"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
)

type GRPCHandler struct {
	pb.UnimplementedOrderServiceServer
	orderService *service.OrderService
	logger       *slog.Logger
}

func NewGRPCHandler(orderService *service.OrderService, logger *slog.Logger) *GRPCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCHandler{orderService: orderService, logger: logger}
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *pb.PlaceOrderRequest) (*pb.PlaceOrderResponse, error) {
	items := make([]domain.LineItemRequest, len(req.GetItems()))
	for i, item := range req.GetItems() {
		items[i] = domain.LineItemRequest{
			ProductID: item.GetProductId(),
			Quantity:  int(item.GetQuantity()),
		}
	}

	order, err := h.orderService.PlaceOrderOnce(ctx, req.GetRequestId(), req.GetCustomerId(), items)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	return &pb.PlaceOrderResponse{Order: toPBOrder(order)}, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *pb.GetOrderRequest) (*pb.GetOrderResponse, error) {
	order, err := h.orderService.GetOrder(ctx, req.GetId())
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	return &pb.GetOrderResponse{Order: toPBOrder(order)}, nil
}

func (h *GRPCHandler) toStatus(ctx context.Context, err error) error {
	out := classify(err)
	if out.grpcCode == codes.Internal {
		h.logger.ErrorContext(ctx, "grpc order request failed", "error", err)
	}
	return status.Error(out.grpcCode, out.message)
}
