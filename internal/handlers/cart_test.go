package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oakmart/api/internal/services"
)

type stubCartService struct {
	getFn    func(context.Context, string) (services.Cart, error)
	upsertFn func(context.Context, services.UpsertCartLineCommand) (services.Cart, error)
	removeFn func(context.Context, services.RemoveCartLineCommand) (services.Cart, error)
	clearFn  func(context.Context, string) error
}

func (s *stubCartService) GetOrCreateCart(ctx context.Context, customerID string) (services.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, customerID)
	}
	return services.Cart{CustomerID: customerID}, nil
}

func (s *stubCartService) AddOrUpdateLine(ctx context.Context, cmd services.UpsertCartLineCommand) (services.Cart, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cmd)
	}
	return services.Cart{}, errors.New("not implemented")
}

func (s *stubCartService) RemoveLine(ctx context.Context, cmd services.RemoveCartLineCommand) (services.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.Cart{}, errors.New("not implemented")
}

func (s *stubCartService) ClearCart(ctx context.Context, customerID string) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, customerID)
	}
	return nil
}

func newCartRouter(carts services.CartService) chi.Router {
	handler := NewCartHandlers(nil, carts)
	router := chi.NewRouter()
	router.Route("/me/cart", handler.Routes)
	return router
}

func TestCartHandlersGetCart(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	service := &stubCartService{
		getFn: func(ctx context.Context, customerID string) (services.Cart, error) {
			if customerID != "cus_1" {
				t.Fatalf("unexpected customer id %s", customerID)
			}
			return services.Cart{
				CustomerID: "cus_1",
				Lines: []services.CartLine{
					{ProductID: "prd_a", Quantity: 2, AddedAt: now},
				},
				UpdatedAt: now,
			}, nil
		},
	}
	router := newCartRouter(service)

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/me/cart", nil), "cus_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Cart.CustomerID != "cus_1" {
		t.Fatalf("unexpected cart payload %#v", resp.Cart)
	}
	if len(resp.Cart.Lines) != 1 || resp.Cart.Lines[0].ProductID != "prd_a" || resp.Cart.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %#v", resp.Cart.Lines)
	}
}

func TestCartHandlersGetCartUnauthenticated(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	req := httptest.NewRequest(http.MethodGet, "/me/cart", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCartHandlersPutLine(t *testing.T) {
	var captured services.UpsertCartLineCommand
	service := &stubCartService{
		upsertFn: func(ctx context.Context, cmd services.UpsertCartLineCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{
				CustomerID: cmd.CustomerID,
				Lines:      []services.CartLine{{ProductID: cmd.ProductID, Quantity: cmd.Quantity}},
			}, nil
		},
	}
	router := newCartRouter(service)

	req := authedRequest(httptest.NewRequest(http.MethodPut, "/me/cart/items/prd_a", strings.NewReader(`{"quantity":3}`)), "cus_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.CustomerID != "cus_1" || captured.ProductID != "prd_a" || captured.Quantity != 3 {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestCartHandlersPutLineUnknownProduct(t *testing.T) {
	service := &stubCartService{
		upsertFn: func(ctx context.Context, cmd services.UpsertCartLineCommand) (services.Cart, error) {
			return services.Cart{}, services.ErrCartProductNotFound
		},
	}
	router := newCartRouter(service)

	req := authedRequest(httptest.NewRequest(http.MethodPut, "/me/cart/items/prd_missing", strings.NewReader(`{"quantity":1}`)), "cus_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCartHandlersPutLineUnavailableProduct(t *testing.T) {
	service := &stubCartService{
		upsertFn: func(ctx context.Context, cmd services.UpsertCartLineCommand) (services.Cart, error) {
			return services.Cart{}, services.ErrCartProductUnavailable
		},
	}
	router := newCartRouter(service)

	req := authedRequest(httptest.NewRequest(http.MethodPut, "/me/cart/items/prd_a", strings.NewReader(`{"quantity":1}`)), "cus_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestCartHandlersDeleteLine(t *testing.T) {
	var captured services.RemoveCartLineCommand
	service := &stubCartService{
		removeFn: func(ctx context.Context, cmd services.RemoveCartLineCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{CustomerID: cmd.CustomerID}, nil
		},
	}
	router := newCartRouter(service)

	req := authedRequest(httptest.NewRequest(http.MethodDelete, "/me/cart/items/prd_a", nil), "cus_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.CustomerID != "cus_1" || captured.ProductID != "prd_a" {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	var clearedFor string
	service := &stubCartService{
		clearFn: func(ctx context.Context, customerID string) error {
			clearedFor = customerID
			return nil
		},
	}
	router := newCartRouter(service)

	req := authedRequest(httptest.NewRequest(http.MethodDelete, "/me/cart", nil), "cus_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if clearedFor != "cus_1" {
		t.Fatalf("expected clear for cus_1, got %s", clearedFor)
	}
}
