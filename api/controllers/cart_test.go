package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/joaquinvalderas/regenmarket-backend/api/middleware"
	cartsvc "github.com/joaquinvalderas/regenmarket-backend/internal/cart"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
)

type stubCartService struct {
	dto    *cartsvc.CartDTO
	err    error
	putReq *cartsvc.PutRequest
}

func (s *stubCartService) Fetch(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.dto, s.err
}

func (s *stubCartService) Put(ctx context.Context, userID uuid.UUID, req cartsvc.PutRequest) (*cartsvc.CartDTO, error) {
	s.putReq = &req
	return s.dto, s.err
}

func (s *stubCartService) Remove(ctx context.Context, userID, productID uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.dto, s.err
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func TestCartFetchSuccess(t *testing.T) {
	dto := &cartsvc.CartDTO{SubtotalCents: 1500}
	handler := CartFetch(&stubCartService{dto: dto}, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/user/cart", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartsvc.CartDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SubtotalCents != 1500 {
		t.Fatalf("unexpected subtotal: %d", envelope.Data.SubtotalCents)
	}
}

func TestCartFetchMissingUserContext(t *testing.T) {
	handler := CartFetch(&stubCartService{dto: &cartsvc.CartDTO{}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/user/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartPutDecodesBody(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{dto: &cartsvc.CartDTO{}}
	handler := CartPut(svc, nil)

	body := `{"product_id":"` + productID.String() + `","quantity":3}`
	req := withUser(httptest.NewRequest(http.MethodPut, "/api/user/cart", strings.NewReader(body)), uuid.New())
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.putReq == nil || svc.putReq.ProductID != productID || svc.putReq.Quantity != 3 {
		t.Fatalf("unexpected put request %+v", svc.putReq)
	}
}

func TestCartPutRejectsInvalidBody(t *testing.T) {
	svc := &stubCartService{dto: &cartsvc.CartDTO{}}
	handler := CartPut(svc, nil)

	req := withUser(httptest.NewRequest(http.MethodPut, "/api/user/cart", strings.NewReader(`{"quantity":0}`)), uuid.New())
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.putReq != nil {
		t.Fatalf("service should not be called for invalid payload")
	}
}

func TestCartFetchMapsServiceErrors(t *testing.T) {
	handler := CartFetch(&stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "missing")}, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/user/cart", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
