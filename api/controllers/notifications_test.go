package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	notifsvc "github.com/joaquinvalderas/regenmarket-backend/internal/notifications"
	pkgerrors "github.com/joaquinvalderas/regenmarket-backend/pkg/errors"
)

type stubNotificationsService struct {
	result  *notifsvc.ListResult
	updated int64
	err     error
	params  *notifsvc.ListParams
	readID  uuid.UUID
}

func (s *stubNotificationsService) List(ctx context.Context, params notifsvc.ListParams) (*notifsvc.ListResult, error) {
	s.params = &params
	return s.result, s.err
}

func (s *stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	s.readID = notificationID
	return s.err
}

func (s *stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.updated, s.err
}

func TestListNotificationsCarriesUnreadCount(t *testing.T) {
	svc := &stubNotificationsService{result: &notifsvc.ListResult{Cursor: "next", UnreadCount: 4}}
	handler := ListNotifications(svc, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/user/notifications?unread_only=true&limit=5", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.params == nil {
		t.Fatal("service was not called")
	}
	if !svc.params.UnreadOnly {
		t.Fatal("expected unread_only filter")
	}
	if svc.params.Limit != 5 {
		t.Fatalf("unexpected limit %d", svc.params.Limit)
	}

	var envelope struct {
		Meta struct {
			Cursor      string `json:"cursor"`
			UnreadCount *int64 `json:"unread_count"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Meta.Cursor != "next" {
		t.Fatalf("unexpected cursor %q", envelope.Meta.Cursor)
	}
	if envelope.Meta.UnreadCount == nil || *envelope.Meta.UnreadCount != 4 {
		t.Fatalf("unexpected unread count %v", envelope.Meta.UnreadCount)
	}
}

func TestListNotificationsRejectsBadQuery(t *testing.T) {
	svc := &stubNotificationsService{result: &notifsvc.ListResult{}}
	handler := ListNotifications(svc, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/user/notifications?unread_only=maybe", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.params != nil {
		t.Fatal("service should not be called on invalid query")
	}
}

func TestMarkNotificationReadParsesPathID(t *testing.T) {
	svc := &stubNotificationsService{}
	handler := MarkNotificationRead(svc, nil)

	notificationID := uuid.New()
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/user/notifications/"+notificationID.String()+"/read", nil), uuid.New())
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("notificationID", notificationID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.readID != notificationID {
		t.Fatalf("expected service called with %s, got %s", notificationID, svc.readID)
	}
}

func TestMarkAllNotificationsReadReportsCount(t *testing.T) {
	handler := MarkAllNotificationsRead(&stubNotificationsService{updated: 7}, nil)

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/user/notifications/read-all", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["updated"] != 7 {
		t.Fatalf("unexpected updated count %d", envelope.Data["updated"])
	}
}

func TestListNotificationsMapsServiceErrors(t *testing.T) {
	svc := &stubNotificationsService{err: pkgerrors.New(pkgerrors.CodeDependency, "redis down")}
	handler := ListNotifications(svc, nil)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/user/notifications", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}
