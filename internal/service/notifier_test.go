package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront_console/internal/model"
)

func TestBuildOrderNotification_Golden(t *testing.T) {
	order := model.Order{
		ID:           "3f2a9c1e-5b7d-4e21-9a43-0c6f1d2e8b10",
		DisplayID:    "SF-7K2M9QXA",
		CustomerName: "Amina El Idrissi",
		City:         "Casablanca",
		TotalAmount:  45000,
		Currency:     "MAD",
	}

	payload, err := json.MarshalIndent(BuildOrderNotification(order, "/console"), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "order_notification", payload)
}

func TestBuildOrderNotification_FallbackLabel(t *testing.T) {
	n := BuildOrderNotification(model.Order{ID: "abcdef0123456789", CustomerName: "Omar", TotalAmount: 999, Currency: "USD"}, "")

	assert.Equal(t, "New order #abcdef01", n.Title)
	assert.Equal(t, "Omar - 9.99 USD", n.Body)
	assert.Equal(t, "order-abcdef0123456789", n.Tag)
	assert.True(t, n.RequireInteraction)
}

func TestPushNotifier_Notify(t *testing.T) {
	var got Notification
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := NewPushNotifier(server.URL, "push-secret")
	err := notifier.Notify(context.Background(), Notification{Title: "New order #1", Tag: "order-1"})

	require.NoError(t, err)
	assert.Equal(t, "Bearer push-secret", auth)
	assert.Equal(t, "order-1", got.Tag)
}

func TestPushNotifier_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "subscription expired", http.StatusGone)
	}))
	defer server.Close()

	err := NewPushNotifier(server.URL, "").Notify(context.Background(), Notification{Tag: "order-1"})
	assert.Error(t, err)
}
