package erp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupPurchaseOrderFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/purchase_orders/PO-1001", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"po_number": "PO-1001",
			"vendor_id": "V-7",
			"line_items": [
				{"item_code": "SKU1", "unit_price": 100, "qty": 10, "description": "Widgets"}
			]
		}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "")
	res := client.Lookup(context.Background(), KindPurchaseOrder, "PO-1001")

	assert.True(t, res.Valid)
	assert.False(t, res.Transient)
	require.NotNil(t, res.PO)
	require.Len(t, res.PO.LineItems, 1)
	assert.Equal(t, "SKU1", res.PO.LineItems[0].ItemCode)

	price, err := res.PO.LineItems[0].UnitPrice.Float()
	require.NoError(t, err)
	assert.Equal(t, 100.0, price)
}

func TestLookupNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "")
	res := client.Lookup(context.Background(), KindVendor, "V-404")

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonNotFound, res.Reason)
	assert.False(t, res.Transient, "a business miss is not a transient failure")
}

func TestLookupConnectionFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing listening

	client := NewClient(ts.URL, "")
	res := client.Lookup(context.Background(), KindPurchaseOrder, "PO-1")

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonConnectionFailed, res.Reason)
	assert.True(t, res.Transient)
}

func TestLookupServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "")
	res := client.Lookup(context.Background(), KindSKU, "SKU1")

	assert.False(t, res.Valid)
	assert.Equal(t, "ERP error 500", res.Reason)
	assert.False(t, res.Transient)
}

func TestLookupMalformedPO(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"line_items": "not a list"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "")
	res := client.Lookup(context.Background(), KindPurchaseOrder, "PO-1")

	assert.False(t, res.Valid)
	assert.Equal(t, "malformed ERP response", res.Reason)
}

func TestLookupUnknownKind(t *testing.T) {
	client := NewClient("http://unused", "")
	res := client.Lookup(context.Background(), Kind("warehouse"), "X")

	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "unknown lookup kind")
}

func TestLookupSendsAuthHeader(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "sekrit")
	client.Lookup(context.Background(), KindVendor, "V-1")

	assert.Equal(t, "Bearer sekrit", gotAuth)
}
