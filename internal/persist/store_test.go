package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/catering-cart/internal/domain/cart"
)

func newTestStore() (*Store, *MemoryBackend) {
	backend := NewMemoryBackend()
	return NewStore(backend, nil), backend
}

// ============================================
// Round Trip Tests
// ============================================

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	snap := Snapshot{
		Items: []cart.LineItem{
			{ProductID: 1, ProductName: "Soup", DisplayName: "Tomato soup", Image: "soup.png", UnitPrice: 10, Quantity: 2},
			{ProductID: 7, ProductName: "Bread", UnitPrice: 0, Quantity: 1},
		},
		RemoteOrderID: 4711,
	}
	require.NoError(t, store.Save(ctx, snap))

	res := store.Load(ctx)

	assert.Equal(t, LoadValid, res.Status)
	assert.Zero(t, res.Dropped)
	assert.Equal(t, snap.Items, res.Snapshot.Items)
	assert.Equal(t, int64(4711), res.Snapshot.RemoteOrderID)
	assert.False(t, res.Snapshot.Cleared)
}

func TestStore_LoadNothingStored(t *testing.T) {
	store, _ := newTestStore()

	res := store.Load(context.Background())

	assert.Equal(t, LoadEmpty, res.Status)
	assert.Empty(t, res.Snapshot.Items)
	assert.Zero(t, res.Snapshot.RemoteOrderID)
}

func TestStore_SaveWithoutOrderIDClearsKey(t *testing.T) {
	store, backend := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{RemoteOrderID: 12}))
	require.NoError(t, store.Save(ctx, Snapshot{}))

	_, ok, _ := backend.Get(ctx, KeyDraftOrderID)
	assert.False(t, ok, "absent id must delete the key, not write a sentinel")
}

func TestStore_ClearedMarkerRoundTrip(t *testing.T) {
	store, backend := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{Cleared: true}))
	assert.True(t, store.Load(ctx).Snapshot.Cleared)

	require.NoError(t, store.Save(ctx, Snapshot{}))
	assert.False(t, store.Load(ctx).Snapshot.Cleared)
	_, ok, _ := backend.Get(ctx, KeyLifecycle)
	assert.False(t, ok)
}

// ============================================
// Validation Tests
// ============================================

func TestStore_LoadDropsInvalidEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"missing product id", `{"productName":"x","unitPrice":1,"quantity":1}`},
		{"zero product id", `{"productId":0,"productName":"x","unitPrice":1,"quantity":1}`},
		{"negative product id", `{"productId":-3,"productName":"x","unitPrice":1,"quantity":1}`},
		{"string product id", `{"productId":"5","productName":"x","unitPrice":1,"quantity":1}`},
		{"fractional product id", `{"productId":1.5,"productName":"x","unitPrice":1,"quantity":1}`},
		{"missing name", `{"productId":5,"unitPrice":1,"quantity":1}`},
		{"numeric name", `{"productId":5,"productName":12,"unitPrice":1,"quantity":1}`},
		{"negative price", `{"productId":5,"productName":"x","unitPrice":-1,"quantity":1}`},
		{"string price", `{"productId":5,"productName":"x","unitPrice":"1","quantity":1}`},
		{"zero quantity", `{"productId":5,"productName":"x","unitPrice":1,"quantity":0}`},
		{"missing quantity", `{"productId":5,"productName":"x","unitPrice":1}`},
		{"null entry", `null`},
		{"array entry", `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend := newTestStore()
			ctx := context.Background()
			valid := `{"productId":9,"productName":"Soup","unitPrice":3.5,"quantity":2}`
			require.NoError(t, backend.Set(ctx, KeyItems, "["+tt.entry+","+valid+"]"))

			res := store.Load(ctx)

			assert.Equal(t, LoadValid, res.Status)
			assert.Equal(t, 1, res.Dropped)
			require.Len(t, res.Snapshot.Items, 1, "only the offending entry is dropped")
			assert.Equal(t, int64(9), res.Snapshot.Items[0].ProductID)
		})
	}
}

func TestStore_LoadLenientOptionalFields(t *testing.T) {
	store, backend := newTestStore()
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, KeyItems,
		`[{"productId":3,"productName":"Salad","displayName":null,"image":42,"unitPrice":0,"quantity":1}]`))

	res := store.Load(ctx)

	require.Len(t, res.Snapshot.Items, 1)
	assert.Empty(t, res.Snapshot.Items[0].DisplayName)
	assert.Empty(t, res.Snapshot.Items[0].Image)
}

func TestStore_LoadMergesDuplicateProducts(t *testing.T) {
	store, backend := newTestStore()
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, KeyItems,
		`[{"productId":3,"productName":"A","unitPrice":1,"quantity":1},{"productId":3,"productName":"B","unitPrice":2,"quantity":4}]`))

	res := store.Load(ctx)

	require.Len(t, res.Snapshot.Items, 1)
	assert.Equal(t, 5, res.Snapshot.Items[0].Quantity)
	assert.Equal(t, "A", res.Snapshot.Items[0].ProductName)
}

func TestStore_LoadCorruptJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"object instead of list", `{"productId":1}`},
		{"truncated", `[{"productId":1,`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend := newTestStore()
			ctx := context.Background()
			require.NoError(t, backend.Set(ctx, KeyItems, tt.raw))

			res := store.Load(ctx)

			assert.Equal(t, LoadInvalid, res.Status)
			assert.Empty(t, res.Snapshot.Items)
			_, ok, _ := backend.Get(ctx, KeyItems)
			assert.False(t, ok, "unreadable data is discarded")
		})
	}
}

func TestStore_LoadInvalidOrderID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{"plain", "15", 15},
		{"quoted", `"15"`, 15},
		{"zero", "0", 0},
		{"negative", "-2", 0},
		{"fraction", "1.5", 0},
		{"text", "null", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend := newTestStore()
			ctx := context.Background()
			require.NoError(t, backend.Set(ctx, KeyDraftOrderID, tt.raw))

			res := store.Load(ctx)

			assert.Equal(t, tt.want, res.Snapshot.RemoteOrderID)
		})
	}
}

type failingBackend struct{ MemoryBackend }

func (f *failingBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func TestStore_LoadBackendFailureIsEmptyCart(t *testing.T) {
	store := NewStore(&failingBackend{}, nil)

	res := store.Load(context.Background())

	assert.Equal(t, LoadInvalid, res.Status)
	assert.Empty(t, res.Snapshot.Items)
}

// ============================================
// Customer / Token Tests
// ============================================

func TestStore_Customer(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	assert.Empty(t, store.LoadCustomer(ctx))

	require.NoError(t, store.SaveCustomer(ctx, "  school-12 "))
	assert.Equal(t, "school-12", store.LoadCustomer(ctx))

	require.NoError(t, store.SaveCustomer(ctx, ""))
	assert.Empty(t, store.LoadCustomer(ctx))
}

func TestStore_Token(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.SaveToken(ctx, "abc.def.ghi"))
	assert.Equal(t, "abc.def.ghi", store.LoadToken(ctx))

	require.NoError(t, store.SaveToken(ctx, ""))
	assert.Empty(t, store.LoadToken(ctx))
}

func TestLoadStatus_String(t *testing.T) {
	assert.Equal(t, "empty", LoadEmpty.String())
	assert.Equal(t, "valid", LoadValid.String())
	assert.Equal(t, "invalid", LoadInvalid.String())
}
