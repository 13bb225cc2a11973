package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/catering-cart/internal/api"
	"github.com/example/catering-cart/internal/auth"
	"github.com/example/catering-cart/internal/domain/draftorder"
	"github.com/example/catering-cart/internal/infrastructure/store"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cartctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"login", "logout", "show", "add", "remove", "set", "clear", "customer", "sync"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"state-dir", "redis-addr", "backend", "format", "quiet-period", "timeout"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stateDir, backend string, args ...string) result {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	base := []string{"--state-dir", stateDir, "--backend", backend, "--redis-addr", ""}
	cmd.SetArgs(append(base, args...))
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func decodeCart(t *testing.T, r result) cartView {
	t.Helper()
	require.NoError(t, r.err, r.stderr)
	var v cartView
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &v), r.stdout)
	return v
}

// ============================================================================
// Signed out: the cart works locally and never reaches the backend
// ============================================================================

const unreachable = "http://127.0.0.1:1"

func TestSignedOut_LocalCart(t *testing.T) {
	dir := t.TempDir()

	run(t, dir, unreachable, "add", "5", "--name", "Lasagne", "--price", "20", "--qty", "2")
	v := decodeCart(t, run(t, dir, unreachable, "--format", "json", "add", "5", "--name", "Lasagne", "--price", "20"))

	require.Len(t, v.Items, 1)
	assert.Equal(t, 3, v.Items[0].Quantity)
	assert.Equal(t, 3, v.TotalItems)
	assert.Equal(t, 60.0, v.TotalPrice)
	assert.Zero(t, v.OrderID)
	assert.False(t, v.HasAccess)

	v = decodeCart(t, run(t, dir, unreachable, "--format", "json", "add", "7", "--name", "Fruit salad", "--price", "4.5"))
	assert.Len(t, v.Items, 2)

	v = decodeCart(t, run(t, dir, unreachable, "--format", "json", "set", "7", "4"))
	assert.Equal(t, 7, v.TotalItems)

	v = decodeCart(t, run(t, dir, unreachable, "--format", "json", "remove", "5"))
	require.Len(t, v.Items, 1)
	assert.Equal(t, int64(7), v.Items[0].ProductID)

	v = decodeCart(t, run(t, dir, unreachable, "--format", "json", "clear"))
	assert.Empty(t, v.Items)
	assert.Equal(t, "cleared", v.Phase)

	v = decodeCart(t, run(t, dir, unreachable, "--format", "json", "show"))
	assert.Empty(t, v.Items)
}

func TestShow_TextOutput(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, unreachable, "add", "5", "--name", "Lasagne", "--display-name", "Lasagne (veg)", "--price", "20", "--qty", "3")

	r := run(t, dir, unreachable, "show")

	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Lasagne (veg)")
	assert.Contains(t, r.stdout, "Items: 3  Total: 60.00")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"bad format", []string{"--format", "yaml", "show"}},
		{"bad product id", []string{"add", "abc", "--name", "x"}},
		{"zero product id", []string{"remove", "0"}},
		{"missing name", []string{"add", "5"}},
		{"bad quantity", []string{"set", "5", "many"}},
		{"sync signed out", []string{"sync"}},
		{"login without password", []string{"login", "--email", "cook@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CART_PASSWORD", "")
			r := run(t, dir, unreachable, tt.args...)
			assert.Error(t, r.err)
		})
	}
}

func TestRemove_UnknownProductWarns(t *testing.T) {
	dir := t.TempDir()

	r := run(t, dir, unreachable, "remove", "42")

	require.NoError(t, r.err)
	assert.Contains(t, r.stderr, "product 42 is not in the cart")
}

// ============================================================================
// Signed in against a real draftd router
// ============================================================================

const cookPassword = "correct-horse-battery"

func newBackend(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.AddProduct(store.Product{ID: 5, Name: "Vegetable lasagne", Price: 20})
	mem.AddProduct(store.Product{ID: 7, Name: "Fruit salad", Price: 4.5})

	hash, err := auth.HashPassword(cookPassword)
	require.NoError(t, err)
	mem.AddUser(store.User{
		ID:           "user-1",
		Email:        "cook@example.com",
		PasswordHash: hash,
		Active:       true,
		Customers: []auth.Customer{
			{ID: "school-12", Name: "North School Kitchen"},
			{ID: "care-3", Name: "Care Home Three"},
		},
	})

	jwtService := auth.NewJWTService("cli-test-secret-key-0123456789abcdef", time.Hour)
	srv := httptest.NewServer(api.NewRouter(api.RouterConfig{
		Drafts:     api.NewDraftOrderHandlers(draftorder.NewService(mem, mem, nil, nil), nil),
		Auth:       api.NewAuthHandlers(mem, jwtService, nil),
		JWTService: jwtService,
	}))
	t.Cleanup(srv.Close)
	return srv, mem
}

func login(t *testing.T, dir, backend string) customersView {
	t.Helper()
	r := run(t, dir, backend, "--format", "json", "login", "--email", "cook@example.com", "--password", cookPassword)
	require.NoError(t, r.err, r.stderr)
	var v customersView
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &v))
	return v
}

func TestSignedIn_SyncReconcileDelete(t *testing.T) {
	srv, mem := newBackend(t)
	ctx := context.Background()
	dir := t.TempDir()

	customers := login(t, dir, srv.URL)
	assert.Equal(t, "school-12", customers.Selected)
	assert.True(t, customers.HasAccess)
	assert.Len(t, customers.Customers, 2)

	v := decodeCart(t, run(t, dir, srv.URL, "--format", "json", "add", "5", "--name", "Vegetable lasagne", "--price", "20", "--qty", "3"))
	assert.Positive(t, v.OrderID)
	assert.Equal(t, "synced", v.Sync)

	draft, err := mem.FindByCustomer(ctx, "school-12")
	require.NoError(t, err)
	assert.Equal(t, v.OrderID, draft.ID)
	require.Len(t, draft.Lines, 1)
	assert.Equal(t, 3, draft.Lines[0].Quantity)

	// a second device with an empty cart picks up the draft
	other := t.TempDir()
	login(t, other, srv.URL)
	restored := decodeCart(t, run(t, other, srv.URL, "--format", "json", "show"))
	require.Len(t, restored.Items, 1)
	assert.Equal(t, 3, restored.TotalItems)
	assert.Equal(t, 60.0, restored.TotalPrice)
	assert.Equal(t, v.OrderID, restored.OrderID)

	// emptying the cart deletes the draft
	v = decodeCart(t, run(t, dir, srv.URL, "--format", "json", "set", "5", "0"))
	assert.Empty(t, v.Items)
	assert.Zero(t, v.OrderID)
	_, err = mem.FindByCustomer(ctx, "school-12")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSignedIn_SwitchCustomer(t *testing.T) {
	srv, mem := newBackend(t)
	ctx := context.Background()
	dir := t.TempDir()

	login(t, dir, srv.URL)
	decodeCart(t, run(t, dir, srv.URL, "--format", "json", "add", "5", "--name", "Vegetable lasagne", "--price", "20"))

	v := decodeCart(t, run(t, dir, srv.URL, "--format", "json", "customer", "care-3"))
	assert.Equal(t, "care-3", v.Customer)
	assert.Equal(t, "Care Home Three", v.CustomerName)
	assert.Empty(t, v.Items)

	// the previous customer's draft stays on the backend
	_, err := mem.FindByCustomer(ctx, "school-12")
	assert.NoError(t, err)

	r := run(t, dir, srv.URL, "--format", "json", "customer")
	require.NoError(t, r.err)
	var list customersView
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &list))
	assert.Equal(t, "care-3", list.Selected)
}

func TestSync_RetriesAfterBackendReturns(t *testing.T) {
	srv, mem := newBackend(t)
	dir := t.TempDir()

	login(t, dir, srv.URL)
	decodeCart(t, run(t, dir, unreachable, "--format", "json", "--timeout", "2s", "add", "5", "--name", "Vegetable lasagne", "--price", "20"))
	_, err := mem.FindByCustomer(context.Background(), "school-12")
	require.ErrorIs(t, err, store.ErrNotFound)

	v := decodeCart(t, run(t, dir, srv.URL, "--format", "json", "sync"))
	assert.Positive(t, v.OrderID)
	_, err = mem.FindByCustomer(context.Background(), "school-12")
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	srv, _ := newBackend(t)
	dir := t.TempDir()
	login(t, dir, srv.URL)

	r := run(t, dir, srv.URL, "logout")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "Signed out")

	r = run(t, dir, srv.URL, "sync")
	assert.Error(t, r.err)
}

func TestSignedIn_ClearDeletesDraftAndStaysEmpty(t *testing.T) {
	srv, mem := newBackend(t)
	ctx := context.Background()
	dir := t.TempDir()

	login(t, dir, srv.URL)
	decodeCart(t, run(t, dir, srv.URL, "--format", "json", "add", "5", "--name", "Vegetable lasagne", "--price", "20"))

	v := decodeCart(t, run(t, dir, srv.URL, "--format", "json", "clear"))
	assert.Empty(t, v.Items)
	_, err := mem.FindByCustomer(ctx, "school-12")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// a draft created elsewhere is not pulled into the cleared cart
	_, err = draftorder.NewService(mem, mem, nil, nil).Upsert(ctx, "user-1", "school-12", []draftorder.LineInput{
		{ProductID: 7, Quantity: 2, Price: 4.5},
	})
	require.NoError(t, err)

	v = decodeCart(t, run(t, dir, srv.URL, "--format", "json", "show"))
	assert.Empty(t, v.Items)
	assert.Equal(t, "cleared", v.Phase)
}
