package grpcserver

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"labInventoryManager/internal/bootstrap"
	"labInventoryManager/internal/config"
	"labInventoryManager/internal/testutil"
	"labInventoryManager/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

const testSecret = "test-secret"

var testAdmin = config.AdminConfig{Username: "admin", Password: "fer", Email: "admin@lab.org"}

// newTestClient bootstraps an in-memory DB, serves LabService over bufconn
// and returns a connected client.
func newTestClient(t *testing.T, dbName string, policy repository.ConflictPolicy) (*Client, *grpc.ClientConn) {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, dbName)
	users := repository.NewUserRepository(d).WithPolicy(policy)
	if err := bootstrap.EnsureAdmin(context.Background(), users, testAdmin); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Minute}}
	srv := NewGRPCServer(cfg, &Server{
		Users:     users,
		Items:     repository.NewItemRepository(d),
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
	})
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn), conn
}

func strPtr(s string) *string { return &s }

func TestLogin(t *testing.T) {
	c, _ := newTestClient(t, "grpc_login", repository.PolicyRejectAny)
	ctx := context.Background()

	for _, tc := range []struct{ user, pass string }{{"admin", "wrong"}, {"nobody", "fer"}} {
		err := c.Login(ctx, tc.user, tc.pass)
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("Login(%s) expected Unauthenticated, got %v", tc.user, err)
		}
		if status.Convert(err).Message() != errBadCredentials {
			t.Fatalf("failure message must not reveal which field was wrong: %q", status.Convert(err).Message())
		}
	}
	if err := c.Login(ctx, "admin", "fer"); err != nil {
		t.Fatalf("Login admin: %v", err)
	}
	if c.token == "" {
		t.Fatalf("expected token after login")
	}
}

func TestItemsRequireLogin(t *testing.T) {
	c, _ := newTestClient(t, "grpc_requirelogin", repository.PolicyRejectAny)
	ctx := context.Background()

	if _, err := c.AddItem(ctx, "Beaker", "10", nil); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("AddItem without login: %v", err)
	}
	if _, err := c.SearchItems(ctx, ""); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("SearchItems without login: %v", err)
	}

	if err := c.Login(ctx, "admin", "fer"); err != nil {
		t.Fatalf("login: %v", err)
	}
	c.Logout()
	if _, err := c.SearchItems(ctx, ""); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("SearchItems after logout: %v", err)
	}
}

func TestAddAndSearchItems(t *testing.T) {
	c, _ := newTestClient(t, "grpc_items", repository.PolicyRejectAny)
	ctx := context.Background()
	if err := c.Login(ctx, "admin", "fer"); err != nil {
		t.Fatalf("login: %v", err)
	}

	id, err := c.AddItem(ctx, "Beaker", "10", strPtr("500ml"))
	if err != nil {
		t.Fatalf("add beaker: %v", err)
	}
	if id != 1 {
		t.Fatalf("beaker id = %d, want 1", id)
	}
	if _, err := c.AddItem(ctx, "Flask", " 5 ", strPtr("")); err != nil {
		t.Fatalf("add flask: %v", err)
	}
	if _, err := c.AddItem(ctx, "Flask", "3", nil); err != nil {
		t.Fatalf("add flask: %v", err)
	}

	items, err := c.SearchItems(ctx, "beak")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Beaker" || items[0].Quantity != 10 || items[0].Description == nil || *items[0].Description != "500ml" {
		t.Fatalf("unexpected beaker result: %+v", items)
	}

	items, err = c.SearchItems(ctx, "Flask")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 2 || items[0].ID >= items[1].ID || items[0].Quantity != 5 || items[1].Quantity != 3 {
		t.Fatalf("unexpected flask results: %+v", items)
	}
	if items[1].Description != nil {
		t.Fatalf("missing description must come back as null")
	}

	all, err := c.SearchItems(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("empty term should list everything: %v %+v", err, all)
	}
	none, err := c.SearchItems(ctx, "centrifuge")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no results: %v %+v", err, none)
	}
}

func TestAddItem_RejectsBadInput(t *testing.T) {
	c, _ := newTestClient(t, "grpc_badinput", repository.PolicyRejectAny)
	ctx := context.Background()
	if err := c.Login(ctx, "admin", "fer"); err != nil {
		t.Fatalf("login: %v", err)
	}
	for _, tc := range []struct{ name, qty string }{
		{"Beaker", "ten"},
		{"Beaker", "1.5"},
		{"Beaker", ""},
		{"", "1"},
	} {
		if _, err := c.AddItem(ctx, tc.name, tc.qty, nil); status.Code(err) != codes.InvalidArgument {
			t.Fatalf("AddItem(%q, %q) expected InvalidArgument, got %v", tc.name, tc.qty, err)
		}
	}
	items, err := c.SearchItems(ctx, "")
	if err != nil || len(items) != 0 {
		t.Fatalf("rejected input must not reach the store: %v %+v", err, items)
	}
}

func TestAddItem_NumericQuantity(t *testing.T) {
	_, conn := newTestClient(t, "grpc_numericqty", repository.PolicyRejectAny)
	c := NewClient(conn)
	ctx := context.Background()
	if err := c.Login(ctx, "admin", "fer"); err != nil {
		t.Fatalf("login: %v", err)
	}
	ctx = testutil.OutgoingBearer(ctx, c.token)

	for qty, wantCode := range map[float64]codes.Code{7: codes.OK, 2.5: codes.InvalidArgument} {
		req, _ := structpb.NewStruct(map[string]any{"name": "Pipette", "quantity": qty})
		out := new(structpb.Struct)
		err := conn.Invoke(ctx, MethodAddItem, req, out)
		if status.Code(err) != wantCode {
			t.Fatalf("quantity %v: expected %v, got %v", qty, wantCode, err)
		}
	}
}

func TestAddItem_RejectsNonTextDescription(t *testing.T) {
	c, conn := newTestClient(t, "grpc_desckind", repository.PolicyRejectAny)
	ctx := context.Background()
	if err := c.Login(ctx, "admin", "fer"); err != nil {
		t.Fatalf("login: %v", err)
	}
	out := testutil.OutgoingBearer(ctx, c.token)

	for _, desc := range []any{42.0, true, map[string]any{"a": "b"}, []any{"x"}} {
		req, _ := structpb.NewStruct(map[string]any{"name": "Flask", "quantity": "1", "description": desc})
		err := conn.Invoke(out, MethodAddItem, req, new(structpb.Struct))
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("description %v: expected InvalidArgument, got %v", desc, err)
		}
	}
	items, err := c.SearchItems(ctx, "Flask")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("rejected items must not be stored: %+v", items)
	}

	req, _ := structpb.NewStruct(map[string]any{"name": "Flask", "quantity": "1", "description": nil})
	if err := conn.Invoke(out, MethodAddItem, req, new(structpb.Struct)); err != nil {
		t.Fatalf("null description: %v", err)
	}
}

func TestCreateLab_StrictPolicy(t *testing.T) {
	c, _ := newTestClient(t, "grpc_createlab_strict", repository.PolicyRejectAny)
	ctx := context.Background()

	u, err := c.CreateLab(ctx, "lab2", "pw", "lab2@x.com")
	if err != nil {
		t.Fatalf("create lab2: %v", err)
	}
	if u.ID == 0 || u.Username != "lab2" || u.Email != "lab2@x.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := c.CreateLab(ctx, "lab2", "pw", "new@x.com"); status.Code(err) != codes.AlreadyExists {
		t.Fatalf("taken username: %v", err)
	}
	if _, err := c.CreateLab(ctx, "lab3", "pw", "lab2@x.com"); status.Code(err) != codes.AlreadyExists {
		t.Fatalf("taken email: %v", err)
	}
	if _, err := c.CreateLab(ctx, "lab4", "", "lab4@x.com"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("missing password: %v", err)
	}

	// The new lab admin can log in and see the shared inventory.
	if err := c.Login(ctx, "lab2", "pw"); err != nil {
		t.Fatalf("login lab2: %v", err)
	}
	if _, err := c.SearchItems(ctx, ""); err != nil {
		t.Fatalf("search as lab2: %v", err)
	}
}

func TestCreateLab_LenientPolicy(t *testing.T) {
	c, _ := newTestClient(t, "grpc_createlab_lenient", repository.PolicyRejectBoth)
	ctx := context.Background()

	if _, err := c.CreateLab(ctx, "lab2", "pw", "shared@x.com"); err != nil {
		t.Fatalf("create lab2: %v", err)
	}
	if _, err := c.CreateLab(ctx, "lab3", "pw", "shared@x.com"); err != nil {
		t.Fatalf("reused email should pass under lenient policy: %v", err)
	}
	if _, err := c.CreateLab(ctx, "lab2", "pw", "new@x.com"); status.Code(err) != codes.AlreadyExists {
		t.Fatalf("taken username must still conflict: %v", err)
	}
}

func TestRequestIDHeader(t *testing.T) {
	_, conn := newTestClient(t, "grpc_requestid", repository.PolicyRejectAny)
	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDHeader, "req-123")

	req, _ := structpb.NewStruct(map[string]any{"username": "admin", "password": "fer"})
	var header metadata.MD
	if err := conn.Invoke(ctx, MethodLogin, req, new(structpb.Struct), grpc.Header(&header)); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := header.Get(requestIDHeader); len(got) != 1 || got[0] != "req-123" {
		t.Fatalf("request id not echoed: %v", got)
	}

	header = nil
	if err := conn.Invoke(context.Background(), MethodLogin, req, new(structpb.Struct), grpc.Header(&header)); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := header.Get(requestIDHeader); len(got) != 1 || got[0] == "" {
		t.Fatalf("expected generated request id, got %v", got)
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHandlerLogsCarryRequestID(t *testing.T) {
	var out lockedBuffer
	prev := log.Logger
	log.Logger = zerolog.New(&out)
	t.Cleanup(func() { log.Logger = prev })

	_, conn := newTestClient(t, "grpc_requestid_log", repository.PolicyRejectAny)
	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDHeader, "req-777")
	req, _ := structpb.NewStruct(map[string]any{"username": "admin", "password": "wrong"})
	if err := conn.Invoke(ctx, MethodLogin, req, new(structpb.Struct)); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	var found bool
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, "failed login attempt") {
			found = true
			if !strings.Contains(line, `"request_id":"req-777"`) {
				t.Fatalf("handler log line missing request id: %s", line)
			}
		}
	}
	if !found {
		t.Fatalf("no failed login line logged: %s", out.String())
	}
}
