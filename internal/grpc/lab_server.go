package grpcserver

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"labInventoryManager/internal/auth"
	"labInventoryManager/models"
	"labInventoryManager/repository"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// errBadCredentials is the single message for every failed login.
const errBadCredentials = "invalid username or password"

// Server bundles dependencies and implements LabService.
type Server struct {
	Users     repository.UserRepositoryI
	Items     repository.ItemRepositoryI
	JWTSecret string
	TokenTTL  time.Duration
	// Now is overridable in tests.
	Now func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login checks credentials and returns a session token.
func (s *Server) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := stringField(req, "username")
	password := stringField(req, "password")

	ok, err := s.Users.Validate(ctx, username, password)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "validate: %v", err)
	}
	if !ok {
		ctxLogger(ctx).Warn().Str("username", username).Msg("failed login attempt")
		return nil, status.Error(codes.Unauthenticated, errBadCredentials)
	}
	tok, err := auth.IssueToken(s.JWTSecret, username, s.TokenTTL, s.now())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "issue token: %v", err)
	}
	return newStruct(map[string]any{"token": tok})
}

// CreateLab provisions a new lab administrator from the login screen.
func (s *Server) CreateLab(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := strings.TrimSpace(stringField(req, "username"))
	password := stringField(req, "password")
	email := strings.TrimSpace(stringField(req, "email"))
	if username == "" || password == "" || email == "" {
		return nil, status.Error(codes.InvalidArgument, "username, password and email are required")
	}

	u, err := s.Users.CreateAdmin(ctx, username, password, email)
	if errors.Is(err, repository.ErrConflict) {
		return nil, status.Error(codes.AlreadyExists, repository.ErrConflict.Error())
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "create lab: %v", err)
	}
	ctxLogger(ctx).Info().Str("username", u.Username).Int64("id", u.ID).Msg("new lab and admin user created")
	return newStruct(map[string]any{"id": u.ID, "username": u.Username, "email": u.Email})
}

// AddItem stores one inventory item. Quantity may arrive as a number or as
// the text typed into the form; anything that is not an integer is rejected
// before the store is called.
func (s *Server) AddItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireAdmin(ctx, s.Users); err != nil {
		return nil, err
	}
	name := stringField(req, "name")
	if strings.TrimSpace(name) == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	qty, err := parseQuantity(req.GetFields()["quantity"])
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "quantity: %v", err)
	}
	desc, err := parseDescription(req.GetFields()["description"])
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "description: %v", err)
	}

	id, err := s.Items.Add(ctx, name, qty, desc)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "add item: %v", err)
	}
	return newStruct(map[string]any{"id": id})
}

// SearchItems returns items whose name contains term.
func (s *Server) SearchItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := auth.RequireAdmin(ctx, s.Users); err != nil {
		return nil, err
	}
	items, err := s.Items.Search(ctx, stringField(req, "term"))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "search: %v", err)
	}
	out := make([]any, 0, len(items))
	for i := range items {
		out = append(out, itemToMap(&items[i]))
	}
	return newStruct(map[string]any{"items": out})
}

func itemToMap(it *models.Item) map[string]any {
	m := map[string]any{
		"id":          it.ID,
		"name":        it.Name,
		"quantity":    it.Quantity,
		"description": nil,
	}
	if it.Description != nil {
		m["description"] = *it.Description
	}
	return m
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// parseQuantity accepts an integral number or decimal integer text.
func parseQuantity(v *structpb.Value) (int64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f != math.Trunc(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
			return 0, errors.New("must be an integer")
		}
		return int64(f), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(strings.TrimSpace(k.StringValue), 10, 64)
		if err != nil {
			return 0, errors.New("must be an integer")
		}
		return n, nil
	default:
		return 0, errors.New("is required")
	}
}

// parseDescription accepts text, null or an absent field; absent and null
// both mean no description.
func parseDescription(v *structpb.Value) (*string, error) {
	switch k := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_StringValue:
		d := k.StringValue
		return &d, nil
	default:
		return nil, errors.New("must be text")
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}
