package grpcserver

import (
	"context"
	"fmt"

	"labInventoryManager/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is the presentation layer's handle on LabService. Login stores the
// returned token and attaches it to later calls; Logout drops it.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login authenticates and keeps the session token on success.
func (c *Client) Login(ctx context.Context, username, password string) error {
	out, err := c.call(ctx, MethodLogin, map[string]any{"username": username, "password": password})
	if err != nil {
		return err
	}
	c.token = stringField(out, "token")
	return nil
}

// Logout forgets the session token.
func (c *Client) Logout() { c.token = "" }

// CreateLab provisions a new admin account.
func (c *Client) CreateLab(ctx context.Context, username, password, email string) (*models.User, error) {
	out, err := c.call(ctx, MethodCreateLab, map[string]any{"username": username, "password": password, "email": email})
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:       int64(out.GetFields()["id"].GetNumberValue()),
		Username: stringField(out, "username"),
		Email:    stringField(out, "email"),
	}, nil
}

// AddItem sends quantity as the raw form text; the server parses it.
func (c *Client) AddItem(ctx context.Context, name, quantity string, description *string) (int64, error) {
	in := map[string]any{"name": name, "quantity": quantity}
	if description != nil {
		in["description"] = *description
	}
	out, err := c.call(ctx, MethodAddItem, in)
	if err != nil {
		return 0, err
	}
	return int64(out.GetFields()["id"].GetNumberValue()), nil
}

// SearchItems returns the matching items in ID order.
func (c *Client) SearchItems(ctx context.Context, term string) ([]models.Item, error) {
	out, err := c.call(ctx, MethodSearchItems, map[string]any{"term": term})
	if err != nil {
		return nil, err
	}
	values := out.GetFields()["items"].GetListValue().GetValues()
	items := make([]models.Item, 0, len(values))
	for _, v := range values {
		f := v.GetStructValue()
		it := models.Item{
			ID:       int64(f.GetFields()["id"].GetNumberValue()),
			Name:     stringField(f, "name"),
			Quantity: int64(f.GetFields()["quantity"].GetNumberValue()),
		}
		if d, ok := f.GetFields()["description"].GetKind().(*structpb.Value_StringValue); ok {
			s := d.StringValue
			it.Description = &s
		}
		items = append(items, it)
	}
	return items, nil
}
