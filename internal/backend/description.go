package backend

import (
	"context"
	"fmt"
	"net/http"
)

// DescriptionClient asks the AI service for product copy
type DescriptionClient struct {
	client *Client
}

// NewDescriptionClient creates a description client
func NewDescriptionClient(client *Client) *DescriptionClient {
	return &DescriptionClient{client: client}
}

type descriptionRequest struct {
	Name       string `json:"name"`
	EntityType string `json:"entityType"`
}

type descriptionResponse struct {
	Description string `json:"description"`
}

// GenerateDescription returns a description for the named entity
func (c *DescriptionClient) GenerateDescription(ctx context.Context, name, entityKind string) (string, error) {
	var out descriptionResponse
	req := descriptionRequest{Name: name, EntityType: entityKind}
	if err := c.client.doJSON(ctx, http.MethodPost, "/ai/description", req, &out); err != nil {
		return "", fmt.Errorf("failed to generate description: %w", err)
	}
	return out.Description, nil
}
