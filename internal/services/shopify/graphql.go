package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// GraphQL runs a query and decodes its data into out. Top-level errors
// become an APIError; THROTTLED maps to 429 so callers retry it.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	var resp graphQLResponse
	if err := c.do(ctx, http.MethodPost, "/graphql.json", nil, graphQLRequest{Query: query, Variables: variables}, &resp); err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		status := http.StatusUnprocessableEntity
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
			switch e.Extensions.Code {
			case "THROTTLED":
				status = http.StatusTooManyRequests
			case "ACCESS_DENIED":
				status = http.StatusForbidden
			}
		}
		return &APIError{StatusCode: status, Method: http.MethodPost, Path: "/graphql.json", Body: strings.Join(messages, "; ")}
	}

	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}

const productCategoryMutation = `mutation productUpdate($product: ProductUpdateInput!) {
  productUpdate(product: $product) {
    product { id }
    userErrors { field message }
  }
}`

// SetProductCategory assigns a standard taxonomy category by GID.
func (c *Client) SetProductCategory(ctx context.Context, productID int64, categoryGID string) error {
	vars := map[string]interface{}{
		"product": map[string]interface{}{
			"id":       ProductGID(productID),
			"category": categoryGID,
		},
	}
	var data struct {
		ProductUpdate struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productUpdate"`
	}
	if err := c.GraphQL(ctx, productCategoryMutation, vars, &data); err != nil {
		return err
	}
	if errs := data.ProductUpdate.UserErrors; len(errs) > 0 {
		messages := make([]string, 0, len(errs))
		for _, e := range errs {
			messages = append(messages, e.Message)
		}
		return &APIError{StatusCode: http.StatusUnprocessableEntity, Method: http.MethodPost, Path: "/graphql.json", Body: strings.Join(messages, "; ")}
	}
	return nil
}

func ProductGID(id int64) string {
	return fmt.Sprintf("gid://shopify/Product/%d", id)
}

// TaxonomyGID accepts a bare category id or a full GID.
func TaxonomyGID(id string) string {
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/TaxonomyCategory/" + id
}
