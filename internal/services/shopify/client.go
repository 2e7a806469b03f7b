package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catalogsync/internal/logger"
)

const DefaultAPIVersion = "2025-04"

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *logger.Logger
}

type Option func(*Client)

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient accepts either a bare shop name or a full myshopify domain.
func NewClient(shopDomain, accessToken, apiVersion string, logger *logger.Logger, opts ...Option) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	c := &Client{
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", shopHost(shopDomain), apiVersion),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func shopHost(shop string) string {
	shop = strings.TrimPrefix(strings.TrimPrefix(shop, "https://"), "http://")
	shop = strings.TrimRight(shop, "/")
	if strings.Contains(shop, ".") {
		return shop
	}
	return shop + ".myshopify.com"
}

// do sends a JSON request and decodes a 2xx answer into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Add authentication header
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(respBody)}
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
			apiErr.Wait = time.Duration(s) * time.Second
		}
		c.logger.Debug("shopify %s %s -> %d", method, path, resp.StatusCode)
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetShopInfo fetches shop information
func (c *Client) GetShopInfo(ctx context.Context) (*Shop, error) {
	var shopResp struct {
		Shop Shop `json:"shop"`
	}
	if err := c.do(ctx, http.MethodGet, "/shop.json", nil, nil, &shopResp); err != nil {
		return nil, err
	}
	return &shopResp.Shop, nil
}

// GetProducts fetches products from Shopify
func (c *Client) GetProducts(ctx context.Context, limit int, pageInfo string) (*ProductsResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if pageInfo != "" {
		q.Set("page_info", pageInfo)
	}
	var productsResp ProductsResponse
	if err := c.do(ctx, http.MethodGet, "/products.json", q, nil, &productsResp); err != nil {
		return nil, err
	}
	return &productsResp, nil
}

// GetProduct fetches a single product by ID
func (c *Client) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var productResp struct {
		Product Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d.json", productID), nil, nil, &productResp); err != nil {
		return nil, err
	}
	return &productResp.Product, nil
}

// FindProductByHandle returns nil without error when no product uses handle.
func (c *Client) FindProductByHandle(ctx context.Context, handle string) (*Product, error) {
	q := url.Values{}
	q.Set("handle", handle)
	q.Set("fields", "id,handle,title,variants")
	var productsResp ProductsResponse
	if err := c.do(ctx, http.MethodGet, "/products.json", q, nil, &productsResp); err != nil {
		return nil, err
	}
	for i := range productsResp.Products {
		if productsResp.Products[i].Handle == handle {
			return &productsResp.Products[i], nil
		}
	}
	return nil, nil
}

// FindProductByTitle matches titles case-insensitively. Nil without error
// on a miss.
func (c *Client) FindProductByTitle(ctx context.Context, title string) (*Product, error) {
	q := url.Values{}
	q.Set("title", title)
	q.Set("fields", "id,handle,title,variants")
	var productsResp ProductsResponse
	if err := c.do(ctx, http.MethodGet, "/products.json", q, nil, &productsResp); err != nil {
		return nil, err
	}
	for i := range productsResp.Products {
		if strings.EqualFold(strings.TrimSpace(productsResp.Products[i].Title), strings.TrimSpace(title)) {
			return &productsResp.Products[i], nil
		}
	}
	return nil, nil
}

func (c *Client) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	payload := struct {
		Product *Product `json:"product"`
	}{Product: product}
	var productResp struct {
		Product Product `json:"product"`
	}
	if err := c.do(ctx, http.MethodPost, "/products.json", nil, payload, &productResp); err != nil {
		return nil, err
	}
	return &productResp.Product, nil
}

// UpdateProduct updates a product in Shopify
func (c *Client) UpdateProduct(ctx context.Context, product *Product) error {
	payload := struct {
		Product *Product `json:"product"`
	}{Product: product}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/products/%d.json", product.ID), nil, payload, nil)
}

func (c *Client) UpdateProductType(ctx context.Context, productID int64, productType string) error {
	return c.UpdateProduct(ctx, &Product{ID: productID, ProductType: productType})
}

func (c *Client) DeleteProduct(ctx context.Context, productID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d.json", productID), nil, nil, nil)
}

func (c *Client) GetVariant(ctx context.Context, variantID int64) (*Variant, error) {
	var variantResp struct {
		Variant Variant `json:"variant"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/variants/%d.json", variantID), nil, nil, &variantResp); err != nil {
		return nil, err
	}
	return &variantResp.Variant, nil
}

func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var locResp struct {
		Locations []Location `json:"locations"`
	}
	if err := c.do(ctx, http.MethodGet, "/locations.json", nil, nil, &locResp); err != nil {
		return nil, err
	}
	return locResp.Locations, nil
}

func (c *Client) ListInventoryLevels(ctx context.Context, locationID int64, limit int) ([]InventoryLevel, error) {
	q := url.Values{}
	q.Set("location_ids", strconv.FormatInt(locationID, 10))
	q.Set("limit", strconv.Itoa(limit))
	var levelsResp struct {
		InventoryLevels []InventoryLevel `json:"inventory_levels"`
	}
	if err := c.do(ctx, http.MethodGet, "/inventory_levels.json", q, nil, &levelsResp); err != nil {
		return nil, err
	}
	return levelsResp.InventoryLevels, nil
}

// SetInventoryLevel sets the absolute available quantity.
func (c *Client) SetInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, available int) error {
	payload := map[string]interface{}{
		"location_id":       locationID,
		"inventory_item_id": inventoryItemID,
		"available":         available,
	}
	return c.do(ctx, http.MethodPost, "/inventory_levels/set.json", nil, payload, nil)
}

// AdjustInventoryLevel applies a delta to the available quantity.
func (c *Client) AdjustInventoryLevel(ctx context.Context, inventoryItemID, locationID int64, delta int) error {
	payload := map[string]interface{}{
		"location_id":          locationID,
		"inventory_item_id":    inventoryItemID,
		"available_adjustment": delta,
	}
	return c.do(ctx, http.MethodPost, "/inventory_levels/adjust.json", nil, payload, nil)
}

func (c *Client) CreateMetafield(ctx context.Context, productID int64, m Metafield) error {
	payload := struct {
		Metafield Metafield `json:"metafield"`
	}{Metafield: m}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/products/%d/metafields.json", productID), nil, payload, nil)
}
