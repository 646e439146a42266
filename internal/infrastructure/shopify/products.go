package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/erp/migrator/internal/domain/migration"
)

type productsResponse struct {
	Products []migration.RemoteProduct `json:"products"`
}

// ListProducts fetches one page of products
func (c *Client) ListProducts(ctx context.Context, q migration.ProductQuery, req migration.PageRequest) (migration.Page[migration.RemoteProduct], error) {
	var page migration.Page[migration.RemoteProduct]

	u, err := c.pageURL("products", productFilters(q), req)
	if err != nil {
		return page, err
	}
	body, next, err := c.doREST(ctx, u)
	if err != nil {
		return page, err
	}

	var resp productsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return page, fmt.Errorf("%w: failed to parse products: %v", migration.ErrRemoteInvalidResponse, err)
	}
	page.Items = resp.Products
	page.NextCursor = next
	return page, nil
}

func productFilters(q migration.ProductQuery) url.Values {
	params := url.Values{}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	setTimeRange(params, q.Before, q.After)
	if len(q.IDs) > 0 {
		params.Set("ids", joinIDs(q.IDs))
	}
	if q.Handle != "" {
		params.Set("handle", q.Handle)
	}
	return params
}

// ---------------------------------------------------------------------------
// GraphQL details
// ---------------------------------------------------------------------------

const productDetailsQuery = `query productDetails($id: ID!) {
  product(id: $id) {
    onlineStoreUrl
    collections(first: 50) {
      nodes { id title handle }
    }
    metafields(first: 50) {
      nodes { namespace key value }
    }
  }
}`

type productDetailsData struct {
	Product *struct {
		OnlineStoreURL *string `json:"onlineStoreUrl"`
		Collections    struct {
			Nodes []migration.Collection `json:"nodes"`
		} `json:"collections"`
		Metafields struct {
			Nodes []migration.Metafield `json:"nodes"`
		} `json:"metafields"`
	} `json:"product"`
}

// ProductDetails loads the online store URL, collections and metafields of a
// product. Calls are spaced by the configured detail delay.
func (c *Client) ProductDetails(ctx context.Context, productID int64) (*migration.ProductDetails, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var data productDetailsData
	vars := map[string]any{"id": ProductGID(productID)}
	if err := c.doGraphQL(ctx, "productDetails", productDetailsQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Product == nil {
		return nil, fmt.Errorf("%w: product %d", migration.ErrRemoteNotFound, productID)
	}

	return &migration.ProductDetails{
		OnlineStoreURL: data.Product.OnlineStoreURL,
		Collections:    data.Product.Collections.Nodes,
		Metafields:     data.Product.Metafields.Nodes,
	}, nil
}
