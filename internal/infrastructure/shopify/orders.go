package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/migrator/internal/domain/migration"
)

// Interface compliance
var (
	_ migration.OrderSource   = (*Client)(nil)
	_ migration.ProductSource = (*Client)(nil)
	_ migration.CouponSource  = (*Client)(nil)
)

// defaultOrderStatus lists open, closed and cancelled orders. Shopify only
// returns open orders when status is omitted.
const defaultOrderStatus = "any"

type ordersResponse struct {
	Orders []migration.RemoteOrder `json:"orders"`
}

type transactionsResponse struct {
	Transactions []migration.RemoteTransaction `json:"transactions"`
}

// ListOrders fetches one page of orders
func (c *Client) ListOrders(ctx context.Context, q migration.OrderQuery, req migration.PageRequest) (migration.Page[migration.RemoteOrder], error) {
	var page migration.Page[migration.RemoteOrder]

	u, err := c.pageURL("orders", orderFilters(q), req)
	if err != nil {
		return page, err
	}
	body, next, err := c.doREST(ctx, u)
	if err != nil {
		return page, err
	}

	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return page, fmt.Errorf("%w: failed to parse orders: %v", migration.ErrRemoteInvalidResponse, err)
	}
	page.Items = resp.Orders
	page.NextCursor = next
	return page, nil
}

// ListTransactions fetches every payment transaction of an order
func (c *Client) ListTransactions(ctx context.Context, orderID int64) ([]migration.RemoteTransaction, error) {
	body, _, err := c.doREST(ctx, c.config.RESTURL(fmt.Sprintf("orders/%d/transactions", orderID)))
	if err != nil {
		return nil, err
	}

	var resp transactionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse transactions: %v", migration.ErrRemoteInvalidResponse, err)
	}
	return resp.Transactions, nil
}

func orderFilters(q migration.OrderQuery) url.Values {
	params := url.Values{}
	status := q.Status
	if status == "" {
		status = defaultOrderStatus
	}
	params.Set("status", status)
	setTimeRange(params, q.Before, q.After)
	if len(q.IDs) > 0 {
		params.Set("ids", joinIDs(q.IDs))
	}
	params.Set("order", OrderSorting(q.Sorting))
	return params
}

func setTimeRange(params url.Values, before, after *time.Time) {
	if before != nil {
		params.Set("created_at_max", before.UTC().Format(time.RFC3339))
	}
	if after != nil {
		params.Set("created_at_min", after.UTC().Format(time.RFC3339))
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
