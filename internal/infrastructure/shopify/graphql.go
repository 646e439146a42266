package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/telemetry"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// doGraphQL posts a query and decodes its data into out. A structured errors
// body is reported as ErrRemoteQueryFailed, which the retry policy retries.
func (c *Client) doGraphQL(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	ctx, span := telemetry.StartSpan(ctx, "shopify.graphql",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("graphql.operation", operation),
	)
	defer span.End()

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("shopify: failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GraphQLURL(), bytes.NewReader(payload))
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set(accessTokenHeader, c.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, _, err := c.do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	var resp graphQLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		err = fmt.Errorf("%w: failed to parse %s response: %v", migration.ErrRemoteInvalidResponse, operation, err)
		telemetry.RecordError(span, err)
		return err
	}
	if len(resp.Errors) > 0 {
		err := fmt.Errorf("%w: %s: %s", migration.ErrRemoteQueryFailed, operation, joinErrors(resp.Errors))
		telemetry.RecordError(span, err)
		return err
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		err = fmt.Errorf("%w: failed to decode %s data: %v", migration.ErrRemoteInvalidResponse, operation, err)
		telemetry.RecordError(span, err)
		return err
	}

	telemetry.SetOK(span)
	return nil
}

func joinErrors(errs []graphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Extensions.Code != "" {
			msgs = append(msgs, fmt.Sprintf("%s (%s)", e.Message, e.Extensions.Code))
			continue
		}
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// ---------------------------------------------------------------------------
// Global IDs
// ---------------------------------------------------------------------------

// ProductGID returns the GraphQL global id of a product
func ProductGID(id int64) string {
	return fmt.Sprintf("gid://shopify/Product/%d", id)
}

// LegacyID returns the numeric part of a GraphQL global id,
// e.g. "gid://shopify/DiscountCodeNode/42" → "42".
func LegacyID(gid string) string {
	if i := strings.LastIndexByte(gid, '/'); i >= 0 {
		gid = gid[i+1:]
	}
	if i := strings.IndexByte(gid, '?'); i >= 0 {
		gid = gid[:i]
	}
	return gid
}
