package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/synchub/backend/internal/domain/connector"
)

// entityModels maps the engine's entity types onto Odoo model names
var entityModels = map[connector.EntityType]string{
	connector.EntityContact: "res.partner",
	connector.EntityProduct: "product.product",
	connector.EntityOrder:   "sale.order",
	connector.EntityInvoice: "account.move",
}

// Adapter talks JSON-RPC 2.0 to an Odoo server. One instance serves all
// connections of type odoo; per-call state (base URL, credentials) arrives
// in the ConnectionInfo.
type Adapter struct {
	httpClient *http.Client
	requestID  int64
}

// NewAdapter creates an Odoo adapter with the given request timeout.
// The per-execution deadline still applies through the request context.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Adapter{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *Adapter) Type() connector.Type {
	return connector.TypeOdoo
}

// Probe checks reachability via common.version and authentication via
// common.authenticate.
func (a *Adapter) Probe(ctx context.Context, conn connector.ConnectionInfo) (*connector.ProbeResult, error) {
	start := time.Now()

	var version struct {
		ServerVersion string `json:"server_version"`
	}
	if err := a.call(ctx, conn, "common", "version", []any{}, &version); err != nil {
		return &connector.ProbeResult{
			Success:   false,
			Message:   err.Error(),
			LatencyMs: time.Since(start).Milliseconds(),
		}, fmt.Errorf("%w: %v", connector.ErrProbeFailed, err)
	}

	if _, err := a.authenticate(ctx, conn); err != nil {
		return &connector.ProbeResult{
			Success:   false,
			Version:   version.ServerVersion,
			Message:   err.Error(),
			LatencyMs: time.Since(start).Milliseconds(),
		}, fmt.Errorf("%w: %v", connector.ErrProbeFailed, err)
	}

	return &connector.ProbeResult{
		Success:   true,
		Version:   version.ServerVersion,
		Message:   "ok",
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Fetch reads one page via search_read, with search_count supplying the
// total on the first page. DeltaSince becomes a write_date domain term.
func (a *Adapter) Fetch(ctx context.Context, conn connector.ConnectionInfo, req connector.FetchRequest) (*connector.FetchPage, error) {
	model, ok := entityModels[req.Entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", connector.ErrEntityNotSupported, req.Entity)
	}

	uid, err := a.authenticate(ctx, conn)
	if err != nil {
		return nil, err
	}

	domain := buildDomain(req)

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	var total int
	if err := a.executeKw(ctx, conn, uid, model, "search_count", []any{domain}, nil, &total); err != nil {
		return nil, fmt.Errorf("%w: search_count on %s: %v", connector.ErrFetchFailed, model, err)
	}

	var rows []map[string]any
	kwargs := map[string]any{
		"offset": (page - 1) * pageSize,
		"limit":  pageSize,
		"order":  "write_date asc, id asc",
	}
	if err := a.executeKw(ctx, conn, uid, model, "search_read", []any{domain}, kwargs, &rows); err != nil {
		return nil, fmt.Errorf("%w: search_read on %s: %v", connector.ErrFetchFailed, model, err)
	}

	records := make([]connector.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToRecord(row))
	}

	return &connector.FetchPage{
		Records: records,
		Total:   total,
		HasMore: page*pageSize < total,
	}, nil
}

// Write creates the record when ExternalID is empty, otherwise updates it.
func (a *Adapter) Write(ctx context.Context, conn connector.ConnectionInfo, req connector.WriteRequest) (*connector.WriteResult, error) {
	model, ok := entityModels[req.Entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", connector.ErrEntityNotSupported, req.Entity)
	}

	uid, err := a.authenticate(ctx, conn)
	if err != nil {
		return nil, err
	}

	if req.ExternalID == "" {
		var newID int64
		if err := a.executeKw(ctx, conn, uid, model, "create", []any{req.Data}, nil, &newID); err != nil {
			return nil, fmt.Errorf("%w: create on %s: %v", connector.ErrWriteFailed, model, err)
		}
		return &connector.WriteResult{
			ExternalID: strconv.FormatInt(newID, 10),
			Created:    true,
		}, nil
	}

	id, err := strconv.ParseInt(req.ExternalID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: external id %q is not an odoo record id", connector.ErrWriteFailed, req.ExternalID)
	}
	var ok2 bool
	if err := a.executeKw(ctx, conn, uid, model, "write", []any{[]int64{id}, req.Data}, nil, &ok2); err != nil {
		return nil, fmt.Errorf("%w: write on %s: %v", connector.ErrWriteFailed, model, err)
	}
	return &connector.WriteResult{ExternalID: req.ExternalID, Created: false}, nil
}

// buildDomain translates the fetch filter and delta bound into an Odoo
// search domain (a list of [field, operator, value] terms, AND-joined).
func buildDomain(req connector.FetchRequest) []any {
	domain := make([]any, 0, len(req.Filter)+1)
	if req.DeltaSince != nil {
		domain = append(domain, []any{"write_date", ">", req.DeltaSince.UTC().Format(odooTimeLayout)})
	}
	for field, value := range req.Filter {
		domain = append(domain, []any{field, "=", value})
	}
	return domain
}

// rowToRecord lifts an Odoo row into the engine's record shape. The id
// and write_date columns are promoted out of the data map.
func rowToRecord(row map[string]any) connector.Record {
	rec := connector.Record{Data: row}

	switch id := row["id"].(type) {
	case float64:
		rec.ExternalID = strconv.FormatInt(int64(id), 10)
	case json.Number:
		rec.ExternalID = id.String()
	case string:
		rec.ExternalID = id
	}

	if wd, ok := row["write_date"].(string); ok {
		if t, ok := parseOdooTime(wd); ok {
			rec.ModifiedAt = t
		}
	}
	return rec
}

var _ connector.Connector = (*Adapter)(nil)
