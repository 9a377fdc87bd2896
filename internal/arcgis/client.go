// Package arcgis implements the remote content-store collaborator over the
// portal REST API.
package arcgis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
)

// appendBatchSize bounds one addFeatures call.
const appendBatchSize = 1000

// Client talks to an ArcGIS-style portal. It owns transport timeouts; the
// pipeline treats any returned error as terminal for the current strategy.
type Client struct {
	httpClient *http.Client
	portalURL  string
	username   string
	token      string // service-level fallback; per-request tokens come from context
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

// WithLogger attaches a logger for request-level debug output.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient creates a portal client. portalURL is the root portal address,
// e.g. https://www.arcgis.com.
func NewClient(portalURL, username, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		portalURL:  strings.TrimRight(portalURL, "/"),
		username:   username,
		token:      token,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// === ContentClient ===

// Publish uploads the native dataset as a GeoJSON item and publishes it as
// a hosted feature layer.
func (c *Client) Publish(ctx context.Context, req domain.PublishRequest) (*domain.ServiceInfo, error) {
	body, err := geoJSONCollection(req.Dataset)
	if err != nil {
		return nil, err
	}
	itemID, err := c.addItem(ctx, req.Title, req.Tags, "GeoJson", body)
	if err != nil {
		return nil, err
	}
	return c.publishItem(ctx, itemID, req.Title, "geojson", "", false)
}

// PublishTable uploads the WKT-augmented flat table as a CSV item and
// publishes it.
func (c *Client) PublishTable(ctx context.Context, req domain.PublishRequest) (*domain.ServiceInfo, error) {
	body, err := csvTable(req.Dataset)
	if err != nil {
		return nil, err
	}
	itemID, err := c.addItem(ctx, req.Title, req.Tags, "CSV", body)
	if err != nil {
		return nil, err
	}
	return c.publishItem(ctx, itemID, req.Title, "csv", req.Dataset.Family, false)
}

// Overwrite replaces the whole service's data and schema by updating the
// source item and republishing with overwrite.
func (c *Client) Overwrite(ctx context.Context, target domain.TargetDescriptor, ds *domain.FeatureDataset) (*domain.ServiceInfo, error) {
	if target.ItemID == "" {
		return nil, domain.ErrTransport("overwrite requires the service item ID")
	}
	body, err := geoJSONCollection(ds)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("text", string(body))
	var resp struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/sharing/rest/content/users/%s/items/%s/update", c.portalURL, c.username, target.ItemID)
	if err := c.post(ctx, endpoint, form, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, domain.ErrTransport("item update was not accepted")
	}
	return c.publishItem(ctx, target.ItemID, ds.Name, "geojson", "", true)
}

// Truncate removes every record from one sublayer. Sibling sublayers in the
// same service are untouched.
func (c *Client) Truncate(ctx context.Context, target domain.TargetDescriptor, sublayer int) error {
	form := url.Values{}
	form.Set("where", "1=1")
	var resp struct {
		Success       bool `json:"success"`
		DeleteResults []struct {
			Success bool `json:"success"`
		} `json:"deleteResults"`
	}
	endpoint := fmt.Sprintf("%s/%d/deleteFeatures", strings.TrimRight(target.ServiceURL, "/"), sublayer)
	if err := c.post(ctx, endpoint, form, &resp); err != nil {
		return err
	}
	// The portal can report a refused delete as HTTP 200 without the error
	// envelope. An unacknowledged truncate must not proceed to the append.
	if resp.Success {
		return nil
	}
	if len(resp.DeleteResults) == 0 {
		return domain.ErrTransport("deleteFeatures on sublayer %d was not accepted", sublayer)
	}
	for _, r := range resp.DeleteResults {
		if !r.Success {
			return domain.ErrTransport("deleteFeatures on sublayer %d rejected a delete", sublayer)
		}
	}
	return nil
}

// Append inserts the dataset's records into one sublayer in batches.
func (c *Client) Append(ctx context.Context, target domain.TargetDescriptor, sublayer int, ds *domain.FeatureDataset) error {
	endpoint := fmt.Sprintf("%s/%d/addFeatures", strings.TrimRight(target.ServiceURL, "/"), sublayer)
	for from := 0; from < len(ds.Records); from += appendBatchSize {
		to := from + appendBatchSize
		if to > len(ds.Records) {
			to = len(ds.Records)
		}
		batch, err := esriFeatures(ds, from, to)
		if err != nil {
			return err
		}
		form := url.Values{}
		form.Set("features", string(batch))
		form.Set("rollbackOnFailure", "true")
		var resp struct {
			AddResults []struct {
				Success bool   `json:"success"`
				Error   *struct {
					Description string `json:"description"`
				} `json:"error"`
			} `json:"addResults"`
		}
		if err := c.post(ctx, endpoint, form, &resp); err != nil {
			return err
		}
		for _, r := range resp.AddResults {
			if !r.Success {
				detail := "feature rejected"
				if r.Error != nil {
					detail = r.Error.Description
				}
				return domain.ErrTransport("addFeatures: %s", detail)
			}
		}
		c.logger.Debug("appended batch", "from", from, "to", to, "sublayer", sublayer)
	}
	return nil
}

// Schema fetches the field names and geometry type of the target sublayer
// (layer 0 for whole-service targets).
func (c *Client) Schema(ctx context.Context, target domain.TargetDescriptor) (*domain.LayerSchema, error) {
	endpoint := fmt.Sprintf("%s/%d", strings.TrimRight(target.ServiceURL, "/"), target.SublayerIndex())
	var resp struct {
		GeometryType string `json:"geometryType"`
		Fields       []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"fields"`
	}
	if err := c.get(ctx, endpoint, url.Values{}, &resp); err != nil {
		return nil, err
	}
	schema := &domain.LayerSchema{Geometry: familyFromEsri(resp.GeometryType)}
	for _, f := range resp.Fields {
		if f.Type == "esriFieldTypeGeometry" {
			continue
		}
		schema.Fields = append(schema.Fields, f.Name)
	}
	return schema, nil
}

// Share sets the item's visibility. Private needs no call — it is the
// portal default.
func (c *Client) Share(ctx context.Context, itemID string, level domain.SharingLevel) error {
	form := url.Values{}
	switch level {
	case domain.SharingPublic:
		form.Set("everyone", "true")
	case domain.SharingOrganization:
		form.Set("org", "true")
	default:
		return nil
	}
	endpoint := fmt.Sprintf("%s/sharing/rest/content/items/%s/share", c.portalURL, itemID)
	var resp struct {
		ItemID string `json:"itemId"`
	}
	return c.post(ctx, endpoint, form, &resp)
}

// Backup exports the service item to a new portal item so the pre-update
// state can be restored by hand. Returns the backup item's ID.
func (c *Client) Backup(ctx context.Context, itemID, title string) (string, error) {
	form := url.Values{}
	form.Set("itemId", itemID)
	form.Set("title", title)
	form.Set("exportFormat", "Shapefile")
	var resp struct {
		ExportItemID string `json:"exportItemId"`
	}
	endpoint := fmt.Sprintf("%s/sharing/rest/content/users/%s/export", c.portalURL, c.username)
	if err := c.post(ctx, endpoint, form, &resp); err != nil {
		return "", err
	}
	if resp.ExportItemID == "" {
		return "", domain.ErrTransport("export produced no backup item")
	}
	return resp.ExportItemID, nil
}

// === portal item helpers ===

func (c *Client) addItem(ctx context.Context, title string, tags []string, itemType string, text []byte) (string, error) {
	form := url.Values{}
	form.Set("title", title)
	form.Set("type", itemType)
	form.Set("text", string(text))
	if len(tags) > 0 {
		form.Set("tags", strings.Join(tags, ","))
	}
	var resp struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/sharing/rest/content/users/%s/addItem", c.portalURL, c.username)
	if err := c.post(ctx, endpoint, form, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.ID == "" {
		return "", domain.ErrTransport("addItem was not accepted")
	}
	return resp.ID, nil
}

func (c *Client) publishItem(ctx context.Context, itemID, name, filetype string, family domain.GeometryFamily, overwrite bool) (*domain.ServiceInfo, error) {
	params := map[string]interface{}{"name": sanitizeServiceName(name)}
	if filetype == "csv" {
		// CSV sources carry no geometry metadata; the portal needs the
		// target geometry type and the WKT source column spelled out.
		params["geometryType"] = esriGeometryType(family)
		params["locationType"] = "wkt"
		params["wktField"] = domain.WKTField
	}
	rawParams, _ := json.Marshal(params)

	form := url.Values{}
	form.Set("itemID", itemID)
	form.Set("filetype", filetype)
	form.Set("publishParameters", string(rawParams))
	if overwrite {
		form.Set("overwrite", "true")
	}

	var resp struct {
		Services []struct {
			ServiceItemID string    `json:"serviceItemId"`
			ServiceURL    string    `json:"serviceurl"`
			Error         *apiError `json:"error"`
		} `json:"services"`
	}
	endpoint := fmt.Sprintf("%s/sharing/rest/content/users/%s/items/%s/publish", c.portalURL, c.username, itemID)
	if err := c.post(ctx, endpoint, form, &resp); err != nil {
		return nil, err
	}
	if len(resp.Services) == 0 {
		return nil, domain.ErrTransport("publish returned no services")
	}
	svc := resp.Services[0]
	if svc.Error != nil {
		return nil, classifyPortalError(svc.Error)
	}
	return &domain.ServiceInfo{ItemID: svc.ServiceItemID, ServiceURL: svc.ServiceURL, LayerID: 0}, nil
}

// LayerSummary describes one feature layer owned by the user. Used by the
// CLI listing, not part of the pipeline port.
type LayerSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Modified int64  `json:"modified"`
}

// ListUserLayers searches the portal for feature layers owned by the
// configured user.
func (c *Client) ListUserLayers(ctx context.Context, max int) ([]LayerSummary, error) {
	if max <= 0 {
		max = 100
	}
	q := url.Values{}
	q.Set("q", fmt.Sprintf(`owner:%s AND type:"Feature Service"`, c.username))
	q.Set("num", fmt.Sprintf("%d", max))
	var resp struct {
		Results []LayerSummary `json:"results"`
	}
	if err := c.get(ctx, c.portalURL+"/sharing/rest/search", q, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// === transport ===

type apiError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	form.Set("f", "json")
	form.Set("token", c.requestToken(ctx))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out interface{}) error {
	q.Set("f", "json")
	q.Set("token", c.requestToken(ctx))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("portal request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read portal response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyHTTPStatus(resp.StatusCode, string(body))
	}

	// The portal reports most failures as 200 with an error envelope.
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return classifyPortalError(envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return domain.ErrTransport("decode portal response: %v", err)
		}
	}
	return nil
}

// requestToken prefers the per-request credential from the context over the
// service-level fallback.
func (c *Client) requestToken(ctx context.Context) string {
	if p, ok := domain.PrincipalFromContext(ctx); ok && p.PortalToken != "" {
		return p.PortalToken
	}
	return c.token
}

// classifyPortalError maps the portal error envelope into the pipeline's
// failure classes. Token and permission problems are terminal; payload
// rejections are recoverable transport errors that let the strategy machine
// advance.
func classifyPortalError(e *apiError) error {
	msg := e.Message
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	switch {
	case e.Code == 498 || e.Code == 499 || e.Code == 401 || e.Code == 403:
		return domain.ErrAuthorization("portal rejected the request (%d): %s", e.Code, msg)
	case strings.Contains(strings.ToLower(msg), "quota"),
		strings.Contains(strings.ToLower(msg), "permission"),
		strings.Contains(strings.ToLower(msg), "not licensed"):
		return domain.ErrAuthorization("portal denied the operation (%d): %s", e.Code, msg)
	case e.Code >= 400 && e.Code < 500:
		return domain.ErrTransport("portal rejected the payload (%d): %s", e.Code, msg)
	default:
		return fmt.Errorf("portal error (%d): %s", e.Code, msg)
	}
}

func classifyHTTPStatus(status int, body string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthorization("portal returned HTTP %d", status)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return domain.ErrTransport("portal returned HTTP %d: %s", status, truncate(body, 200))
	default:
		return fmt.Errorf("portal returned HTTP %d: %s", status, truncate(body, 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// sanitizeServiceName strips characters the portal rejects in service names.
func sanitizeServiceName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '-':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "layer"
	}
	return b.String()
}
