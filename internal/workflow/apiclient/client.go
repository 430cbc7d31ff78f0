// Package apiclient binds the workflow collaborators to the filing REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"filingdesk/internal/app/dto"
	"filingdesk/internal/app/status"
	"filingdesk/internal/workflow"
)

const defaultTimeout = 30 * time.Second

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     map[string]string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.Code == "order_in_progress"
}

// Client implements workflow.Store, workflow.Storage, workflow.Orders and
// workflow.IdentitySource.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ workflow.Store          = (*Client)(nil)
	_ workflow.Storage        = (*Client)(nil)
	_ workflow.Orders         = (*Client)(nil)
	_ workflow.IdentitySource = (*Client)(nil)
)

// Token returns the bearer token in use.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, headers map[string]string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &StatusError{StatusCode: resp.StatusCode}
		var apiErr dto.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && (apiErr.Code != "" || apiErr.Message != "") {
			serr.Code = apiErr.Code
			serr.Message = apiErr.Message
			serr.Fields = apiErr.Fields
		} else {
			serr.Message = strings.TrimSpace(string(raw))
			if serr.Message == "" {
				serr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return serr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in interface{}, headers map[string]string, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, headers, out)
}

// ============ Authentication ============

func (c *Client) Login(ctx context.Context, login, password string) (dto.LoginResponse, error) {
	var resp dto.LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", dto.LoginRequest{Login: login, Password: password}, nil, &resp)
	if err == nil {
		c.token = resp.Token
	}
	return resp, err
}

func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (dto.LoginResponse, error) {
	var resp dto.LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", req, nil, &resp)
	if err == nil {
		c.token = resp.Token
	}
	return resp, err
}

func (c *Client) Identity(ctx context.Context) (workflow.Identity, error) {
	var user dto.UserResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/profile", nil, nil, &user); err != nil {
		return workflow.Identity{}, err
	}
	return workflow.Identity{UserID: user.ID, Email: user.Email, Phone: user.Phone}, nil
}

// ============ Plans ============

func (c *Client) Plans(ctx context.Context) ([]dto.PlanResponse, error) {
	var resp dto.PlanListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/plans", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Plans, nil
}

// ============ Submissions ============

func (c *Client) Create(ctx context.Context, idempotencyKey, planKey string, fields map[string]string) (*workflow.Record, error) {
	var resp dto.SubmissionResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/submissions",
		dto.CreateSubmissionRequest{PlanKey: planKey, Fields: fields},
		map[string]string{"Idempotency-Key": idempotencyKey}, &resp)
	if err != nil {
		return nil, err
	}
	return toRecord(resp)
}

func (c *Client) Update(ctx context.Context, id string, fields map[string]string) (*workflow.Record, error) {
	var resp dto.SubmissionResponse
	err := c.doJSON(ctx, http.MethodPut, "/api/submissions/"+url.PathEscape(id),
		dto.UpdateSubmissionRequest{Fields: fields}, nil, &resp)
	if err != nil {
		return nil, err
	}
	return toRecord(resp)
}

func (c *Client) Get(ctx context.Context, id string) (*workflow.Record, error) {
	var resp dto.SubmissionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/submissions/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return toRecord(resp)
}

// List returns the caller's submissions, optionally filtered by status.
func (c *Client) List(ctx context.Context, st status.Status) ([]*workflow.Record, error) {
	path := "/api/submissions"
	if st != "" {
		path += "?status=" + url.QueryEscape(st.String())
	}
	var resp dto.SubmissionListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]*workflow.Record, 0, len(resp.Submissions))
	for _, s := range resp.Submissions {
		rec, err := toRecord(s)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) LinkDocument(ctx context.Context, id, key string, file workflow.StoredFile) error {
	path := "/api/submissions/" + url.PathEscape(id) + "/documents/" + url.PathEscape(key)
	return c.doJSON(ctx, http.MethodPut, path, dto.LinkDocumentRequest{FileURL: file.FileURL, FileID: file.FileID}, nil, nil)
}

func (c *Client) RecordPayment(ctx context.Context, id string, order workflow.Order, result workflow.CheckoutResult) (*workflow.Record, error) {
	var resp dto.SubmissionResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/submissions/"+url.PathEscape(id)+"/payment/confirm",
		dto.ConfirmPaymentRequest{OrderID: order.OrderID, PaymentID: result.PaymentID, Signature: result.Signature}, nil, &resp)
	if err != nil {
		return nil, err
	}
	return toRecord(resp)
}

func (c *Client) Finalize(ctx context.Context, id, paymentID string, amount int64) (*workflow.Record, error) {
	var resp dto.SubmissionResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/submissions/"+url.PathEscape(id)+"/finalize",
		dto.FinalizeRequest{PaymentID: paymentID, Amount: amount}, nil, &resp)
	if err != nil {
		return nil, err
	}
	return toRecord(resp)
}

// ============ Storage and orders ============

func (c *Client) Upload(ctx context.Context, data []byte, originalName, category string) (workflow.StoredFile, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("category", category); err != nil {
		return workflow.StoredFile{}, err
	}
	fw, err := mw.CreateFormFile("file", originalName)
	if err != nil {
		return workflow.StoredFile{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return workflow.StoredFile{}, err
	}
	if err := mw.Close(); err != nil {
		return workflow.StoredFile{}, err
	}

	var resp dto.FileResponse
	if err := c.do(ctx, http.MethodPost, "/api/files", &body, mw.FormDataContentType(), nil, &resp); err != nil {
		return workflow.StoredFile{}, err
	}
	return workflow.StoredFile{FileURL: resp.FileURL, FileID: resp.FileID, OriginalName: resp.OriginalName}, nil
}

func (c *Client) CreateOrder(ctx context.Context, submissionID string) (workflow.Order, error) {
	var resp dto.OrderResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/submissions/"+url.PathEscape(submissionID)+"/payment/order", nil, nil, &resp)
	if err != nil {
		return workflow.Order{}, err
	}
	return workflow.Order{OrderID: resp.OrderID, Amount: resp.Amount, Currency: resp.Currency, KeyID: resp.KeyID}, nil
}

func toRecord(resp dto.SubmissionResponse) (*workflow.Record, error) {
	st, ok := status.Parse(resp.Status)
	if !ok {
		return nil, fmt.Errorf("api: unknown status %q", resp.Status)
	}
	rec := &workflow.Record{
		ID:        resp.ID,
		Status:    st,
		PlanKey:   resp.PlanKey,
		Form:      resp.Form,
		Documents: make(map[string]workflow.DocumentRef, len(resp.Documents)),
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
	}
	if rec.Form == nil {
		rec.Form = map[string]string{}
	}
	for key, doc := range resp.Documents {
		rec.Documents[key] = workflow.DocumentRef{FileURL: doc.FileURL, FileID: doc.FileID, UploadedAt: doc.UploadedAt}
	}
	if resp.Payment != nil {
		rec.Payment = &workflow.PaymentRef{
			OrderID:   resp.Payment.OrderID,
			PaymentID: resp.Payment.PaymentID,
			Amount:    resp.Payment.Amount,
		}
	}
	return rec, nil
}
