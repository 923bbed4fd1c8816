// Package extraction sends receipt images to the external extraction
// service and validates what comes back.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"derroche/internal/parsing"
)

const (
	formField     = "file"
	formFilename  = "boleta.jpg"
	maxResponseSz = 1 << 20
)

// Fields are the values read from a receipt. Nil means the service did not
// report the field.
type Fields struct {
	Date        *string
	Amount      *decimal.Decimal
	Category    *string
	Description *string
	ExpenseType *string
	Bank        *string
}

// Result is a successful extraction.
type Result struct {
	Fields Fields
	Raw    []byte
}

// Client talks to the extraction service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new extraction client. The http client's Timeout
// bounds each call.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// Extract uploads image and returns the fields the service read from it.
func (c *Client) Extract(ctx context.Context, image []byte) (*Result, error) {
	if len(image) == 0 {
		return nil, newError(KindDecode, "empty image", nil)
	}
	if ct := http.DetectContentType(image); !strings.HasPrefix(ct, "image/") {
		return nil, newError(KindDecode, "not an image: "+ct, nil)
	}

	body, contentType, err := encodeForm(image)
	if err != nil {
		return nil, newError(KindDecode, "encoding upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, newError(KindUnreachable, "creating request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, newError(KindTimeout, "waiting for extraction service", err)
		}
		return nil, newError(KindUnreachable, "calling extraction service", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSz))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, newError(KindTimeout, "reading extraction response", err)
		}
		return nil, newError(KindUnreachable, "reading extraction response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindInvalidResponse, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	fields, err := decodeResponse(raw)
	if err != nil {
		return nil, newError(KindInvalidResponse, "decoding extraction response", err)
	}
	return &Result{Fields: *fields, Raw: raw}, nil
}

func encodeForm(image []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, formField, formFilename))
	header.Set("Content-Type", "image/jpeg")

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

type responseBody struct {
	Fecha       *string         `json:"fecha"`
	Monto       json.RawMessage `json:"monto"`
	Categoria   *string         `json:"categoria"`
	Descripcion *string         `json:"descripcion"`
	TipoGasto   *string         `json:"tipo_gasto"`
	Banco       *string         `json:"banco"`
}

func decodeResponse(raw []byte) (*Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, err
	}

	var body responseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	amount, err := decodeAmount(body.Monto)
	if err != nil {
		return nil, err
	}

	return &Fields{
		Date:        nonBlank(body.Fecha),
		Amount:      amount,
		Category:    nonBlank(body.Categoria),
		Description: nonBlank(body.Descripcion),
		ExpenseType: nonBlank(body.TipoGasto),
		Bank:        nonBlank(body.Banco),
	}, nil
}

// decodeAmount accepts a JSON number or a numeric string.
func decodeAmount(raw json.RawMessage) (*decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		d, err := parsing.ParseAmount(s)
		if err != nil {
			return nil, fmt.Errorf("monto %q: %w", s, err)
		}
		return &d, nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("monto %s: %w", raw, err)
	}
	return &d, nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
