package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"

	"FinanceCollector/internal/domain"
)

type corpCodeDocument struct {
	Entries []struct {
		CorpCode  string `xml:"corp_code"`
		CorpName  string `xml:"corp_name"`
		StockCode string `xml:"stock_code"`
	} `xml:"list"`
}

// Prepare downloads the corporation code directory. A rejected key or a
// broken archive is returned here instead of surfacing once per security.
func (c *Client) Prepare(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureCorpCodes(ctx)
}

// corpCode maps an exchange code to the OpenDART corporation code. The
// directory is downloaded once per client; a failed download is retried on the next call.
func (c *Client) corpCode(ctx context.Context, securityID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureCorpCodes(ctx); err != nil {
		return "", err
	}

	code, ok := c.corpCodes[securityID]
	if !ok {
		return "", fmt.Errorf("no corp code for %s: %w", securityID, domain.ErrFilingNotFound)
	}
	return code, nil
}

func (c *Client) ensureCorpCodes(ctx context.Context) error {
	if c.corpCodes != nil {
		return nil
	}
	codes, err := c.loadCorpCodes(ctx)
	if err != nil {
		return err
	}
	c.corpCodes = codes
	c.logger.Info("corp code directory loaded", "listed", len(codes))
	return nil
}

func (c *Client) loadCorpCodes(ctx context.Context) (map[string]string, error) {
	query := url.Values{}
	query.Set("crtfc_key", c.apiKey)

	resp, err := c.get(ctx, "/corpCode.xml", query)
	if err != nil {
		return nil, fmt.Errorf("download corp codes: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read corp codes: %w", err)
	}
	if !bytes.HasPrefix(raw, []byte("PK")) {
		return nil, fmt.Errorf("download corp codes: %w", statusError(raw))
	}

	return parseCorpCodes(raw)
}

// statusError reads the JSON or XML status body OpenDART sends instead of an archive.
func statusError(raw []byte) error {
	var status struct {
		Status  string `json:"status" xml:"status"`
		Message string `json:"message" xml:"message"`
	}
	if json.Unmarshal(raw, &status) != nil || status.Status == "" {
		_ = xml.Unmarshal(raw, &status)
	}
	if status.Status == "" {
		return fmt.Errorf("unexpected corp code response: %.120s", raw)
	}
	return fmt.Errorf("opendart status %s: %s", status.Status, status.Message)
}

func parseCorpCodes(archive []byte) (map[string]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open corp code archive: %w", err)
	}

	for _, f := range zr.File {
		if !strings.EqualFold(f.Name, "CORPCODE.xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		var doc corpCodeDocument
		err = xml.NewDecoder(rc).Decode(&doc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Name, err)
		}

		codes := make(map[string]string, len(doc.Entries))
		for _, e := range doc.Entries {
			stock := strings.TrimSpace(e.StockCode)
			if stock == "" {
				continue
			}
			codes[stock] = strings.TrimSpace(e.CorpCode)
		}
		return codes, nil
	}

	return nil, fmt.Errorf("corp code archive has no CORPCODE.xml")
}
