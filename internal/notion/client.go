// Package notion is a minimal Notion API client covering the needs of the
// digest and report pipelines: page creation, block appends, database
// queries and schema introspection.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tsumugi-bot/tsumugi/internal/digest"
	"github.com/tsumugi-bot/tsumugi/internal/report"
)

const (
	defaultAPIBase = "https://api.notion.com/v1"
	apiVersion     = "2022-06-28"
)

// kindLabels maps report item kinds onto the select options of the log
// database.
var kindLabels = map[report.Kind]string{
	report.KindBracketMissing: "【】漏れ",
	report.KindTagError:       "タグ誤認識",
	report.KindAllergenLeak:   "アレルゲン漏れ",
	report.KindStatusChange:   "ステータス変更",
	report.KindQuestion:       "質問・相談",
	report.KindInfo:           "情報共有",
}

// Client talks to the Notion API. It implements digest.DocumentStore
// against a configured digest database and report.LogStore against
// per-write target databases.
type Client struct {
	token      string
	apiBase    string
	digestDB   string
	httpClient *http.Client

	mu      sync.Mutex
	schemas map[string]*Schema
}

// NewClient creates a client. digestDB is the database receiving digest
// pages; log targets are passed per call.
func NewClient(token, apiBase, digestDB string) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Client{
		token:      token,
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		digestDB:   digestDB,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		schemas:    map[string]*Schema{},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notion API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

// Schema returns the cached schema adapter for a database, fetching it on
// first use.
func (c *Client) Schema(ctx context.Context, databaseID string) (*Schema, error) {
	c.mu.Lock()
	if schema, ok := c.schemas[databaseID]; ok {
		c.mu.Unlock()
		return schema, nil
	}
	c.mu.Unlock()

	var described struct {
		Properties map[string]Property `json:"properties"`
	}
	if err := c.do(ctx, http.MethodGet, "/databases/"+databaseID, nil, &described); err != nil {
		return nil, fmt.Errorf("describe database %s: %w", databaseID, err)
	}
	schema := BuildSchema(described.Properties)

	c.mu.Lock()
	c.schemas[databaseID] = schema
	c.mu.Unlock()
	return schema, nil
}

// CheckAccess verifies the database is reachable with the current token.
// Used as a backfill preflight so routing misconfiguration fails fast.
func (c *Client) CheckAccess(ctx context.Context, databaseID string) error {
	_, err := c.Schema(ctx, databaseID)
	return err
}

// CreateDocument creates a digest page in the configured digest database.
func (c *Client) CreateDocument(ctx context.Context, title, markdown string) (digest.ArtifactRef, error) {
	schema, err := c.Schema(ctx, c.digestDB)
	if err != nil {
		return digest.ArtifactRef{}, err
	}
	titleProp, ok := schema.Resolve(RoleTitle)
	if !ok {
		return digest.ArtifactRef{}, fmt.Errorf("digest database %s has no title property", c.digestDB)
	}

	var created struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	err = c.do(ctx, http.MethodPost, "/pages", map[string]any{
		"parent": map[string]any{"database_id": c.digestDB},
		"properties": map[string]any{
			titleProp: map[string]any{"title": richText(title)},
		},
		"children": MarkdownToBlocks(markdown),
	}, &created)
	if err != nil {
		return digest.ArtifactRef{}, fmt.Errorf("create page: %w", err)
	}
	return digest.ArtifactRef{ExternalID: created.ID, URL: created.URL}, nil
}

// AppendToDocument appends rendered blocks to an existing page.
func (c *Client) AppendToDocument(ctx context.Context, externalID, markdown string) error {
	err := c.do(ctx, http.MethodPatch, "/blocks/"+externalID+"/children", map[string]any{
		"children": MarkdownToBlocks(markdown),
	}, nil)
	if err != nil {
		return fmt.Errorf("append blocks: %w", err)
	}
	return nil
}

// HasEntryBySourceURL reports whether the target database already holds an
// entry for the source message permalink.
func (c *Client) HasEntryBySourceURL(ctx context.Context, sourceURL, target string) (bool, error) {
	schema, err := c.Schema(ctx, target)
	if err != nil {
		return false, err
	}
	linkProp, ok := schema.Resolve(RoleSourceLink)
	if !ok {
		return false, fmt.Errorf("log database %s has no source link property", target)
	}

	var result struct {
		Results []json.RawMessage `json:"results"`
	}
	err = c.do(ctx, http.MethodPost, "/databases/"+target+"/query", map[string]any{
		"filter": map[string]any{
			"property": linkProp,
			"url":      map[string]any{"equals": sourceURL},
		},
		"page_size": 1,
	}, &result)
	if err != nil {
		return false, fmt.Errorf("query by source url: %w", err)
	}
	return len(result.Results) > 0, nil
}

// CreateLogEntry writes one report item to the target database, resolving
// property names through the schema adapter so renamed columns keep
// working. Roles missing from the schema are skipped.
func (c *Client) CreateLogEntry(ctx context.Context, item report.Item, sourceURL, date, target string) error {
	schema, err := c.Schema(ctx, target)
	if err != nil {
		return err
	}

	props := map[string]any{}
	if name, ok := schema.Resolve(RoleTitle); ok {
		props[name] = map[string]any{"title": richText(item.Customer + " / " + item.Product)}
	}
	if name, ok := schema.Resolve(RoleCustomer); ok {
		props[name] = map[string]any{"rich_text": richText(item.Customer)}
	}
	if name, ok := schema.Resolve(RoleProduct); ok {
		props[name] = map[string]any{"rich_text": richText(item.Product)}
	}
	if name, ok := schema.Resolve(RoleKind); ok {
		props[name] = map[string]any{"select": map[string]any{"name": kindLabel(item.Kind)}}
	}
	if name, ok := schema.Resolve(RoleDetail); ok {
		props[name] = map[string]any{"rich_text": richText(item.Detail)}
	}
	if name, ok := schema.Resolve(RoleReporter); ok {
		props[name] = map[string]any{"rich_text": richText(item.Reporter)}
	}
	if name, ok := schema.Resolve(RoleAllergen); ok && item.Allergen != "" {
		if schema.PropertyType(name) == "select" {
			props[name] = map[string]any{"select": map[string]any{"name": item.Allergen}}
		} else {
			props[name] = map[string]any{"rich_text": richText(item.Allergen)}
		}
	}
	if name, ok := schema.Resolve(RoleDate); ok && date != "" {
		props[name] = map[string]any{"date": map[string]any{"start": date}}
	}
	if name, ok := schema.Resolve(RoleSourceLink); ok {
		props[name] = map[string]any{"url": sourceURL}
	}

	err = c.do(ctx, http.MethodPost, "/pages", map[string]any{
		"parent":     map[string]any{"database_id": target},
		"properties": props,
	}, nil)
	if err != nil {
		return fmt.Errorf("create log entry: %w", err)
	}
	return nil
}

func kindLabel(kind report.Kind) string {
	if label, ok := kindLabels[kind]; ok {
		return label
	}
	return kindLabels[report.KindInfo]
}
