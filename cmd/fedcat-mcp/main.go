package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// searchResponse mirrors the fedcat v2 API response model.
type searchResponse struct {
	Meta struct {
		CurrentPage     int `json:"currentPage"`
		PageSize        int `json:"pageSize"`
		TotalResults    int `json:"totalResults"`
		TotalPages      int `json:"totalPages"`
		MediaTypeCounts struct {
			Physical int `json:"physical"`
			Digital  int `json:"digital"`
		} `json:"mediaTypeCounts"`
	} `json:"meta"`
	Results []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Author       string `json:"author"`
		MediaType    string `json:"mediaType"`
		Availability string `json:"availabilityText"`
		CopyCount    int    `json:"copyCount"`
		Format       string `json:"format"`
		Source       string `json:"sourceName"`
	} `json:"results"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// healthResponse mirrors the fedcat health response model.
type healthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
	Version  string          `json:"version"`
}

func main() {
	apiURL := os.Getenv("FEDCAT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("FEDCAT_API_KEY")
	username := os.Getenv("FEDCAT_PATRON_USERNAME")
	password := os.Getenv("FEDCAT_PATRON_PASSWORD")
	if username == "" {
		fmt.Fprintln(os.Stderr, "FEDCAT_PATRON_USERNAME is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"fedcat",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_catalog",
		mcp.WithDescription("Search the federated library catalog: physical items from the legacy catalog and digital items from the ebook catalog, merged into one sorted result set."),
		mcp.WithString("term",
			mcp.Required(),
			mcp.Description("The search term (title, author, keyword)"),
		),
		mcp.WithString("media_filter",
			mcp.Description("Which sources to search: 'combined' (default), 'physical', or 'digital'"),
			mcp.Enum("combined", "physical", "digital"),
		),
		mcp.WithString("sort_key",
			mcp.Description("Result ordering: 'relevance' (default), 'availability', 'title', 'author', or 'date'"),
			mcp.Enum("relevance", "availability", "title", "author", "date"),
		),
		mcp.WithNumber("page",
			mcp.Description("Page number (default: 1)"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Items per page (default: 10, max: 50)"),
		),
	)
	s.AddTool(searchTool, handleSearch(apiURL, apiKey, username, password))

	healthTool := mcp.NewTool("health_check",
		mcp.WithDescription("Report which catalog sources are configured and the service status."),
	)
	s.AddTool(healthTool, handleHealth(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleSearch(apiURL, apiKey, username, password string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		term, err := request.RequireString("term")
		if err != nil {
			return mcp.NewToolResultError("term is required"), nil
		}

		query := url.Values{}
		query.Set("search", term)
		query.Set("username", username)
		if password != "" {
			query.Set("password", password)
		}
		if f := request.GetString("media_filter", ""); f != "" {
			query.Set("mediaFilter", f)
		}
		if k := request.GetString("sort_key", ""); k != "" {
			query.Set("sortKey", k)
		}
		if p := request.GetInt("page", 0); p > 0 {
			query.Set("page", strconv.Itoa(p))
		}
		if ps := request.GetInt("page_size", 0); ps > 0 {
			query.Set("pageSize", strconv.Itoa(ps))
		}

		body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/search?"+query.Encode())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		var resp searchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if resp.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)), nil
		}

		var out strings.Builder
		fmt.Fprintf(&out, "Page %d/%d, %d total (%d physical, %d digital)\n\n",
			resp.Meta.CurrentPage, resp.Meta.TotalPages, resp.Meta.TotalResults,
			resp.Meta.MediaTypeCounts.Physical, resp.Meta.MediaTypeCounts.Digital)
		for i, item := range resp.Results {
			fmt.Fprintf(&out, "%d. %s by %s [%s/%s] %s (%d copies)\n",
				i+1, item.Title, item.Author, item.MediaType, item.Format,
				item.Availability, item.CopyCount)
		}
		if len(resp.Results) == 0 {
			out.WriteString("No results.\n")
		}

		return mcp.NewToolResultText(out.String()), nil
	}
}

func handleHealth(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/health")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}

		var resp healthResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		var out strings.Builder
		fmt.Fprintf(&out, "Status: %s (version %s)\n", resp.Status, resp.Version)
		for name, up := range resp.Services {
			fmt.Fprintf(&out, "- %s: configured=%t\n", name, up)
		}
		return mcp.NewToolResultText(out.String()), nil
	}
}

// apiGet sends a GET request to the fedcat API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
