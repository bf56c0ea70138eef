// Package coverage implements the policy search tools and the policy
// extraction tool, and assembles them into the agent's catalog.
//
// Information Hiding:
// - Upstream endpoints, response envelopes and field spellings
// - Result limits per source
// - Document URL construction when upstream omits one
package coverage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/wramirez09/langchain-agent-sub000/config"
	"github.com/wramirez09/langchain-agent-sub000/model"
	"github.com/wramirez09/langchain-agent-sub000/tools"
)

// Source describes one coverage-data registry.
type Source struct {
	Tool        string
	Description string
	Label       string // singular noun used in result text, e.g. "local LCD"
	FailureNoun string // plural noun used in failure text, e.g. "local LCDs"
	Type        model.SourceType
	Endpoint    string
	Limit       int
	StateScoped bool
	Summarize   bool
	DocURL      string // fmt template taking the document id
}

// DefaultSources returns the five registries at the configured endpoints.
func DefaultSources(cfg config.SourcesConfig) []Source {
	return []Source{
		{
			Tool: "search_ncd",
			Description: "Search Medicare National Coverage Determinations (NCDs) by treatment, procedure or diagnosis. " +
				"Use for Medicare questions, together with search_local_lcd and search_local_articles.",
			Label:       "NCD",
			FailureNoun: "NCDs",
			Type:        model.SourceNCD,
			Endpoint:    cfg.NCDURL,
			Limit:       10,
			DocURL:      "https://www.cms.gov/medicare-coverage-database/view/ncd.aspx?ncdid=%s",
		},
		{
			Tool: "search_local_lcd",
			Description: "Search Medicare Local Coverage Determinations (LCDs) for a U.S. state. " +
				"Each match includes a short summary of the document. Use for Medicare questions.",
			Label:       "local LCD",
			FailureNoun: "local LCDs",
			Type:        model.SourceLCD,
			Endpoint:    cfg.LCDURL,
			Limit:       5,
			StateScoped: true,
			Summarize:   true,
			DocURL:      "https://www.cms.gov/medicare-coverage-database/view/lcd.aspx?lcdid=%s",
		},
		{
			Tool: "search_local_articles",
			Description: "Search Medicare Local Coverage Articles (billing and coding guidance tied to LCDs) for a U.S. state. " +
				"Use for Medicare questions.",
			Label:       "local coverage article",
			FailureNoun: "local coverage articles",
			Type:        model.SourceArticle,
			Endpoint:    cfg.ArticleURL,
			Limit:       10,
			StateScoped: true,
			DocURL:      "https://www.cms.gov/medicare-coverage-database/view/article.aspx?articleid=%s",
		},
		{
			Tool: "search_carelon_guidelines",
			Description: "Search Carelon clinical appropriateness guidelines. " +
				"Use only when the user's guidelines provider is Carelon.",
			Label:       "Carelon guideline",
			FailureNoun: "Carelon guidelines",
			Type:        model.SourceCarelon,
			Endpoint:    cfg.CarelonURL,
			Limit:       10,
		},
		{
			Tool: "search_evolent_guidelines",
			Description: "Search Evolent clinical guidelines. " +
				"Use only when the user's guidelines provider is Evolent.",
			Label:       "Evolent guideline",
			FailureNoun: "Evolent guidelines",
			Type:        model.SourceEvolent,
			Endpoint:    cfg.EvolentURL,
			Limit:       10,
		},
	}
}

// record is one loosely typed upstream row.
type record map[string]interface{}

var (
	titleKeys = []string{"title", "document_title", "name", "guideline_title"}
	idKeys    = []string{"document_display_id", "display_id", "documentDisplayId", "guideline_id", "document_id", "id", "slug"}
	docIDKeys = []string{"document_id", "documentId", "id"}
	urlKeys   = []string{"url", "link", "document_url", "guideline_url", "permalink"}
	dateKeys  = []string{"effective_date", "effectiveDate", "last_updated", "updated", "modified", "date"}
)

var titlePolicy = bluemonday.StrictPolicy()

// fetch retrieves the source's records. Filtering always happens locally;
// only the state identifier is sent upstream.
func (s Source) fetch(ctx context.Context, client *tools.HTTPClient, state *model.StateRef) ([]record, error) {
	var query url.Values
	if s.StateScoped && state != nil {
		query = url.Values{"state_id": {strconv.Itoa(state.StateID)}}
	}
	body, err := client.Get(ctx, s.Endpoint, query, "application/json")
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

// decodeRecords accepts {"data":[...]}, {"value":[...]} or a bare array.
func decodeRecords(body []byte) ([]record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rows []record
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return rows, nil
	}

	var envelope struct {
		Data  []record `json:"data"`
		Value []record `json:"value"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return envelope.Value, nil
}

// reference normalizes a record. ok is false when it carries no title.
func (s Source) reference(r record) (model.CoverageReference, bool) {
	title := cleanTitle(r.str(titleKeys...))
	if title == "" {
		return model.CoverageReference{}, false
	}
	ref := model.CoverageReference{
		Title:         title,
		DisplayID:     r.str(idKeys...),
		SourceType:    s.Type,
		EffectiveDate: r.str(dateKeys...),
	}
	ref.URL = s.documentURL(r.str(urlKeys...), r.str(docIDKeys...), ref.DisplayID)
	return ref, true
}

var leadingLetters = regexp.MustCompile(`^[A-Za-z]+`)

// documentURL resolves relative links against the endpoint and falls back
// to the source's document template.
func (s Source) documentURL(link, docID, displayID string) string {
	if link != "" {
		if ref, err := url.Parse(link); err == nil {
			if ref.IsAbs() {
				return ref.String()
			}
			if base, err := url.Parse(s.Endpoint); err == nil {
				return base.ResolveReference(ref).String()
			}
		}
	}
	id := docID
	if id == "" {
		id = leadingLetters.ReplaceAllString(displayID, "")
	}
	if id == "" || s.DocURL == "" {
		return ""
	}
	return fmt.Sprintf(s.DocURL, url.QueryEscape(id))
}

// str returns the first non-empty value among keys. WordPress style
// {"rendered": "..."} objects are unwrapped.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		case float64:
			s = strconv.FormatFloat(tv, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(tv)
		case map[string]interface{}:
			if rendered, ok := tv["rendered"].(string); ok {
				s = rendered
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// cleanTitle strips markup and entities from upstream titles.
func cleanTitle(raw string) string {
	text := html.UnescapeString(titlePolicy.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}
