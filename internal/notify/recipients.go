package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bayline/shop-sync-service/internal/config"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

// Resolver turns a principal id into an offline contact surface.
type Resolver interface {
	Resolve(ctx context.Context, principalID string) (model.Recipient, error)
}

// Directory is the upstream contact source, usually the shop's CRM.
type Directory interface {
	Lookup(ctx context.Context, principalID string) (model.Recipient, error)
}

// HTTPDirectory fetches contact profiles from the shop-core REST API.
type HTTPDirectory struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPDirectory(cfg *config.Config) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL:    cfg.Notify.DirectoryURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type contactResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (d *HTTPDirectory) Lookup(ctx context.Context, principalID string) (model.Recipient, error) {
	if d.baseURL == "" {
		// No directory means no offline reachability; return an empty
		// recipient and let each channel record "no recipient address".
		return model.Recipient{PrincipalID: principalID}, nil
	}

	url := fmt.Sprintf("%s/customers/%s/contact", d.baseURL, principalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Recipient{}, fmt.Errorf("directory: build request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return model.Recipient{}, fmt.Errorf("directory: lookup %s: %w", principalID, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 300 {
		return model.Recipient{}, fmt.Errorf("directory: lookup %s: status %d", principalID, resp.StatusCode)
	}

	var contact contactResponse
	if err := json.Unmarshal(data, &contact); err != nil {
		return model.Recipient{}, fmt.Errorf("directory: decode contact: %w", err)
	}

	return model.Recipient{
		PrincipalID: principalID,
		Name:        contact.Name,
		Phone:       contact.Phone,
		Email:       contact.Email,
	}, nil
}

// CachedResolver wraps the directory with an LRU of hot identities so a
// burst of events for the same customer costs one upstream lookup.
type CachedResolver struct {
	directory Directory
	cache     *lru.Cache[string, model.Recipient]
}

func NewCachedResolver(directory *HTTPDirectory) *CachedResolver {
	cache, _ := lru.New[string, model.Recipient](10000)
	return &CachedResolver{
		directory: directory,
		cache:     cache,
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, principalID string) (model.Recipient, error) {
	if cached, ok := r.cache.Get(principalID); ok {
		return cached, nil
	}

	rcpt, err := r.directory.Lookup(ctx, principalID)
	if err != nil {
		return model.Recipient{}, err
	}

	r.cache.Add(principalID, rcpt)
	return rcpt, nil
}
