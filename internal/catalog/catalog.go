// Package catalog indexes approved listings into Elasticsearch for the
// public search surface.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/mitchellh/mapstructure"

	"github.com/ikanisa/dar-ingest/internal/config"
	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/logger"
)

const (
	defaultIndexTimeout = 10 * time.Second
	defaultSyncBatch    = 100
)

// listingMapping is the index mapping for the listings catalog.
const listingMapping = `{
	"mappings": {
		"properties": {
			"title":         {"type": "text"},
			"description":   {"type": "text"},
			"property_type": {"type": "keyword"},
			"price":         {"type": "double"},
			"currency":      {"type": "keyword"},
			"bedrooms":      {"type": "integer"},
			"bathrooms":     {"type": "integer"},
			"area_locality": {"type": "keyword"},
			"source_domain": {"type": "keyword"},
			"source_url":    {"type": "keyword"},
			"discovered_at": {"type": "date"}
		}
	}
}`

// Document is the catalog shape of an approved listing. Address and raw
// images never reach the catalog; only the publishable subset does.
type Document struct {
	ID           string   `json:"id"            mapstructure:"id"`
	Title        string   `json:"title"         mapstructure:"title"`
	Description  *string  `json:"description"   mapstructure:"description"`
	PropertyType string   `json:"property_type" mapstructure:"property_type"`
	Price        *float64 `json:"price"         mapstructure:"price"`
	Currency     string   `json:"currency"      mapstructure:"currency"`
	Bedrooms     *int     `json:"bedrooms"      mapstructure:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms"     mapstructure:"bathrooms"`
	AreaLocality *string  `json:"area_locality" mapstructure:"area_locality"`
	SourceDomain string   `json:"source_domain" mapstructure:"source_domain"`
	SourceURL    string   `json:"source_url"    mapstructure:"source_url"`
	DiscoveredAt string   `json:"discovered_at" mapstructure:"discovered_at"`
}

// ListingSource lists approved listings awaiting catalog sync.
type ListingSource interface {
	ListByStatus(ctx context.Context, status string, limit int) ([]*domain.Listing, error)
}

// NewClient creates and pings an Elasticsearch client.
func NewClient(cfg config.ElasticsearchConfig) (*es.Client, error) {
	client, err := es.NewClient(es.Config{Addresses: cfg.Addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("error pinging Elasticsearch: %s", res.String())
	}

	return client, nil
}

// Indexer pushes approved listings into the catalog index.
type Indexer struct {
	client *es.Client
	index  string
	log    logger.Interface
}

// NewIndexer creates an indexer for the given index name.
func NewIndexer(client *es.Client, index string, log logger.Interface) *Indexer {
	return &Indexer{client: client, index: index, log: log}
}

// EnsureIndex creates the catalog index with its mapping if it does not
// already exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.client.Indices.Exists(
		[]string{i.index},
		i.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", i.index, err)
	}
	defer exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	res, err := i.client.Indices.Create(
		i.index,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(strings.NewReader(listingMapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", i.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("error creating index %s: %s", i.index, res.String())
	}

	i.log.Info("catalog index created", "index", i.index)
	return nil
}

// Index writes one listing document, replacing any previous version.
func (i *Indexer) Index(ctx context.Context, listing *domain.Listing) error {
	ctx, cancel := context.WithTimeout(ctx, defaultIndexTimeout)
	defer cancel()

	body, err := json.Marshal(toDocument(listing))
	if err != nil {
		return fmt.Errorf("failed to marshal listing %s: %w", listing.ID, err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(listing.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index listing %s: %w", listing.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch error indexing listing %s: %s", listing.ID, res.String())
	}

	return nil
}

// Delete removes a listing from the catalog, for rejected overrides.
// A missing document is not an error.
func (i *Indexer) Delete(ctx context.Context, listingID string) error {
	res, err := i.client.Delete(
		i.index,
		listingID,
		i.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete listing %s from catalog: %w", listingID, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elasticsearch error deleting listing %s: %s", listingID, res.String())
	}
	return nil
}

// Get reads one catalog document back.
func (i *Indexer) Get(ctx context.Context, listingID string) (*Document, error) {
	res, err := i.client.Get(
		i.index,
		listingID,
		i.client.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing %s from catalog: %w", listingID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch error getting listing %s: %s", listingID, res.String())
	}

	var envelope struct {
		Source map[string]any `json:"_source"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&envelope); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", decodeErr)
	}
	if envelope.Source == nil {
		return nil, errors.New("catalog document not found")
	}

	var doc Document
	if decodeErr := mapstructure.Decode(envelope.Source, &doc); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode catalog document: %w", decodeErr)
	}
	return &doc, nil
}

// Sync pushes all approved listings into the catalog. Individual failures
// are logged and skipped; the sync reports how many documents were written.
func (i *Indexer) Sync(ctx context.Context, listings ListingSource) (int, error) {
	approved, err := listings.ListByStatus(ctx, domain.ListingStatusApproved, defaultSyncBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list approved listings: %w", err)
	}

	indexed := 0
	for _, listing := range approved {
		if indexErr := i.Index(ctx, listing); indexErr != nil {
			i.log.Error("catalog index failed", "listing_id", listing.ID, "error", indexErr.Error())
			continue
		}
		indexed++
	}

	i.log.Info("catalog sync complete", "approved", len(approved), "indexed", indexed)
	return indexed, nil
}

// toDocument maps a listing row to its catalog shape.
func toDocument(listing *domain.Listing) *Document {
	return &Document{
		ID:           listing.ID,
		Title:        listing.Title,
		Description:  listing.Description,
		PropertyType: listing.PropertyType,
		Price:        listing.Price,
		Currency:     listing.Currency,
		Bedrooms:     listing.Bedrooms,
		Bathrooms:    listing.Bathrooms,
		AreaLocality: listing.AreaLocality,
		SourceDomain: listing.SourceDomain,
		SourceURL:    listing.SourceURL,
		DiscoveredAt: listing.DiscoveredAt.UTC().Format(time.RFC3339),
	}
}
