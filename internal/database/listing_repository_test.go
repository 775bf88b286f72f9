package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/ikanisa/dar-ingest/internal/database"
	"github.com/ikanisa/dar-ingest/internal/domain"
)

func testListing() *domain.Listing {
	price := 305000.0
	bedrooms := 3
	area := "Sliema"
	return &domain.Listing{
		Title:        "Seafront Apartment",
		PropertyType: "apartment",
		Price:        &price,
		Currency:     "EUR",
		Bedrooms:     &bedrooms,
		AreaLocality: &area,
		Images:       domain.StringSlice{},
		SourceURL:    "https://example.com/property/1",
		SourceDomain: "example.com",
		SourceType:   domain.SourceTypeLinkout,
		ContentHash:  "hash-1",
		Status:       domain.ListingStatusPending,
	}
}

// listingColumns lists the columns returned by listings SELECT queries.
var listingColumns = []string{
	"id", "title", "description", "property_type", "price", "currency",
	"bedrooms", "bathrooms", "area_locality", "address", "images", "source_url",
	"source_domain", "source_type", "content_hash", "status", "posted_by",
	"discovered_at", "last_checked_at", "created_at", "updated_at",
}

func listingRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(listingColumns).AddRow(
		"lst-1", "Seafront Apartment", nil, "apartment", 305000.0, "EUR",
		3, nil, "Sliema", nil, []byte(`[]`), "https://example.com/property/1",
		"example.com", "linkout", "hash-1", "pending", nil,
		now, nil, now, now,
	)
}

func newListingRepo(t *testing.T) (*database.ListingRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewListingRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func TestListingRepository_GetByID_NotFound(t *testing.T) {
	repo, mock, cleanup := newListingRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM listings WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(listingColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, database.ErrListingNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrListingNotFound", err)
	}
}

func TestListingRepository_FindBySourceURL_NoMatchIsNil(t *testing.T) {
	repo, mock, cleanup := newListingRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM listings WHERE source_url").
		WithArgs("https://example.com/unknown").
		WillReturnRows(sqlmock.NewRows(listingColumns))

	listing, err := repo.FindBySourceURL(context.Background(), "https://example.com/unknown")
	if err != nil {
		t.Fatalf("FindBySourceURL() error = %v", err)
	}
	if listing != nil {
		t.Errorf("FindBySourceURL() = %+v, want nil", listing)
	}
}

func TestListingRepository_FindFuzzy(t *testing.T) {
	repo, mock, cleanup := newListingRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM listings").
		WithArgs("Sliema", 3, 295000.0, 315000.0).
		WillReturnRows(listingRow(time.Now()))

	listing, err := repo.FindFuzzy(context.Background(), "Sliema", 3, 295000, 315000)
	if err != nil {
		t.Fatalf("FindFuzzy() error = %v", err)
	}
	if listing == nil {
		t.Fatal("FindFuzzy() = nil, want match")
	}
	if listing.ID != "lst-1" {
		t.Errorf("FindFuzzy() ID = %q, want lst-1", listing.ID)
	}
}

func TestListingRepository_Insert(t *testing.T) {
	repo, mock, cleanup := newListingRepo(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO listings").
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "discovered_at", "created_at", "updated_at"}).
				AddRow("lst-9", now, now, now),
		)

	listing := testListing()
	if err := repo.Insert(context.Background(), listing); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if listing.ID != "lst-9" {
		t.Errorf("Insert() ID = %q, want lst-9", listing.ID)
	}
}

func TestListingRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock, cleanup := newListingRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE listings SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", "approved")
	if !errors.Is(err, database.ErrListingNotFound) {
		t.Fatalf("UpdateStatus() error = %v, want ErrListingNotFound", err)
	}
}

func TestListingRepository_LocalityPriceStats(t *testing.T) {
	repo, mock, cleanup := newListingRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("Sliema").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce", "count"}).AddRow(320000.0, 12))

	avg, count, err := repo.LocalityPriceStats(context.Background(), "Sliema")
	if err != nil {
		t.Fatalf("LocalityPriceStats() error = %v", err)
	}
	if avg != 320000 || count != 12 {
		t.Errorf("LocalityPriceStats() = (%v, %d), want (320000, 12)", avg, count)
	}
}
