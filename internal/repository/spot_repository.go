// Package repository contains data access logic separated from HTTP handlers.
// This file defines the spot repository: CRUD for listings plus the
// aggregate queries behind the listing endpoints (average rating and the
// preview image).
package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers
	"errors"       // errors is used to compare sentinel values

	"github.com/iliyamo/spot-rental/internal/model"
)

// SpotRepo encapsulates all database queries related to spots.  It
// depends on a sql.DB connection which should be configured elsewhere.
type SpotRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewSpotRepo constructs a SpotRepo with the provided DB handle.
func NewSpotRepo(db *sql.DB) *SpotRepo {
	return &SpotRepo{db: db}
}

const spotColumns = `s.id, s.owner_id, s.address, s.city, s.state, s.country,
	s.lat, s.lng, s.name, s.description, s.price, s.created_at, s.updated_at`

func spotDest(s *model.Spot) []any {
	return []any{&s.ID, &s.OwnerID, &s.Address, &s.City, &s.State, &s.Country,
		&s.Lat, &s.Lng, &s.Name, &s.Description, &s.Price, &s.CreatedAt, &s.UpdatedAt}
}

// Create inserts a new spot.  On success the spot's ID and timestamps are
// populated by a follow-up SELECT so callers receive a full record.
func (r *SpotRepo) Create(ctx context.Context, s *model.Spot) error {
	const q = `INSERT INTO spots (owner_id, address, city, state, country, lat, lng, name, description, price)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.OwnerID, s.Address, s.City, s.State, s.Country,
		s.Lat, s.Lng, s.Name, s.Description, s.Price)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

// GetByID fetches a spot by its ID regardless of owner.  It returns
// ErrSpotNotFound if no row is found.  Handlers use it for the existence
// check that precedes the ownership check.
func (r *SpotRepo) GetByID(ctx context.Context, id uint64) (*model.Spot, error) {
	q := "SELECT " + spotColumns + " FROM spots s WHERE s.id = ?"
	var s model.Spot
	if err := r.db.QueryRowContext(ctx, q, id).Scan(spotDest(&s)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSpotNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Update writes the mutable fields of s.  Ownership is verified by the
// caller before calling Update.
func (r *SpotRepo) Update(ctx context.Context, s *model.Spot) error {
	const q = `UPDATE spots
	           SET address = ?, city = ?, state = ?, country = ?, lat = ?, lng = ?,
	               name = ?, description = ?, price = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, s.Address, s.City, s.State, s.Country,
		s.Lat, s.Lng, s.Name, s.Description, s.Price, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for unchanged rows too; confirm the row still exists.
		if _, err := r.GetByID(ctx, s.ID); err != nil {
			return err
		}
	}
	updated, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *updated
	return nil
}

// Delete removes a spot.  Reviews, review images, spot images and
// bookings go with it through ON DELETE CASCADE.
func (r *SpotRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM spots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSpotNotFound
	}
	return nil
}

// summaryQuery selects each spot with its mean star rating (0 when there
// are no reviews) and the url of its flagged preview image, newest first
// when several are flagged.
const summaryQuery = `SELECT ` + spotColumns + `,
	       COALESCE(AVG(r.stars), 0) AS avg_rating,
	       (SELECT si.url FROM spot_images si
	         WHERE si.spot_id = s.id AND si.preview = TRUE
	         ORDER BY si.id DESC LIMIT 1) AS preview_image
	FROM spots s
	LEFT JOIN reviews r ON r.spot_id = s.id`

// ListSummaries returns every spot with its aggregates ordered by id.
func (r *SpotRepo) ListSummaries(ctx context.Context) ([]model.SpotSummary, error) {
	return r.listSummaries(ctx, summaryQuery+` GROUP BY s.id ORDER BY s.id`)
}

// ListSummariesByOwner returns the spots of one owner with their aggregates.
func (r *SpotRepo) ListSummariesByOwner(ctx context.Context, ownerID uint64) ([]model.SpotSummary, error) {
	return r.listSummaries(ctx, summaryQuery+` WHERE s.owner_id = ? GROUP BY s.id ORDER BY s.id`, ownerID)
}

func (r *SpotRepo) listSummaries(ctx context.Context, q string, args ...any) ([]model.SpotSummary, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SpotSummary, 0)
	for rows.Next() {
		var (
			s       model.SpotSummary
			avg     sql.NullFloat64
			preview sql.NullString
		)
		dest := append(spotDest(&s.Spot), &avg, &preview)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if avg.Valid {
			s.AvgRating = avg.Float64
		}
		if preview.Valid {
			url := preview.String
			s.PreviewImage = &url
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDetail assembles the single spot view: the spot, its owner, review
// count, average stars and images.
func (r *SpotRepo) GetDetail(ctx context.Context, id uint64) (*model.SpotDetail, error) {
	q := `SELECT ` + spotColumns + `, u.id, u.first_name, u.last_name
	      FROM spots s JOIN users u ON u.id = s.owner_id
	      WHERE s.id = ?`
	var d model.SpotDetail
	dest := append(spotDest(&d.Spot), &d.Owner.ID, &d.Owner.FirstName, &d.Owner.LastName)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSpotNotFound
		}
		return nil, err
	}

	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(stars) FROM reviews WHERE spot_id = ?`, id).Scan(&d.NumReviews, &avg); err != nil {
		return nil, err
	}
	if avg.Valid {
		v := avg.Float64
		d.AvgStarRating = &v
	}

	images, err := listSpotImages(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	d.Images = images
	return &d, nil
}
