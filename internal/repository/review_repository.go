package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/spot-rental/internal/model"
)

// ErrReviewExists is returned when a user reviews the same spot twice.
var ErrReviewExists = errors.New("review already exists")

// ReviewRepo provides CRUD operations for reviews and the joined listings
// used by the spot and current-user endpoints.
type ReviewRepo struct {
	db *sql.DB
}

// NewReviewRepo returns a new ReviewRepo bound to the given database.
func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

const reviewColumns = `rv.id, rv.spot_id, rv.user_id, rv.review, rv.stars, rv.created_at, rv.updated_at`

func reviewDest(r *model.Review) []any {
	return []any{&r.ID, &r.SpotID, &r.UserID, &r.Review, &r.Stars, &r.CreatedAt, &r.UpdatedAt}
}

// Create inserts a review.  A second review by the same user on the same
// spot violates uq_reviews_spot_user and yields ErrReviewExists.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reviews (spot_id, user_id, review, stars) VALUES (?, ?, ?, ?)`,
		rv.SpotID, rv.UserID, rv.Review, rv.Stars)
	if err != nil {
		if _, ok := duplicateKey(err); ok {
			return ErrReviewExists
		}
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
	*rv = *created
	return nil
}

// GetByID fetches a review regardless of author.
func (r *ReviewRepo) GetByID(ctx context.Context, id uint64) (*model.Review, error) {
	var rv model.Review
	err := r.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews rv WHERE rv.id = ?`, id).Scan(reviewDest(&rv)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return &rv, nil
}

// Update rewrites review text and stars.
func (r *ReviewRepo) Update(ctx context.Context, rv *model.Review) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE reviews SET review = ?, stars = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		rv.Review, rv.Stars, rv.ID); err != nil {
		return err
	}
	updated, err := r.GetByID(ctx, rv.ID)
	if err != nil {
		return err
	}
	*rv = *updated
	return nil
}

// Delete removes a review; its images cascade.
func (r *ReviewRepo) Delete(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.db, `DELETE FROM reviews WHERE id = ?`, id, ErrReviewNotFound)
}

// ListBySpot returns the reviews of a spot with author and images.
func (r *ReviewRepo) ListBySpot(ctx context.Context, spotID uint64) ([]model.ReviewDetail, error) {
	q := `SELECT ` + reviewColumns + `, u.id, u.first_name, u.last_name
	      FROM reviews rv JOIN users u ON u.id = rv.user_id
	      WHERE rv.spot_id = ?
	      ORDER BY rv.created_at DESC, rv.id DESC`
	rows, err := r.db.QueryContext(ctx, q, spotID)
	if err != nil {
		return nil, err
	}
	details := make([]model.ReviewDetail, 0)
	for rows.Next() {
		var d model.ReviewDetail
		dest := append(reviewDest(&d.Review), &d.Author.ID, &d.Author.FirstName, &d.Author.LastName)
		if err := rows.Scan(dest...); err != nil {
			rows.Close()
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, r.attachImages(ctx, details)
}

// ListByUser returns the reviews written by userID, each with its author,
// the reviewed spot with its preview image url, and the review images.
func (r *ReviewRepo) ListByUser(ctx context.Context, userID uint64) ([]model.ReviewDetail, error) {
	q := `SELECT ` + reviewColumns + `, u.id, u.first_name, u.last_name, ` + spotColumns + `,
	             (SELECT si.url FROM spot_images si
	               WHERE si.spot_id = s.id AND si.preview = TRUE
	               ORDER BY si.id DESC LIMIT 1) AS preview_image
	      FROM reviews rv
	      JOIN users u ON u.id = rv.user_id
	      JOIN spots s ON s.id = rv.spot_id
	      WHERE rv.user_id = ?
	      ORDER BY rv.created_at DESC, rv.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	details := make([]model.ReviewDetail, 0)
	for rows.Next() {
		var (
			d       model.ReviewDetail
			spot    model.Spot
			preview sql.NullString
		)
		dest := append(reviewDest(&d.Review), &d.Author.ID, &d.Author.FirstName, &d.Author.LastName)
		dest = append(dest, spotDest(&spot)...)
		dest = append(dest, &preview)
		if err := rows.Scan(dest...); err != nil {
			rows.Close()
			return nil, err
		}
		d.Spot = &spot
		if preview.Valid {
			url := preview.String
			d.PreviewImage = &url
		}
		details = append(details, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, r.attachImages(ctx, details)
}

// attachImages loads the images of all given reviews in one query.
func (r *ReviewRepo) attachImages(ctx context.Context, details []model.ReviewDetail) error {
	if len(details) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(details))
	args := make([]any, 0, len(details))
	for i := range details {
		details[i].Images = make([]model.ReviewImage, 0)
		index[details[i].ID] = i
		args = append(args, details[i].ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, review_id, url, created_at, updated_at FROM review_images WHERE review_id IN (`+placeholders+`) ORDER BY id`,
		args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var img model.ReviewImage
		if err := rows.Scan(&img.ID, &img.ReviewID, &img.URL, &img.CreatedAt, &img.UpdatedAt); err != nil {
			return err
		}
		if i, ok := index[img.ReviewID]; ok {
			details[i].Images = append(details[i].Images, img)
		}
	}
	return rows.Err()
}
