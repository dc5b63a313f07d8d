package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/spot-rental/internal/model"
)

// ImageRepo stores the image URLs attached to spots and reviews.  Inserts
// are capped at model.MaxImagesPerResource per parent.
//
// The cap is a read-then-write check, so every insert runs in a
// transaction that first takes a row lock on the parent (SELECT ... FOR
// UPDATE).  Concurrent inserts for the same parent queue on that lock and
// each one counts only after the previous insert committed; two requests
// can no longer both observe a count of 9.
type ImageRepo struct {
	db *sql.DB
}

// NewImageRepo returns a new ImageRepo bound to the provided database.
func NewImageRepo(db *sql.DB) *ImageRepo { return &ImageRepo{db: db} }

// cappedInsert describes one parent table for insertCapped.
type cappedInsert struct {
	lockQuery  string // selects the parent row FOR UPDATE
	countQuery string // counts existing children of the parent
	notFound   error  // returned when the parent row is missing
}

var (
	spotImageCap = cappedInsert{
		lockQuery:  `SELECT id FROM spots WHERE id = ? FOR UPDATE`,
		countQuery: `SELECT COUNT(*) FROM spot_images WHERE spot_id = ?`,
		notFound:   ErrSpotNotFound,
	}
	reviewImageCap = cappedInsert{
		lockQuery:  `SELECT id FROM reviews WHERE id = ? FOR UPDATE`,
		countQuery: `SELECT COUNT(*) FROM review_images WHERE review_id = ?`,
		notFound:   ErrReviewNotFound,
	}
)

// insertCapped locks the parent, enforces the cap and runs insert inside
// the same transaction.  The transaction is committed only when insert
// succeeds.
func (r *ImageRepo) insertCapped(ctx context.Context, c cappedInsert, parentID uint64, insert func(tx *sql.Tx) (int64, error)) (id uint64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked uint64
	if err = tx.QueryRowContext(ctx, c.lockQuery, parentID).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = c.notFound
		}
		return 0, err
	}
	var count int
	if err = tx.QueryRowContext(ctx, c.countQuery, parentID).Scan(&count); err != nil {
		return 0, err
	}
	if count >= model.MaxImagesPerResource {
		err = ErrImageLimit
		return 0, err
	}
	newID, err := insert(tx)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(newID), nil
}

// AddSpotImage attaches an image to a spot.  When preview is true the flag
// is cleared on the spot's other images so a spot has at most one preview.
func (r *ImageRepo) AddSpotImage(ctx context.Context, spotID uint64, url string, preview bool) (*model.SpotImage, error) {
	id, err := r.insertCapped(ctx, spotImageCap, spotID, func(tx *sql.Tx) (int64, error) {
		if preview {
			if _, err := tx.ExecContext(ctx, `UPDATE spot_images SET preview = FALSE WHERE spot_id = ? AND preview = TRUE`, spotID); err != nil {
				return 0, err
			}
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO spot_images (spot_id, url, preview) VALUES (?, ?, ?)`, spotID, url, preview)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	})
	if err != nil {
		return nil, err
	}
	return &model.SpotImage{ID: id, SpotID: spotID, URL: url, Preview: preview}, nil
}

// AddReviewImage attaches an image to a review.
func (r *ImageRepo) AddReviewImage(ctx context.Context, reviewID uint64, url string) (*model.ReviewImage, error) {
	id, err := r.insertCapped(ctx, reviewImageCap, reviewID, func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `INSERT INTO review_images (review_id, url) VALUES (?, ?)`, reviewID, url)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	})
	if err != nil {
		return nil, err
	}
	return &model.ReviewImage{ID: id, ReviewID: reviewID, URL: url}, nil
}

// GetSpotImage returns the image and the owner of the spot it belongs to.
func (r *ImageRepo) GetSpotImage(ctx context.Context, id uint64) (*model.SpotImage, uint64, error) {
	const q = `SELECT si.id, si.spot_id, si.url, si.preview, si.created_at, si.updated_at, s.owner_id
	           FROM spot_images si JOIN spots s ON s.id = si.spot_id
	           WHERE si.id = ?`
	var (
		img     model.SpotImage
		ownerID uint64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&img.ID, &img.SpotID, &img.URL, &img.Preview, &img.CreatedAt, &img.UpdatedAt, &ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrSpotImageNotFound
		}
		return nil, 0, err
	}
	return &img, ownerID, nil
}

// GetReviewImage returns the image and the author of the review it belongs to.
func (r *ImageRepo) GetReviewImage(ctx context.Context, id uint64) (*model.ReviewImage, uint64, error) {
	const q = `SELECT ri.id, ri.review_id, ri.url, ri.created_at, ri.updated_at, rv.user_id
	           FROM review_images ri JOIN reviews rv ON rv.id = ri.review_id
	           WHERE ri.id = ?`
	var (
		img      model.ReviewImage
		authorID uint64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&img.ID, &img.ReviewID, &img.URL, &img.CreatedAt, &img.UpdatedAt, &authorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrReviewImageNotFound
		}
		return nil, 0, err
	}
	return &img, authorID, nil
}

// DeleteSpotImage removes a spot image by id.
func (r *ImageRepo) DeleteSpotImage(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.db, `DELETE FROM spot_images WHERE id = ?`, id, ErrSpotImageNotFound)
}

// DeleteReviewImage removes a review image by id.
func (r *ImageRepo) DeleteReviewImage(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.db, `DELETE FROM review_images WHERE id = ?`, id, ErrReviewImageNotFound)
}

func deleteByID(ctx context.Context, db *sql.DB, q string, id uint64, notFound error) error {
	res, err := db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound
	}
	return nil
}

// listSpotImages returns the images of one spot ordered by id.
func listSpotImages(ctx context.Context, db *sql.DB, spotID uint64) ([]model.SpotImage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, spot_id, url, preview, created_at, updated_at FROM spot_images WHERE spot_id = ? ORDER BY id`, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SpotImage, 0)
	for rows.Next() {
		var img model.SpotImage
		if err := rows.Scan(&img.ID, &img.SpotID, &img.URL, &img.Preview, &img.CreatedAt, &img.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}
