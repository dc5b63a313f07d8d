package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/spot-rental/internal/model"
)

// BookingRepo provides CRUD operations for bookings.  Creating or moving a
// booking runs in a transaction that locks the spot row first, so the
// overlap check and the write see a stable set of bookings for that spot.
// Booking dates are stored as DATE columns in UTC.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `b.id, b.spot_id, b.user_id, b.start_date, b.end_date, b.created_at, b.updated_at`

func bookingDest(b *model.Booking) []any {
    return []any{&b.ID, &b.SpotID, &b.UserID, &b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt}
}

// overlapQuery counts bookings of a spot sharing a night with [start, end).
// The last argument excludes the booking being moved (0 on create).
const overlapQuery = `SELECT COUNT(*) FROM bookings
                      WHERE spot_id = ? AND start_date < ? AND end_date > ? AND id <> ?`

// lockSpotTx takes the row lock on the spot and reports ErrSpotNotFound
// when it has been deleted.
func lockSpotTx(ctx context.Context, tx *sql.Tx, spotID uint64) error {
    var id uint64
    err := tx.QueryRowContext(ctx, `SELECT id FROM spots WHERE id = ? FOR UPDATE`, spotID).Scan(&id)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrSpotNotFound
    }
    return err
}

// checkOverlapTx returns ErrBookingConflict when any other booking of the
// spot overlaps the requested range.
func checkOverlapTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    var n int
    if err := tx.QueryRowContext(ctx, overlapQuery,
        b.SpotID, b.EndDate.Format(model.DateLayout), b.StartDate.Format(model.DateLayout), b.ID).Scan(&n); err != nil {
        return err
    }
    if n > 0 {
        return ErrBookingConflict
    }
    return nil
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func (r *BookingRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    if err := fn(tx); err != nil {
        _ = tx.Rollback()
        return err
    }
    return tx.Commit()
}

// Create inserts a booking after checking it against the spot's existing
// bookings.  On success b carries the generated id and timestamps.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
    b.ID = 0
    return r.withTx(ctx, func(tx *sql.Tx) error {
        if err := lockSpotTx(ctx, tx, b.SpotID); err != nil {
            return err
        }
        if err := checkOverlapTx(ctx, tx, b); err != nil {
            return err
        }
        res, err := tx.ExecContext(ctx,
            `INSERT INTO bookings (spot_id, user_id, start_date, end_date) VALUES (?, ?, ?, ?)`,
            b.SpotID, b.UserID, b.StartDate.Format(model.DateLayout), b.EndDate.Format(model.DateLayout))
        if err != nil {
            return err
        }
        id, err := res.LastInsertId()
        if err != nil {
            return err
        }
        return tx.QueryRowContext(ctx,
            `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id).Scan(bookingDest(b)...)
    })
}

// Update moves an existing booking to new dates.  The overlap check skips
// the booking itself.
func (r *BookingRepo) Update(ctx context.Context, b *model.Booking) error {
    return r.withTx(ctx, func(tx *sql.Tx) error {
        if err := lockSpotTx(ctx, tx, b.SpotID); err != nil {
            return err
        }
        if err := checkOverlapTx(ctx, tx, b); err != nil {
            return err
        }
        res, err := tx.ExecContext(ctx,
            `UPDATE bookings SET start_date = ?, end_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
            b.StartDate.Format(model.DateLayout), b.EndDate.Format(model.DateLayout), b.ID)
        if err != nil {
            return err
        }
        if n, _ := res.RowsAffected(); n == 0 {
            var id uint64
            if err := tx.QueryRowContext(ctx, `SELECT id FROM bookings WHERE id = ?`, b.ID).Scan(&id); err != nil {
                if errors.Is(err, sql.ErrNoRows) {
                    return ErrBookingNotFound
                }
                return err
            }
        }
        return tx.QueryRowContext(ctx,
            `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, b.ID).Scan(bookingDest(b)...)
    })
}

// GetByID returns a booking together with the owner of the booked spot,
// which is allowed to cancel it.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, uint64, error) {
    var (
        b           model.Booking
        spotOwnerID uint64
    )
    dest := append(bookingDest(&b), &spotOwnerID)
    err := r.db.QueryRowContext(ctx,
        `SELECT `+bookingColumns+`, s.owner_id FROM bookings b JOIN spots s ON s.id = b.spot_id WHERE b.id = ?`,
        id).Scan(dest...)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, 0, ErrBookingNotFound
        }
        return nil, 0, err
    }
    return &b, spotOwnerID, nil
}

// Delete removes a booking.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
    return deleteByID(ctx, r.db, `DELETE FROM bookings WHERE id = ?`, id, ErrBookingNotFound)
}

// ListByUser returns the bookings made by userID with the booked spot and
// its preview image url.  An empty slice is returned when there are none.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
    q := `SELECT ` + bookingColumns + `, ` + spotColumns + `,
                 (SELECT si.url FROM spot_images si
                   WHERE si.spot_id = s.id AND si.preview = TRUE
                   ORDER BY si.id DESC LIMIT 1) AS preview_image
          FROM bookings b JOIN spots s ON s.id = b.spot_id
          WHERE b.user_id = ?
          ORDER BY b.start_date, b.id`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.BookingDetail, 0)
    for rows.Next() {
        var (
            d       model.BookingDetail
            preview sql.NullString
        )
        dest := append(bookingDest(&d.Booking), spotDest(&d.Spot)...)
        dest = append(dest, &preview)
        if err := rows.Scan(dest...); err != nil {
            return nil, err
        }
        if preview.Valid {
            url := preview.String
            d.PreviewImage = &url
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

// ListBySpot returns the bookings of a spot with the booking user.
// Callers decide how much of each row the requester may see.
func (r *BookingRepo) ListBySpot(ctx context.Context, spotID uint64) ([]model.BookingDetail, error) {
    q := `SELECT ` + bookingColumns + `, u.id, u.first_name, u.last_name
          FROM bookings b JOIN users u ON u.id = b.user_id
          WHERE b.spot_id = ?
          ORDER BY b.start_date, b.id`
    rows, err := r.db.QueryContext(ctx, q, spotID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.BookingDetail, 0)
    for rows.Next() {
        var d model.BookingDetail
        dest := append(bookingDest(&d.Booking), &d.User.ID, &d.User.FirstName, &d.User.LastName)
        if err := rows.Scan(dest...); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}
