package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the marketplace tables.  Deleting a spot cascades to its
// reviews, images and bookings; deleting a review cascades to its images.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username        VARCHAR(30)  NOT NULL,
		email           VARCHAR(256) NOT NULL,
		hashed_password CHAR(60)     NOT NULL,
		first_name      VARCHAR(100) NOT NULL DEFAULT '',
		last_name       VARCHAR(100) NOT NULL DEFAULT '',
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS spots (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		owner_id    BIGINT UNSIGNED NOT NULL,
		address     VARCHAR(255) NOT NULL,
		city        VARCHAR(100) NOT NULL,
		state       VARCHAR(100) NOT NULL,
		country     VARCHAR(100) NOT NULL,
		lat         DECIMAL(9,6) NOT NULL,
		lng         DECIMAL(9,6) NOT NULL,
		name        VARCHAR(50)  NOT NULL,
		description TEXT NOT NULL,
		price       DECIMAL(10,2) NOT NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		CONSTRAINT fk_spots_owner FOREIGN KEY (owner_id) REFERENCES users(id),
		CONSTRAINT ck_spots_lat CHECK (lat BETWEEN -90 AND 90),
		CONSTRAINT ck_spots_lng CHECK (lng BETWEEN -180 AND 180)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		spot_id    BIGINT UNSIGNED NOT NULL,
		user_id    BIGINT UNSIGNED NOT NULL,
		review     TEXT NOT NULL,
		stars      TINYINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_reviews_spot_user (spot_id, user_id),
		CONSTRAINT fk_reviews_spot FOREIGN KEY (spot_id) REFERENCES spots(id) ON DELETE CASCADE,
		CONSTRAINT fk_reviews_user FOREIGN KEY (user_id) REFERENCES users(id),
		CONSTRAINT ck_reviews_stars CHECK (stars BETWEEN 1 AND 5)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS spot_images (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		spot_id    BIGINT UNSIGNED NOT NULL,
		url        VARCHAR(2048) NOT NULL,
		preview    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY ix_spot_images_spot (spot_id),
		CONSTRAINT fk_spot_images_spot FOREIGN KEY (spot_id) REFERENCES spots(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS review_images (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		review_id  BIGINT UNSIGNED NOT NULL,
		url        VARCHAR(2048) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY ix_review_images_review (review_id),
		CONSTRAINT fk_review_images_review FOREIGN KEY (review_id) REFERENCES reviews(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		spot_id    BIGINT UNSIGNED NOT NULL,
		user_id    BIGINT UNSIGNED NOT NULL,
		start_date DATE NOT NULL,
		end_date   DATE NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY ix_bookings_spot_dates (spot_id, start_date, end_date),
		CONSTRAINT fk_bookings_spot FOREIGN KEY (spot_id) REFERENCES spots(id) ON DELETE CASCADE,
		CONSTRAINT fk_bookings_user FOREIGN KEY (user_id) REFERENCES users(id),
		CONSTRAINT ck_bookings_range CHECK (end_date > start_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.  Statements are idempotent so it is
// safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
