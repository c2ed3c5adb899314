package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied statement by statement; the MySQL driver does not
// accept multi-statement strings without multiStatements=true.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('ADMIN','SCANNER') NOT NULL DEFAULT 'SCANNER',
		is_active     TINYINT(1) NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS events (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name           VARCHAR(255) NOT NULL,
		description    TEXT NULL,
		poster_url     VARCHAR(512) NULL,
		starts_at      DATETIME NULL,
		ends_at        DATETIME NULL,
		performance_at DATETIME NULL,
		capacity       INT NOT NULL DEFAULT 0,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		event_id       BIGINT UNSIGNED NOT NULL,
		section        VARCHAR(64) NOT NULL DEFAULT '',
		row_label      VARCHAR(16) NOT NULL,
		seat_number    INT UNSIGNED NOT NULL,
		row_idx        INT NOT NULL,
		col_idx        INT NOT NULL,
		status         ENUM('available','reserved','sold','blocked') NOT NULL DEFAULT 'available',
		reserved_token CHAR(36) NULL,
		reserved_until DATETIME(3) NULL,
		UNIQUE KEY uq_seat_position (event_id, section, row_label, seat_number),
		INDEX idx_seat_scan (event_id, status, row_idx, col_idx),
		INDEX idx_seat_token (reserved_token),
		CONSTRAINT fk_seat_event FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tickets (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		ticket_code VARCHAR(64) NOT NULL UNIQUE,
		user_email  VARCHAR(255) NOT NULL,
		user_name   VARCHAR(255) NULL,
		event_id    BIGINT UNSIGNED NOT NULL,
		seat_id     BIGINT UNSIGNED NULL,
		price       DECIMAL(10,2) NOT NULL DEFAULT 0,
		status      ENUM('active','used','cancelled') NOT NULL DEFAULT 'active',
		used_at     DATETIME(3) NULL,
		qr_payload  TEXT NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_ticket_event_status (event_id, status),
		INDEX idx_ticket_used (used_at),
		CONSTRAINT fk_ticket_event FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE,
		CONSTRAINT fk_ticket_seat FOREIGN KEY (seat_id) REFERENCES seats(id) ON DELETE SET NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS email_queue (
		id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		to_email     VARCHAR(255) NOT NULL,
		to_name      VARCHAR(255) NULL,
		subject      VARCHAR(512) NOT NULL,
		body         MEDIUMTEXT NOT NULL,
		attachments  MEDIUMTEXT NULL,
		status       ENUM('pending','sending','sent','failed') NOT NULL DEFAULT 'pending',
		tries        INT NOT NULL DEFAULT 0,
		last_attempt DATETIME NULL,
		created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_email_status (status, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
