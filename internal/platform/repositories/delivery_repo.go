package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"udl/internal/platform/models"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Record(delivery *models.Delivery) error {
	delivery.ID = "dl_" + uuid.New().String()
	delivery.CreatedAt = time.Now().Unix()

	query := `
		INSERT INTO webhook_deliveries (id, batch_id, url, success, skipped, attempts, error, webhook_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, delivery.ID, delivery.BatchID, delivery.URL, delivery.Success,
		delivery.Skipped, delivery.Attempts, delivery.Error, delivery.WebhookCount, delivery.CreatedAt)
	return err
}

func (r *DeliveryRepository) ListRecent(limit int) ([]*models.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, batch_id, url, success, skipped, attempts, error, webhook_count, created_at
		FROM webhook_deliveries ORDER BY created_at DESC LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.Delivery
	for rows.Next() {
		var d models.Delivery
		var errStr sql.NullString

		if err := rows.Scan(&d.ID, &d.BatchID, &d.URL, &d.Success, &d.Skipped, &d.Attempts, &errStr, &d.WebhookCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		if errStr.Valid {
			d.Error = errStr.String
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}

func (r *DeliveryRepository) CountFailedSince(since int64) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM webhook_deliveries WHERE success = 0 AND created_at >= ?`, since,
	).Scan(&count)
	return count, err
}
