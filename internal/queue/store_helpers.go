package queue

import (
	"database/sql"
	"encoding/json"
	"time"
)

const itemColumns = "id, source_url, domain, source_kind, pathway, status, attempt_count, content_hash, quality_score, quality_tier, error_message, created_at, updated_at"

const taskColumns = "task_id, task_type, item_id, worker_class, priority, status, retry_count, error_category, error_message, next_retry_at, last_heartbeat, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           string
		sourceURL    string
		domain       string
		sourceKind   string
		pathwayRaw   sql.NullString
		statusStr    string
		attemptCount int
		contentHash  sql.NullString
		qualityScore float64
		qualityTier  sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&sourceURL,
		&domain,
		&sourceKind,
		&pathwayRaw,
		&statusStr,
		&attemptCount,
		&contentHash,
		&qualityScore,
		&qualityTier,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		SourceURL:    sourceURL,
		Domain:       domain,
		SourceKind:   sourceKind,
		Status:       ItemStatus(statusStr),
		AttemptCount: attemptCount,
		ContentHash:  contentHash.String,
		QualityScore: qualityScore,
		QualityTier:  qualityTier.String,
		ErrorMessage: errorMessage.String,
	}
	if pathwayRaw.Valid && pathwayRaw.String != "" {
		if err := json.Unmarshal([]byte(pathwayRaw.String), &item.Pathway); err != nil {
			return nil, err
		}
	}
	if created, err := parseTime(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTime(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		taskID           string
		taskType         string
		itemID           string
		workerClass      string
		priority         int
		statusStr        string
		retryCount       int
		errorCategory    sql.NullString
		errorMessage     sql.NullString
		nextRetryRaw     sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       string
		updatedRaw       string
	)

	if err := scanner.Scan(
		&taskID,
		&taskType,
		&itemID,
		&workerClass,
		&priority,
		&statusStr,
		&retryCount,
		&errorCategory,
		&errorMessage,
		&nextRetryRaw,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:            taskID,
		Type:          taskType,
		ItemID:        itemID,
		WorkerClass:   workerClass,
		Priority:      priority,
		Status:        TaskStatus(statusStr),
		RetryCount:    retryCount,
		ErrorCategory: errorCategory.String,
		ErrorMessage:  errorMessage.String,
	}
	var err error
	if task.NextRetryAt, err = parseNullableTime(nextRetryRaw); err != nil {
		return nil, err
	}
	if task.LastHeartbeat, err = parseNullableTime(lastHeartbeatRaw); err != nil {
		return nil, err
	}
	if created, err := parseTime(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTime(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}

func scanBreaker(scanner interface{ Scan(dest ...any) error }) (*BreakerState, error) {
	var (
		workerClass    string
		stateStr       string
		failureCount   int
		lastFailureRaw sql.NullString
		nextRetryRaw   sql.NullString
		updatedRaw     string
	)

	if err := scanner.Scan(
		&workerClass,
		&stateStr,
		&failureCount,
		&lastFailureRaw,
		&nextRetryRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	breaker := &BreakerState{
		WorkerClass:  workerClass,
		State:        BreakerStateValue(stateStr),
		FailureCount: failureCount,
	}
	var err error
	if breaker.LastFailureAt, err = parseNullableTime(lastFailureRaw); err != nil {
		return nil, err
	}
	if breaker.NextRetryAt, err = parseNullableTime(nextRetryRaw); err != nil {
		return nil, err
	}
	if updated, err := parseTime(updatedRaw); err == nil {
		breaker.UpdatedAt = updated
	}
	return breaker, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTimeValue(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func marshalPathway(pathway []string) (any, error) {
	if len(pathway) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(pathway)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
