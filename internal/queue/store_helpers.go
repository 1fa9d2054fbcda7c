package queue

import (
	"database/sql"
	"errors"
	"time"
)

const taskColumns = "id, status, source_path, title, options_json, stage_results, error_kind, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, diarization_degraded, refinement_degraded, refinement_partial, cancel_requested, last_heartbeat"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id               int64
		statusStr        string
		sourcePath       sql.NullString
		title            sql.NullString
		optionsJSON      sql.NullString
		stageResults     sql.NullString
		errorKind        sql.NullString
		errorMessage     sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		diarizeDegraded  sql.NullInt64
		refineDegraded   sql.NullInt64
		refinePartial    sql.NullInt64
		cancelRequested  sql.NullInt64
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&sourcePath,
		&title,
		&optionsJSON,
		&stageResults,
		&errorKind,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&diarizeDegraded,
		&refineDegraded,
		&refinePartial,
		&cancelRequested,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:              id,
		Status:          Status(statusStr),
		SourcePath:      sourcePath.String,
		Title:           title.String,
		OptionsJSON:     optionsJSON.String,
		StageResults:    stageResults.String,
		ErrorKind:       errorKind.String,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}
	if diarizeDegraded.Valid {
		task.DiarizationDegraded = diarizeDegraded.Int64 != 0
	}
	if refineDegraded.Valid {
		task.RefinementDegraded = refineDegraded.Int64 != 0
	}
	if refinePartial.Valid {
		task.RefinementPartial = refinePartial.Int64 != 0
	}
	if cancelRequested.Valid {
		task.CancelRequested = cancelRequested.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			task.LastHeartbeat = &heartbeat
		}
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
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
