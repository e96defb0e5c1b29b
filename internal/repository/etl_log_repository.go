package repository

import (
	"database/sql"
	"fmt"

	"github.com/martforge/martforge-api/internal/models"
)

// ETLLogRepository owns the mart_etl_log table: one row per job execution,
// written at start and finalized exactly once at completion.
type ETLLogRepository interface {
	StartRun(jobName string, orgID int, sourceSystem, targetTable string) (int64, error)
	CompleteRun(runID int64, status models.ETLRunStatus, processed, inserted, updated int, errorMessage string) error
	ListRuns(limit, offset int) ([]models.ETLRun, error)
	RunStats(days int) (models.RunStats, error)
}

type etlLogRepository struct {
	db *sql.DB
}

func NewETLLogRepository(db *sql.DB) ETLLogRepository {
	return &etlLogRepository{db: db}
}

func (r *etlLogRepository) StartRun(jobName string, orgID int, sourceSystem, targetTable string) (int64, error) {
	const query = `
		INSERT INTO mart.mart_etl_log (job_name, org_id, status, source_system, target_table)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`
	var id int64
	err := r.db.QueryRow(query, jobName, orgID, models.RunStatusRunning, sourceSystem, targetTable).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *etlLogRepository) CompleteRun(runID int64, status models.ETLRunStatus, processed, inserted, updated int, errorMessage string) error {
	if status != models.RunStatusSuccess && status != models.RunStatusFailed {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	const query = `
		UPDATE mart.mart_etl_log
		   SET status            = $1,
		       completed_at      = NOW(),
		       records_processed = $2,
		       records_inserted  = $3,
		       records_updated   = $4,
		       error_message     = NULLIF($5, '')
		 WHERE id = $6;
	`
	res, err := r.db.Exec(query, status, processed, inserted, updated, errorMessage, runID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

func (r *etlLogRepository) ListRuns(limit, offset int) ([]models.ETLRun, error) {
	const query = `
		SELECT id, job_name, org_id, started_at, completed_at, status,
		       source_system, target_table,
		       records_processed, records_inserted, records_updated, error_message
		FROM mart.mart_etl_log
		ORDER BY started_at DESC
		LIMIT $1
		OFFSET $2;
	`
	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]models.ETLRun, 0, limit)
	for rows.Next() {
		var (
			run       models.ETLRun
			completed sql.NullTime
			errMsg    sql.NullString
		)
		if err := rows.Scan(
			&run.ID,
			&run.JobName,
			&run.OrgID,
			&run.StartedAt,
			&completed,
			&run.Status,
			&run.SourceSystem,
			&run.TargetTable,
			&run.RecordsProcessed,
			&run.RecordsInserted,
			&run.RecordsUpdated,
			&errMsg,
		); err != nil {
			return nil, err
		}
		if completed.Valid {
			run.CompletedAt = &completed.Time
		}
		if errMsg.Valid {
			run.ErrorMessage = &errMsg.String
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *etlLogRepository) RunStats(days int) (models.RunStats, error) {
	const query = `
		WITH days AS (
			SELECT generate_series(
				(current_date - ($1 - 1) * INTERVAL '1 day'),
				current_date,
				'1 day'::INTERVAL
			) AS day
		)
		SELECT
			days.day,
			COALESCE(SUM((el.status = 'success')::int), 0) AS success,
			COALESCE(SUM((el.status = 'failed')::int), 0)  AS failed,
			COALESCE(SUM((el.status = 'running')::int), 0) AS running
		FROM days
		LEFT JOIN mart.mart_etl_log el
		ON el.started_at::DATE = days.day
		GROUP BY days.day
		ORDER BY days.day;
	`
	rows, err := r.db.Query(query, days)
	if err != nil {
		return models.RunStats{}, fmt.Errorf("RunStats query error: %w", err)
	}
	defer rows.Close()

	var perDay []models.RunStatDay
	for rows.Next() {
		var day models.RunStatDay
		if err := rows.Scan(&day.Day, &day.Success, &day.Failed, &day.Running); err != nil {
			return models.RunStats{}, fmt.Errorf("failed to scan run stat: %w", err)
		}
		perDay = append(perDay, day)
	}
	if err := rows.Err(); err != nil {
		return models.RunStats{}, err
	}

	const totalQuery = `
		SELECT
			COALESCE(COUNT(*), 0) AS total,
			COALESCE(SUM((status = 'success')::int), 0) AS success,
			COALESCE(SUM((status = 'failed')::int), 0)  AS failed,
			COALESCE(SUM((status = 'running')::int), 0) AS running
		FROM mart.mart_etl_log;
	`
	var stats models.RunStats
	row := r.db.QueryRow(totalQuery)
	if err := row.Scan(&stats.Total, &stats.Success, &stats.Failed, &stats.Running); err != nil {
		return models.RunStats{}, fmt.Errorf("RunStats total scan error: %w", err)
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Success) / float64(stats.Total) * 100.0
	}
	stats.PerDay = perDay

	return stats, nil
}
