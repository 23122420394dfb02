package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"Vestify-Chain/deploy/migrations"
	xerrors "Vestify-Chain/internal/errors"
)

// MySQLRunStore 使用 MySQL 持久化运行记录，作为可审计的历史痕迹。
type MySQLRunStore struct {
	db *sql.DB
}

// NewMySQLRunStore 创建一个新的 MySQLRunStore 并初始化表结构。
func NewMySQLRunStore(dsn string) (*MySQLRunStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLRunStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// initSchema 按文件名顺序执行 deploy/migrations 内嵌的迁移语句。
func (s *MySQLRunStore) initSchema() error {
	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取迁移文件失败")
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := migrations.Files.ReadFile(entry.Name())
		if err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取迁移文件失败")
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行迁移 "+entry.Name()+" 失败")
		}
	}
	return nil
}

// Create 插入新的运行记录。
func (s *MySQLRunStore) Create(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "运行 ID 不能为空")
	}

	now := time.Now().Unix()
	if run.CreatedAt == 0 {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	hashes, err := marshalHashes(run.TxHashes)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码交易哈希失败")
	}

	const stmt = `INSERT INTO workflow_runs
        (id, kind, status, current_step, total_steps, tx_hashes, last_error, error_code, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		run.ID, run.Kind, run.Status, run.CurrentStep, run.TotalSteps,
		hashes, run.LastError, run.ErrorCode, run.CreatedAt, run.UpdatedAt,
	); err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return ErrRunConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入运行记录失败")
	}
	return nil
}

// Update 覆盖已有的运行记录。
func (s *MySQLRunStore) Update(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "运行 ID 不能为空")
	}

	run.UpdatedAt = time.Now().Unix()
	hashes, err := marshalHashes(run.TxHashes)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码交易哈希失败")
	}

	const stmt = `UPDATE workflow_runs SET
        kind = ?, status = ?, current_step = ?, total_steps = ?,
        tx_hashes = ?, last_error = ?, error_code = ?, updated_at = ?
        WHERE id = ?`

	result, err := s.db.ExecContext(ctx, stmt,
		run.Kind, run.Status, run.CurrentStep, run.TotalSteps,
		hashes, run.LastError, run.ErrorCode, run.UpdatedAt, run.ID,
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新运行记录失败")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		if _, getErr := s.Get(ctx, run.ID); stdErrors.Is(getErr, ErrRunNotFound) {
			return ErrRunNotFound
		}
	}
	return nil
}

// Get 返回运行记录。
func (s *MySQLRunStore) Get(ctx context.Context, id string) (*Run, error) {
	const query = `SELECT id, kind, status, current_step, total_steps,
        tx_hashes, last_error, error_code, created_at, updated_at
        FROM workflow_runs WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	run, err := scanRun(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取运行记录失败")
	}
	return run, nil
}

// List 返回最近的运行记录，按更新时间倒序。
func (s *MySQLRunStore) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `SELECT id, kind, status, current_step, total_steps,
        tx_hashes, last_error, error_code, created_at, updated_at
        FROM workflow_runs ORDER BY updated_at DESC, created_at DESC, id ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询运行记录失败")
	}
	defer rows.Close()

	var results []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析运行记录失败")
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历运行记录失败")
	}
	return results, nil
}

// Stats 统计运行记录的状态分布。
func (s *MySQLRunStore) Stats(ctx context.Context) (RunStats, error) {
	const query = `SELECT status, COUNT(*) FROM workflow_runs GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return RunStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "统计运行记录失败")
	}
	defer rows.Close()

	var stats RunStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return RunStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析统计结果失败")
		}
		stats.Total += count
		switch Status(status) {
		case StatusSucceeded:
			stats.Succeeded += count
		case StatusFailed:
			stats.Failed += count
		default:
			stats.InFlight += count
		}
	}
	if err := rows.Err(); err != nil {
		return RunStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历统计结果失败")
	}
	return stats, nil
}

// Close 关闭数据库连接。
func (s *MySQLRunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var hashes sql.NullString
	var lastError sql.NullString
	if err := row.Scan(
		&run.ID, &run.Kind, &run.Status, &run.CurrentStep, &run.TotalSteps,
		&hashes, &lastError, &run.ErrorCode, &run.CreatedAt, &run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	run.LastError = lastError.String
	if hashes.Valid && hashes.String != "" {
		if err := json.Unmarshal([]byte(hashes.String), &run.TxHashes); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

func marshalHashes(hashes []string) (string, error) {
	if len(hashes) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(hashes)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

var _ RunStore = (*MySQLRunStore)(nil)
