package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shaiso/Autorun/internal/runner"
)

// RunRecord — сохранённый запуск.
type RunRecord struct {
	ID         uuid.UUID  `json:"id"`
	Workflow   string     `json:"workflow"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TaskRecord — сохранённое состояние задачи запуска.
type TaskRecord struct {
	StepID     string     `json:"step_id"`
	Workflow   string     `json:"workflow"`
	Kind       string     `json:"kind"`
	Args       string     `json:"args,omitempty"`
	Status     string     `json:"status"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunFilter — фильтр для List.
type RunFilter struct {
	Workflow string
	Status   string
	Limit    int // по умолчанию 20
}

// DefaultWriteTimeout ограничивает одну запись истории.
const DefaultWriteTimeout = 3 * time.Second

// Store пишет историю запусков в Postgres и читает её.
//
// Store реализует runner.Observer. Каждая запись ограничена
// WriteTimeout, ошибки записи логируются: зависшая или недоступная
// база не останавливает выполнение workflow.
type Store struct {
	db     Querier
	logger *slog.Logger

	// WriteTimeout — лимит на обработку одного события.
	WriteTimeout time.Duration
}

// NewStore создаёт Store.
func NewStore(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, WriteTimeout: DefaultWriteTimeout}
}

// Notify реализует runner.Observer.
func (s *Store) Notify(ctx context.Context, ev runner.Event) {
	timeout := s.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	switch ev.Type {
	case runner.EventRunStarted:
		err = s.RunStarted(ctx, ev.RunID, ev.Workflow, ev.Time, ev.Result)
	case runner.EventTaskChanged:
		err = s.TaskChanged(ctx, ev.RunID, ev.Task)
	case runner.EventRunFinished:
		err = s.RunFinished(ctx, ev.RunID, ev.Result)
	}
	if err != nil {
		s.logger.Warn("failed to record history", "type", ev.Type, "run_id", ev.RunID, "error", err)
	}
}

// RunStarted сохраняет новый запуск и все его задачи в статусе PENDING.
// res может быть nil, тогда задачи появятся по мере выполнения.
func (s *Store) RunStarted(ctx context.Context, id uuid.UUID, workflow string, at time.Time, res *runner.WorkflowResult) error {
	query := `
		INSERT INTO autorun_runs (id, workflow, status, started_at)
		VALUES ($1, $2, 'RUNNING', $3)
	`
	if _, err := s.db.Exec(ctx, query, id, workflow, at); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if res == nil {
		return nil
	}
	return s.saveTasks(ctx, id, res.Tasks())
}

// TaskChanged сохраняет текущее состояние задачи.
func (s *Store) TaskChanged(ctx context.Context, runID uuid.UUID, t *runner.TaskResult) error {
	query := `
		INSERT INTO autorun_tasks (run_id, step_id, workflow, kind, args, status, exit_code, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, step_id) DO UPDATE
		SET status = EXCLUDED.status,
		    exit_code = EXCLUDED.exit_code,
		    error = EXCLUDED.error,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at
	`
	_, err := s.db.Exec(ctx, query,
		runID,
		t.ID,
		t.Workflow,
		string(t.Kind),
		t.Args,
		string(t.Status),
		nullExitCode(t.ExitCode),
		nullError(t.Err),
		nullTime(t.StartedAt),
		nullTime(t.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	return nil
}

// RunFinished сохраняет итог запуска.
func (s *Store) RunFinished(ctx context.Context, id uuid.UUID, res *runner.WorkflowResult) error {
	query := `
		UPDATE autorun_runs
		SET status = $2, error = $3, finished_at = $4
		WHERE id = $1
	`
	finished := res.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	tag, err := s.db.Exec(ctx, query, id, string(res.Status), nullError(res.Err), finished)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	// Итоговое состояние всех задач, включая не запущенные
	return s.saveTasks(ctx, id, res.Tasks())
}

// saveTasks записывает задачи одним выражением; position — порядок
// задачи в плане.
func (s *Store) saveTasks(ctx context.Context, runID uuid.UUID, tasks []*runner.TaskResult) error {
	if len(tasks) == 0 {
		return nil
	}

	n := len(tasks)
	var (
		stepIDs   = make([]string, n)
		workflows = make([]string, n)
		kinds     = make([]string, n)
		args      = make([]string, n)
		statuses  = make([]string, n)
		positions = make([]int, n)
		exitCodes = make([]*int, n)
		errs      = make([]*string, n)
		started   = make([]*time.Time, n)
		finished  = make([]*time.Time, n)
	)
	for i, t := range tasks {
		stepIDs[i] = t.ID
		workflows[i] = t.Workflow
		kinds[i] = string(t.Kind)
		args[i] = t.Args
		statuses[i] = string(t.Status)
		positions[i] = i
		exitCodes[i] = nullExitCode(t.ExitCode)
		errs[i] = nullError(t.Err)
		started[i] = nullTime(t.StartedAt)
		finished[i] = nullTime(t.FinishedAt)
	}

	query := `
		INSERT INTO autorun_tasks (run_id, step_id, workflow, kind, args, status, position, exit_code, error, started_at, finished_at)
		SELECT $1, t.step_id, t.workflow, t.kind, t.args, t.status, t.position, t.exit_code, t.error, t.started_at, t.finished_at
		FROM unnest($2::text[], $3::text[], $4::text[], $5::text[], $6::text[], $7::int[], $8::int[], $9::text[], $10::timestamptz[], $11::timestamptz[])
		     AS t(step_id, workflow, kind, args, status, position, exit_code, error, started_at, finished_at)
		ON CONFLICT (run_id, step_id) DO UPDATE
		SET status = EXCLUDED.status,
		    position = EXCLUDED.position,
		    exit_code = EXCLUDED.exit_code,
		    error = EXCLUDED.error,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at
	`
	_, err := s.db.Exec(ctx, query, runID,
		stepIDs, workflows, kinds, args, statuses, positions, exitCodes, errs, started, finished)
	if err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}

// Get возвращает запуск по ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	query := `
		SELECT id, workflow, status, error, started_at, finished_at
		FROM autorun_runs
		WHERE id = $1
	`
	rec, err := scanRun(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List возвращает последние запуски, новые первыми.
func (s *Store) List(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query, args := listQuery(filter)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *rec)
	}
	return runs, rows.Err()
}

// tasksQuery упорядочивает задачи по позиции в плане: текстовый
// порядок step_id ставит W[10] раньше W[2].
const tasksQuery = `
	SELECT step_id, workflow, kind, args, status, exit_code, error, started_at, finished_at
	FROM autorun_tasks
	WHERE run_id = $1
	ORDER BY position, step_id
`

// Tasks возвращает задачи запуска в порядке плана.
func (s *Store) Tasks(ctx context.Context, runID uuid.UUID) ([]TaskRecord, error) {
	rows, err := s.db.Query(ctx, tasksQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var t TaskRecord
		var taskErr *string
		if err := rows.Scan(&t.StepID, &t.Workflow, &t.Kind, &t.Args, &t.Status,
			&t.ExitCode, &taskErr, &t.StartedAt, &t.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if taskErr != nil {
			t.Error = *taskErr
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// listQuery строит запрос List с нумерованными параметрами.
func listQuery(filter RunFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Workflow != "" {
		args = append(args, filter.Workflow)
		conds = append(conds, fmt.Sprintf("workflow = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, strings.ToUpper(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	var b strings.Builder
	b.WriteString("SELECT id, workflow, status, error, started_at, finished_at FROM autorun_runs")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY started_at DESC LIMIT $%d", len(args))

	return b.String(), args
}

func scanRun(row pgx.Row) (*RunRecord, error) {
	var rec RunRecord
	var runErr *string
	if err := row.Scan(&rec.ID, &rec.Workflow, &rec.Status, &runErr, &rec.StartedAt, &rec.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if runErr != nil {
		rec.Error = *runErr
	}
	return &rec, nil
}

// nullError возвращает nil для отсутствующей ошибки (NULL в БД).
func nullError(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// nullExitCode: -1 означает, что код выхода неизвестен.
func nullExitCode(code int) *int {
	if code < 0 {
		return nil
	}
	return &code
}
