package domain

// TaskStatus — статус выполнения задачи.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	          RUNNING → AWAITING_PORT → COMPLETED
//	                                  ↘ FAILED
//	(отмена) PENDING → FAILED
type TaskStatus string

const (
	// TaskStatusPending — задача ещё не запускалась.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — процесс задачи выполняется.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusAwaitingPort — процесс запущен, ждём открытия порта.
	TaskStatusAwaitingPort TaskStatus = "AWAITING_PORT"

	// TaskStatusCompleted — задача успешно завершена.
	TaskStatusCompleted TaskStatus = "COMPLETED"

	// TaskStatusFailed — задача завершилась ошибкой, таймаутом или отменой.
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition проверяет допустимость перехода статуса задачи.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return to == TaskStatusRunning || to == TaskStatusFailed
	case TaskStatusRunning:
		return to == TaskStatusAwaitingPort || to == TaskStatusCompleted || to == TaskStatusFailed
	case TaskStatusAwaitingPort:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	default:
		return false
	}
}

// WorkflowStatus — статус выполнения workflow.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
type WorkflowStatus string

const (
	// WorkflowStatusPending — workflow ещё не запускался.
	WorkflowStatusPending WorkflowStatus = "PENDING"

	// WorkflowStatusRunning — workflow выполняется.
	WorkflowStatusRunning WorkflowStatus = "RUNNING"

	// WorkflowStatusCompleted — все задачи завершены успешно.
	WorkflowStatusCompleted WorkflowStatus = "COMPLETED"

	// WorkflowStatusFailed — хотя бы одна задача завершилась ошибкой.
	WorkflowStatusFailed WorkflowStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}
