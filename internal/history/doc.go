// Package history хранит историю запусков в Postgres.
//
// Store подключается к движку как runner.Observer: run.started создаёт
// строку в autorun_runs, каждый переход задачи обновляет autorun_tasks,
// run.finished записывает итог. Команда history читает их через List
// и Tasks.
package history
