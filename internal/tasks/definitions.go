package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	RegisterHandler(LateFeeSweepTask.TaskID(), LateFeeSweepTask.HandleExecution)
	RegisterHandler(SendPaymentConfirmationTask.TaskID(), SendPaymentConfirmationTask.HandleExecution)
}
