package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"eventpay/internal/models"
	"eventpay/internal/services"
	"eventpay/internal/tasks"
)

// Enqueues a scheduled task for the worker, e.g. the nightly late fee
// sweep:
//
//	schedule_task -task_name late_fee_sweep -arguments '{}' \
//	  -due "2026-01-01 02:00" -tasktype recurring -recurring "FREQ=DAILY"
func main() {
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "", "JSON arguments for the task (mandatory)")
	dueStr := flag.String("due", "", "Due date (mandatory, format: 2006-01-02 15:04)")
	taskType := flag.String("tasktype", "onetime", "Task type (optional, default: onetime)")
	recurring := flag.String("recurring", "", "Recurring RRULE (optional)")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts (optional, default: 3)")

	flag.Parse()

	if *taskName == "" || *argsStr == "" || *dueStr == "" {
		fmt.Println("Usage: schedule_task -task_name <name> -arguments <json_args> -due <YYYY-MM-DD HH:MM> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := services.InitDB(dsn)
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.Fatalf("Invalid JSON arguments: %v", err)
	}

	due, err := time.ParseInLocation("2006-01-02 15:04", *dueStr, time.Local)
	if err != nil {
		log.Fatalf("Invalid due date, want YYYY-MM-DD HH:MM: %v", err)
	}

	var recurringInterval *string
	if *recurring != "" {
		recurringInterval = recurring
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringInterval, models.ScheduledTaskType(*taskType), *maxAttempt)
	if err != nil {
		log.Fatalf("Failed to build task: %v", err)
	}

	if err := db.Create(task).Error; err != nil {
		log.Fatalf("Failed to create task: %v", err)
	}

	log.Printf("Scheduled task %q (ID %d), due %s", task.TaskName, task.ID, task.Due.Format(time.RFC3339))
}
