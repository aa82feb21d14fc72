package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/collabify/cachekit/internal/config"
	"github.com/collabify/cachekit/internal/graphql"
	"github.com/collabify/cachekit/internal/logger"
)

func main() {
	name := flag.String("name", "Demo Project", "name of the project to create")
	description := flag.String("description", "Project created from graphqldemo", "project description")
	taskID := flag.String("update-task", "", "task id to update (optional)")
	status := flag.String("status", "done", "new status for -update-task")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Env)
	slog.SetDefault(logger)

	if cfg.AuthToken == "" {
		logger.Warn("AUTH_TOKEN is empty, requests will be unauthenticated")
	}
	client := graphql.NewClient(cfg.GraphQLEndpoint, cfg.AuthToken)

	projects, err := client.FetchProjects(ctx)
	if err != nil {
		logger.Error("Error fetching projects", "error", err)
	} else {
		logger.Info("Projects", "count", len(projects), "projects", projects)
	}

	project, err := client.CreateProject(ctx, *name, *description)
	if err != nil {
		logger.Error("Error creating project", "error", err)
	} else if project != nil {
		logger.Info("Created project", "project_id", project.ProjectID, "name", project.Name)

		task, err := client.AddTask(ctx, project.ProjectID, graphql.NewTask{
			Title:    "GraphQL Task Example",
			Priority: "medium",
			DueDate:  time.Now().Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339),
		})
		if err != nil {
			logger.Error("Error adding task", "error", err)
		} else {
			logger.Info("Added task", "task", task)
		}
	}

	if *taskID != "" {
		task, err := client.UpdateTask(ctx, *taskID, *status)
		if err != nil {
			logger.Error("Error updating task", "error", err)
		} else {
			logger.Info("Updated task", "task", task)
		}
	}
}
