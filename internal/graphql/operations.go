package graphql

import "context"

type Membership struct {
	UserSub string `json:"userSub"`
	Role    string `json:"role"`
}

type Task struct {
	ID         string `json:"_id"`
	Title      string `json:"title"`
	Status     string `json:"status,omitempty"`
	Priority   string `json:"priority,omitempty"`
	DueDate    string `json:"dueDate,omitempty"`
	AssignedTo string `json:"assignedTo,omitempty"`
}

type Project struct {
	ProjectID   string       `json:"projectId"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Membership  []Membership `json:"membership,omitempty"`
	Tasks       []Task       `json:"tasks,omitempty"`
}

type User struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

const projectsQuery = `query {
  projects {
    projectId
    name
    description
    membership { userSub role }
    tasks { _id title status priority dueDate }
  }
}`

const projectQuery = `query Project($projectId: String!) {
  project(projectId: $projectId) {
    projectId
    name
    description
    tasks { _id title status priority assignedTo }
  }
}`

const userQuery = `query User($sub: String!) {
  user(sub: $sub) { sub name email }
}`

const createProjectMutation = `mutation CreateProject($name: String!, $description: String!) {
  createProject(input: { name: $name, description: $description }) {
    projectId
    name
    description
  }
}`

const addTaskMutation = `mutation AddTask($projectId: String!, $title: String!, $priority: String!, $dueDate: String!) {
  addTask(projectId: $projectId, input: { title: $title, priority: $priority, dueDate: $dueDate }) {
    _id
    title
    status
    priority
    dueDate
  }
}`

const updateTaskMutation = `mutation UpdateTask($taskId: String!, $status: String!) {
  updateTask(taskId: $taskId, input: { status: $status }) {
    _id
    title
    status
  }
}`

func (c *Client) FetchProjects(ctx context.Context) ([]Project, error) {
	var out struct {
		Projects []Project `json:"projects"`
	}
	if err := c.Query(ctx, projectsQuery, nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (c *Client) Project(ctx context.Context, projectID string) (*Project, error) {
	var out struct {
		Project *Project `json:"project"`
	}
	if err := c.Query(ctx, projectQuery, map[string]any{"projectId": projectID}, &out); err != nil {
		return nil, err
	}
	return out.Project, nil
}

func (c *Client) User(ctx context.Context, sub string) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := c.Query(ctx, userQuery, map[string]any{"sub": sub}, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	var out struct {
		CreateProject *Project `json:"createProject"`
	}
	vars := map[string]any{"name": name, "description": description}
	if err := c.Execute(ctx, createProjectMutation, vars, &out); err != nil {
		return nil, err
	}
	return out.CreateProject, nil
}

type NewTask struct {
	Title    string
	Priority string
	DueDate  string
}

func (c *Client) AddTask(ctx context.Context, projectID string, task NewTask) (*Task, error) {
	var out struct {
		AddTask *Task `json:"addTask"`
	}
	vars := map[string]any{
		"projectId": projectID,
		"title":     task.Title,
		"priority":  task.Priority,
		"dueDate":   task.DueDate,
	}
	if err := c.Execute(ctx, addTaskMutation, vars, &out); err != nil {
		return nil, err
	}
	return out.AddTask, nil
}

func (c *Client) UpdateTask(ctx context.Context, taskID, status string) (*Task, error) {
	var out struct {
		UpdateTask *Task `json:"updateTask"`
	}
	vars := map[string]any{"taskId": taskID, "status": status}
	if err := c.Execute(ctx, updateTaskMutation, vars, &out); err != nil {
		return nil, err
	}
	return out.UpdateTask, nil
}
