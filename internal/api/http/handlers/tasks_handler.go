package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/travel-approval-service/internal/api/dto"
	"github.com/spec-kit/travel-approval-service/internal/service"
)

// TasksHandler exposes the staff task inbox and workflow actions.
type TasksHandler struct {
	workflow   *service.WorkflowService
	assignment *service.AssignmentService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(workflow *service.WorkflowService, assignment *service.AssignmentService) *TasksHandler {
	return &TasksHandler{workflow: workflow, assignment: assignment}
}

// ListMyTasks GET /tasks/my.
func (h *TasksHandler) ListMyTasks(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	tasks, err := h.workflow.ListMyTasks(c.UserContext(), staff)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponses(tasks)})
}

// ApplyAction POST /tasks/:id/action.
func (h *TasksHandler) ApplyAction(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TaskActionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	result, err := h.workflow.ApplyAction(c.UserContext(), c.Params("id"), staff.ID, req.Action, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TaskActionResponse{
		Task:       taskResponse(result.Task),
		CaseStatus: result.CaseStatus,
		NextTaskID: result.NextTaskID,
	}})
}

// Claim POST /tasks/:id/claim.
func (h *TasksHandler) Claim(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	task, err := h.assignment.ClaimTask(c.UserContext(), staff, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// Assign POST /tasks/:id/assign.
func (h *TasksHandler) Assign(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TaskAssignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.StaffID == "" {
		return fiber.NewError(http.StatusBadRequest, "staff_id required")
	}
	task, err := h.assignment.AssignTask(c.UserContext(), staff, c.Params("id"), req.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// AutoAssign POST /tasks/:id/auto-assign.
func (h *TasksHandler) AutoAssign(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	task, err := h.assignment.AutoAssignTask(c.UserContext(), staff, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}
