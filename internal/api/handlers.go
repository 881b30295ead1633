package api

import (
	"encoding/json"
	"net/url"
	"strings"

	"staffing/internal/errors"
	"staffing/internal/ledger"
	"staffing/internal/models"
	"staffing/internal/registry"

	"github.com/gofiber/fiber/v2"
)

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return errors.Validation("invalid request body", err)
	}
	return nil
}

func (s *Server) submitApplication(c *fiber.Ctx) error {
	var req registry.SubmitRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	app, err := s.registry.Submit(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(app)
}

func (s *Server) getApplication(c *fiber.Ctx) error {
	app, err := s.registry.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(app)
}

type transitionBody struct {
	Status  models.Status    `json:"status"`
	Payload registry.Payload `json:"payload"`
}

func (s *Server) transitionApplication(c *fiber.Ctx) error {
	var body transitionBody
	if err := parseBody(c, &body); err != nil {
		return err
	}

	app, err := s.registry.Transition(c.UserContext(), registry.TransitionRequest{
		ApplicationID: c.Params("id"),
		Actor:         actorFrom(c),
		Target:        body.Status,
		Payload:       body.Payload,
	})
	if err != nil {
		return err
	}
	return c.JSON(app)
}

func (s *Server) removeApplication(c *fiber.Ctx) error {
	if err := s.registry.Remove(c.UserContext(), c.Params("id"), actorFrom(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listCandidateApplications(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		return errors.Validation("malformed candidate email", err)
	}

	cats, err := s.registry.Categorize(c.UserContext(), email)
	if err != nil {
		return err
	}
	return c.JSON(cats)
}

type paymentBody struct {
	CandidateID string                   `json:"candidateId"`
	JobID       string                   `json:"jobId"`
	Amount      json.RawMessage          `json:"amount"`
	Description string                   `json:"description"`
	Method      string                   `json:"method"`
	ClientEmail string                   `json:"clientEmail"`
	Status      models.TransactionStatus `json:"status"`
	TaskStatus  *string                  `json:"taskStatus"`
}

// amountText accepts the amount as a JSON number or a numeric string and
// returns its literal text, leaving numeric validation to the ledger.
func amountText(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return text
		}
		return s
	}
	return text
}

func (s *Server) recordPayment(c *fiber.Ctx) error {
	var body paymentBody
	if err := parseBody(c, &body); err != nil {
		return err
	}

	payment, err := s.ledger.RecordPayment(c.UserContext(), ledger.RecordRequest{
		CandidateID: body.CandidateID,
		JobID:       body.JobID,
		Amount:      amountText(body.Amount),
		Description: body.Description,
		Method:      body.Method,
		ClientEmail: body.ClientEmail,
		Status:      body.Status,
		TaskStatus:  body.TaskStatus,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(payment)
}

func (s *Server) queryPayments(c *fiber.Ctx) error {
	report, err := s.ledger.QueryPayments(c.UserContext(), models.PaymentFilter{
		CandidateID: c.Query("candidateId"),
		JobID:       c.Query("jobId"),
		ClientEmail: c.Query("clientEmail"),
	})
	if err != nil {
		return err
	}
	return c.JSON(report)
}

type recomputeBody struct {
	TaskStatus *string `json:"taskStatus"`
}

func (s *Server) recomputePayments(c *fiber.Ctx) error {
	switch actorFrom(c).Role {
	case models.RoleStaff, models.RoleAdmin:
	default:
		return errors.Unauthorized("only staff may recompute payment aggregates", nil)
	}

	var body recomputeBody
	if len(c.Body()) > 0 {
		if err := parseBody(c, &body); err != nil {
			return err
		}
	}

	agg, err := s.ledger.Recompute(c.UserContext(), c.Params("id"), body.TaskStatus)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"applicationId":   c.Params("id"),
		"totalPayments":   agg.TotalPayments,
		"paymentStatus":   agg.PaymentStatus,
		"lastPaymentDate": agg.LastPaymentDate,
	})
}

func (s *Server) listHired(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	rows, err := s.hired.ListHired(c.UserContext(), jobID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"jobId": jobID, "candidates": rows})
}
