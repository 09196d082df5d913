package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/reconcile"
)

type CounsellorHandler struct {
	engine *reconcile.Engine
}

func NewCounsellorHandler(engine *reconcile.Engine) *CounsellorHandler {
	return &CounsellorHandler{engine: engine}
}

type CreateCounsellorsInput struct {
	Body reconcile.CounsellorDraft
}

type CreateCounsellorsOutput struct {
	Body struct {
		ID      uint   `json:"id"`
		Message string `json:"message"`
	}
}

func (h *CounsellorHandler) HandleCreate(ctx context.Context, input *CreateCounsellorsInput) (*CreateCounsellorsOutput, error) {
	pair, err := h.engine.RegisterCounsellors(ctx, input.Body)
	if err != nil {
		if problem, ok := validationProblem(err); ok {
			return nil, problem
		}
		logger.Errorw("counsellor_create_failed", "error", err)
		return nil, internalError("Failed to save counsellor registration", err)
	}

	out := &CreateCounsellorsOutput{}
	out.Body.ID = pair.ID
	out.Body.Message = "Counsellor registration submitted successfully! We'll be in touch soon."
	return out, nil
}

func (h *CounsellorHandler) register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-counsellors",
		Method:        http.MethodPost,
		Path:          "/counsellors",
		Summary:       "Register a counsellor pair",
		Tags:          []string{"Counsellors"},
		DefaultStatus: http.StatusCreated,
	}, h.HandleCreate)
}
